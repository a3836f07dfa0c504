package postgres

import (
	"testing"

	"familytree/testutil"
)

func TestOnlyDomainAndSQLStateImports(t *testing.T) {
	allowed := map[string]bool{
		"familytree/pkg/domain":                          true,
		"familytree/internal/infra/persistence/sqlstate": true,
	}
	testutil.AssertNoDirectImports(t, ".", func(path string) bool {
		return testutil.ModuleImportForbidden(path) && !allowed[path]
	}, "the postgres backend depends on the domain contracts and sqlstate only")
}
