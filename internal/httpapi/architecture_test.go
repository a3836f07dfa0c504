package httpapi_test

import (
	"testing"

	"familytree/testutil"
)

func TestHandlersDoNotReachIntoDrivers(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InfraImportForbidden,
		"the HTTP layer talks to core.Service only")
}
