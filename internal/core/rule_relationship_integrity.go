package core

import (
	"context"

	"familytree/pkg/domain"
)

// RelationshipIntegrityRule re-verifies relationship symmetry, dangling and
// self references and ancestry cycles over the whole state.
func RelationshipIntegrityRule() domain.Rule {
	return relationshipIntegrityRule{}
}

type relationshipIntegrityRule struct{}

func (relationshipIntegrityRule) Name() string { return domain.IntegrityRuleName }

func (relationshipIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: domain.CheckIntegrity(view.ListPeople(), view.NextID())}, nil
}
