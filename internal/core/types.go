package core

import "familytree/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Person             = domain.Person
	PersonInput        = domain.PersonInput
	PersonUpdate       = domain.PersonUpdate
	Gender             = domain.Gender
	Snapshot           = domain.Snapshot
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	Rule               = domain.Rule
	RulesEngine        = domain.RulesEngine
	RuleView           = domain.RuleView
	RuleViolationError = domain.RuleViolationError
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
	SnapshotStore      = domain.SnapshotStore
)

const (
	EntityPerson       = domain.EntityPerson
	EntityRelationship = domain.EntityRelationship
	EntityBackup       = domain.EntityBackup
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
