package abook

import (
	"strings"
	"time"
)

// OperationKind classifies a commit of the store.
type OperationKind string

const (
	OpCreate   OperationKind = "create"
	OpUpdate   OperationKind = "update"
	OpDelete   OperationKind = "delete"
	OpMerge    OperationKind = "merge"
	OpImport   OperationKind = "import"
	OpSync     OperationKind = "sync"
	OpRollback OperationKind = "rollback"
)

// HistoryEntry is one commit of the store.
type HistoryEntry struct {
	Hash      string
	Message   string
	Timestamp time.Time
	Author    string
	Operation OperationKind
}

// Subject returns the first line of the commit message.
func (e *HistoryEntry) Subject() string {
	subject, _, _ := strings.Cut(e.Message, "\n")
	return subject
}

var operationPrefixes = []struct {
	prefix string
	kind   OperationKind
}{
	{"create contact", OpCreate},
	{"update contact", OpUpdate},
	{"archive contact", OpDelete},
	{"delete contact", OpDelete},
	{"merge contacts", OpMerge},
	{"import ", OpImport},
	{"sync", OpSync},
	{"revert", OpRollback},
	{"rollback", OpRollback},
}

// ClassifyMessage maps a commit message to the operation that produced it by
// case-insensitive prefix. Unknown messages are updates.
func ClassifyMessage(msg string) OperationKind {
	m := strings.ToLower(strings.TrimSpace(msg))
	for _, p := range operationPrefixes {
		if strings.HasPrefix(m, p.prefix) {
			return p.kind
		}
	}
	return OpUpdate
}

// RollbackMode selects which commits a rollback reverts.
type RollbackMode string

const (
	// RollbackLast reverts the most recent Count commits.
	RollbackLast RollbackMode = "last"
	// RollbackToCommit reverts every commit after Target.
	RollbackToCommit RollbackMode = "to-commit"
	// RollbackToTag reverts every commit after the commit tagged Target.
	RollbackToTag RollbackMode = "to-tag"
)

// RollbackOptions configures Store.Rollback.
type RollbackOptions struct {
	Mode   RollbackMode
	Count  int
	Target string
	// DryRun reports the commits that would be reverted. Only the safety tag
	// is written.
	DryRun bool
}

// RollbackResult describes a rollback.
type RollbackResult struct {
	SafetyTag string
	// Commits are the commits selected for reverting, newest first.
	Commits []*HistoryEntry
	// Reverted counts the reverts applied; always 0 for a dry run.
	Reverted int
	DryRun   bool
}

// tagTimeLayout formats the timestamp part of checkpoint tag names.
const tagTimeLayout = "20060102T150405.000000000Z"

// TagTime formats t for use in a checkpoint tag name.
func TagTime(t time.Time) string {
	return t.UTC().Format(tagTimeLayout)
}
