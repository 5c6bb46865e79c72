// Package workflow is the contract negotiation state machine.
//
// The machine is pure: it takes a process snapshot and a command and returns
// the next snapshot plus the history entry that records it. Guards that need
// data owned elsewhere (document checklist, signing records) arrive through
// Gates, evaluated by the caller before Apply.
//
// Every accepted transition appends exactly one HistoryEntry. Replay folds a
// history from DRAFT and must land on the stored state; that is the check
// the service runs before persisting, and what audits use to rebuild a
// process from its log alone.
//
// Aggregate is the read-only stage projection served to reporting callers.
// It is recomputed per read and never stored.
package workflow
