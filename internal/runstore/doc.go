// Package runstore records analysis runs and their report branches in SQLite.
//
// The Store is the history behind `courtside runs`. A run row follows the
// workflow state machine (Status mirrors the workflow enum) and carries the
// sampling summary once the run ends. Each (player, role, language) branch
// gets one row that moves from pending to a terminal state exactly once;
// FinishBranch refuses to rewrite a terminal row.
//
// Schema changes are new numbered files under migrations/; Open applies any
// that the database has not seen yet.
package runstore
