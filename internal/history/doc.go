// Package history provides the append-only audit trail for schedule
// changes and execution outcomes.
//
// The Recorder is wired into the schedule store (every successful
// mutation lands here with before/after snapshots) and into the
// executor (every attempted hardware transition lands here as an
// EXECUTED or FAILED entry). Entries are queryable with filtered,
// paginated listing.
package history
