// Package logs tails the courtside log file for the `courtside logs` command.
//
// Reads are bounded in memory: the last N matching lines are kept in a ring,
// and follow mode polls from a byte offset until new lines arrive or the wait
// expires. A Filter narrows output to one run's lines in either the console or
// JSON log format.
package logs
