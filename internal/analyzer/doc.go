// Package analyzer reconstructs conversation threads from loose email
// messages. The pipeline has four stages: batched oracle grouping, pairwise
// connection scoring over group summaries, union-find merging of connected
// groups, and assembly of the final Thread aggregates with blockers, status
// and response metadata.
//
// Every oracle interaction degrades gracefully: a failed grouping batch falls
// back to singleton groups, a failed tie-break verification counts as no
// connection, and a failed blocker scan yields an empty blocker list. A run
// over a corpus therefore always terminates with a result.
package analyzer
