package analyzer

import (
	"github.com/refurd/portfolio-health-system/internal/email"
)

// Group is a transient cluster of messages during clustering, pre-merge.
// Groups are owned exclusively by the clustering phase: merges absorb one
// group's messages into another's and the absorbed index becomes a redirect.
type Group struct {
	Messages []*email.Message
}

// GroupMeta is diagnostic metadata the grouping oracle reported for a group.
type GroupMeta struct {
	Topic          string   `json:"main_topic"`
	KeyIdentifiers []string `json:"key_identifiers"`
	Confidence     float64  `json:"confidence"`
}

// MergeHint is an informational potential-merge suggestion between two
// groups of the same batch. Hints are surfaced for diagnostics but do not
// drive merging; cross-batch connections are recomputed independently.
type MergeHint struct {
	Group1     int     `json:"group1_idx"`
	Group2     int     `json:"group2_idx"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// GroupingResult is the output of the initial grouping pass.
type GroupingResult struct {
	Groups []*Group
	Meta   []GroupMeta
	Hints  []MergeHint
}

// Connection is a scored link between two initial groups.
type Connection struct {
	I       int      `json:"thread1_idx"`
	J       int      `json:"thread2_idx"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// ScoringConfig names the tunable policy of the connection scorer. Each
// signal contributes its weight when its condition holds; the sum is clamped
// to 1.0 and a pair connects when it exceeds ConnectionThreshold.
type ScoringConfig struct {
	EmbeddingSimilarityThreshold float64
	EmbeddingSimilarityWeight    float64

	ParticipantOverlapMin    int
	ParticipantOverlapWeight float64

	AnswerCrossRefWeight float64

	SubjectReferenceWeight float64

	ReplyLinkWeight float64

	SharedKeyTermsMin    int
	SharedKeyTermsWeight float64

	// Oracle tie-break: invoked only when the running total falls inside
	// (TieBreakLow, TieBreakHigh), so clearly-connected and
	// clearly-unconnected pairs never cost an oracle call.
	TieBreakLow    float64
	TieBreakHigh   float64
	TieBreakWeight float64

	// TieBreakSampleSize is how many messages of each group the oracle
	// sees when asked whether two groups are the same conversation.
	TieBreakSampleSize int

	ConnectionThreshold float64
}

// DefaultScoringConfig returns the stock signal weights and thresholds.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		EmbeddingSimilarityThreshold: 0.85,
		EmbeddingSimilarityWeight:    0.3,
		ParticipantOverlapMin:        2,
		ParticipantOverlapWeight:     0.2,
		AnswerCrossRefWeight:         0.4,
		SubjectReferenceWeight:       0.2,
		ReplyLinkWeight:              0.3,
		SharedKeyTermsMin:            3,
		SharedKeyTermsWeight:         0.2,
		TieBreakLow:                  0.5,
		TieBreakHigh:                 0.7,
		TieBreakWeight:               0.2,
		TieBreakSampleSize:           3,
		ConnectionThreshold:          0.7,
	}
}
