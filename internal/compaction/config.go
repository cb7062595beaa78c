package compaction

// Config holds configuration for history compression.
type Config struct {
	// TokenThreshold is the estimated token count that triggers compression.
	// Default: 100000
	TokenThreshold int `json:"token_threshold"`

	// KeepRecentCount is the number of recent messages to keep verbatim.
	// Default: 10
	KeepRecentCount int `json:"keep_recent_count"`

	// SummaryMaxTokens is the maximum tokens for each summary.
	// Default: 500
	SummaryMaxTokens int `json:"summary_max_tokens"`

	// ChunkMaxTokens is the maximum tokens per chunk for summarization.
	// Default: 4000
	ChunkMaxTokens int `json:"chunk_max_tokens"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		TokenThreshold:   100000,
		KeepRecentCount:  10,
		SummaryMaxTokens: 500,
		ChunkMaxTokens:   4000,
	}
}
