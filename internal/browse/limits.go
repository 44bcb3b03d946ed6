package browse

import (
	"fmt"
	"time"
)

// Limits holds the operational constants of the browse engine. The defaults
// are operationally tuned values, not derived physics, so every one of them
// is exposed as configuration.
type Limits struct {
	// SoftLimit is the node count at which in-progress branches may finish
	// but no new top-level branches are started.
	SoftLimit int `json:"soft_limit" koanf:"soft_limit"`

	// HardLimit is the absolute node count ceiling for one exploration.
	HardLimit int `json:"hard_limit" koanf:"hard_limit"`

	// MaxBranchDepth is the explorer's safety valve against pathological
	// namespace depth, independent of the node-count limits.
	MaxBranchDepth int `json:"max_branch_depth" koanf:"max_branch_depth"`

	// MaxRequestedDepth caps caller-supplied depths.
	MaxRequestedDepth int `json:"max_requested_depth" koanf:"max_requested_depth"`

	// WideBranchChildren rejects depth > 1 when the depth-1 probe returns
	// more direct children than this.
	WideBranchChildren int `json:"wide_branch_children" koanf:"wide_branch_children"`

	// DeepBranchChildren rejects depth > 2 when the depth-1 probe returns
	// more direct children than this.
	DeepBranchChildren int `json:"deep_branch_children" koanf:"deep_branch_children"`

	// PageLimit bounds one page of output and is the auto-root budget.
	PageLimit int `json:"page_limit" koanf:"page_limit"`

	// BatchDeepRemaining and BatchMidRemaining control the explorer's
	// batch-depth heuristic: batch depth 3 while more than BatchDeepRemaining
	// nodes of budget remain, 2 while more than BatchMidRemaining remain,
	// else 1.
	BatchDeepRemaining int `json:"batch_deep_remaining" koanf:"batch_deep_remaining"`
	BatchMidRemaining  int `json:"batch_mid_remaining" koanf:"batch_mid_remaining"`

	// ReplyTimeoutSeconds is the per-call correlator deadline.
	ReplyTimeoutSeconds int `json:"reply_timeout_seconds" koanf:"reply_timeout_seconds"`

	// CacheTTLSeconds is the result cache entry lifetime.
	CacheTTLSeconds int `json:"cache_ttl_seconds" koanf:"cache_ttl_seconds"`

	// CacheMaxBytes is the result cache size ceiling. Writes that would push
	// the cache past it are skipped rather than evicting entries.
	CacheMaxBytes int64 `json:"cache_max_bytes" koanf:"cache_max_bytes"`
}

// DefaultLimits returns the tuned production defaults.
func DefaultLimits() *Limits {
	return &Limits{
		SoftLimit:           800,
		HardLimit:           1000,
		MaxBranchDepth:      10,
		MaxRequestedDepth:   5,
		WideBranchChildren:  100,
		DeepBranchChildren:  50,
		PageLimit:           800,
		BatchDeepRemaining:  700,
		BatchMidRemaining:   400,
		ReplyTimeoutSeconds: 120,
		CacheTTLSeconds:     300,
		CacheMaxBytes:       50 << 20,
	}
}

// ReplyTimeout returns the correlator deadline as a duration.
func (l *Limits) ReplyTimeout() time.Duration {
	return time.Duration(l.ReplyTimeoutSeconds) * time.Second
}

// CacheTTL returns the cache entry lifetime as a duration.
func (l *Limits) CacheTTL() time.Duration {
	return time.Duration(l.CacheTTLSeconds) * time.Second
}

// Validate checks internal consistency.
func (l *Limits) Validate() error {
	if l.SoftLimit <= 0 {
		return fmt.Errorf("soft_limit must be positive, got %d", l.SoftLimit)
	}
	if l.HardLimit < l.SoftLimit {
		return fmt.Errorf("hard_limit %d must be >= soft_limit %d", l.HardLimit, l.SoftLimit)
	}
	if l.MaxBranchDepth <= 0 {
		return fmt.Errorf("max_branch_depth must be positive, got %d", l.MaxBranchDepth)
	}
	if l.MaxRequestedDepth < 1 {
		return fmt.Errorf("max_requested_depth must be >= 1, got %d", l.MaxRequestedDepth)
	}
	if l.DeepBranchChildren <= 0 || l.WideBranchChildren <= l.DeepBranchChildren {
		return fmt.Errorf("wide_branch_children %d must be > deep_branch_children %d > 0",
			l.WideBranchChildren, l.DeepBranchChildren)
	}
	if l.PageLimit <= 0 {
		return fmt.Errorf("page_limit must be positive, got %d", l.PageLimit)
	}
	if l.BatchMidRemaining <= 0 || l.BatchDeepRemaining <= l.BatchMidRemaining {
		return fmt.Errorf("batch_deep_remaining %d must be > batch_mid_remaining %d > 0",
			l.BatchDeepRemaining, l.BatchMidRemaining)
	}
	if l.ReplyTimeoutSeconds <= 0 {
		return fmt.Errorf("reply_timeout_seconds must be positive, got %d", l.ReplyTimeoutSeconds)
	}
	if l.CacheTTLSeconds <= 0 {
		return fmt.Errorf("cache_ttl_seconds must be positive, got %d", l.CacheTTLSeconds)
	}
	if l.CacheMaxBytes <= 0 {
		return fmt.Errorf("cache_max_bytes must be positive, got %d", l.CacheMaxBytes)
	}
	return nil
}
