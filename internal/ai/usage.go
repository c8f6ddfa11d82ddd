package ai

import (
	"context"
	"fmt"
	"sync"
)

// StageUsage is the token spend of one stage.
type StageUsage struct {
	Calls        int `json:"calls"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// UsageLedger tracks token usage per stage for a single workflow run, with an
// optional total budget.
type UsageLedger struct {
	mu     sync.RWMutex
	budget int64 // 0 means unlimited
	used   int64
	stages map[Stage]StageUsage
}

// NewUsageLedger creates a ledger. A budget of zero or less means unlimited.
func NewUsageLedger(budget int64) *UsageLedger {
	if budget < 0 {
		budget = 0
	}
	return &UsageLedger{
		budget: budget,
		stages: make(map[Stage]StageUsage),
	}
}

// Record adds one completion's token counts to stage.
func (l *UsageLedger) Record(stage Stage, inputTokens, outputTokens int) error {
	if inputTokens < 0 || outputTokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d/%d", inputTokens, outputTokens)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	u := l.stages[stage]
	u.Calls++
	u.InputTokens += inputTokens
	u.OutputTokens += outputTokens
	l.stages[stage] = u
	l.used += int64(inputTokens + outputTokens)
	return nil
}

// Exhausted reports whether the budget has been used up.
func (l *UsageLedger) Exhausted() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.budget > 0 && l.used >= l.budget
}

// Used returns total tokens recorded so far.
func (l *UsageLedger) Used() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.used
}

// Snapshot returns usage keyed by stage name.
func (l *UsageLedger) Snapshot() map[string]StageUsage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]StageUsage, len(l.stages))
	for stage, u := range l.stages {
		out[stage.String()] = u
	}
	return out
}

type ledgerKey struct{}

// WithUsage returns a context whose generations are recorded on l.
func WithUsage(ctx context.Context, l *UsageLedger) context.Context {
	return context.WithValue(ctx, ledgerKey{}, l)
}

// UsageFromContext returns the ledger attached by WithUsage, or nil.
func UsageFromContext(ctx context.Context) *UsageLedger {
	l, _ := ctx.Value(ledgerKey{}).(*UsageLedger)
	return l
}
