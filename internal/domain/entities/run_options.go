package entities

import "time"

// RunOptions holds runtime options for one resolution batch.
type RunOptions struct {
	Workers           int
	CallTimeout       time.Duration
	RequestsPerSecond float64 // 0 disables client-side pacing
	BreakingPolicy    BreakingPolicy
}

// NewRunOptions derives run options from settings.
func NewRunOptions(settings *Settings) RunOptions {
	return RunOptions{
		Workers:           settings.Run.Workers,
		CallTimeout:       settings.GetCallTimeout(),
		RequestsPerSecond: settings.Run.RequestsPerSecond,
		BreakingPolicy:    settings.BreakingPolicy,
	}
}
