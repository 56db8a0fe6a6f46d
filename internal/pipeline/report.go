package pipeline

import "time"

type RunReport struct {
	RunID     string
	Collector string // requested
	Source    string // actually used
	Threshold int

	Processed    int
	Held         int
	NewAddresses int
	Alerts       int

	StartedAt  time.Time
	FinishedAt time.Time
}

func (r RunReport) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }
