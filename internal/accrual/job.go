// Package accrual runs the interest sweep over all interest-bearing
// accounts, either on demand or on a cron schedule.
package accrual

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"pulabank.org/internal/audit"
	"pulabank.org/internal/ledger"
	"pulabank.org/internal/obs"
)

// Job sweeps the ledger and credits interest per account. Each account's
// outcome is independent; the sweep never stops on a single failure.
type Job struct {
	svc     ledger.Service
	timeout time.Duration
	cron    *cron.Cron
}

// New creates an accrual job over the given ledger service.
func New(svc ledger.Service) *Job {
	return &Job{svc: svc, timeout: 5 * time.Minute}
}

// Run performs one sweep and returns its summary.
func (j *Job) Run(ctx context.Context) (ledger.AccrualSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	started := time.Now()
	summary, err := j.svc.BatchAccrueInterest(ctx)
	if err != nil {
		return summary, fmt.Errorf("batch accrual: %w", err)
	}

	obs.AddInterestPaid(int64(summary.TotalInterest))
	_ = audit.LogEvent(ctx, "ledger.interest.batch", map[string]any{
		"processed":      summary.Processed,
		"total_interest": int64(summary.TotalInterest),
		"failed":         len(summary.Failed),
		"duration_ms":    time.Since(started).Milliseconds(),
	})
	return summary, nil
}

// Start schedules periodic sweeps with the given cron expression (e.g.
// "@monthly"). It returns an error for an invalid expression; Stop must be
// called on shutdown.
func (j *Job) Start(schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := j.Run(context.Background()); err != nil {
			obs.Logger().Printf(`{"level":"error","msg":"interest sweep failed","err":%q}`, err.Error())
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}
	c.Start()
	j.cron = c
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (j *Job) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}
