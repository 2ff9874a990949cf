package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ScheduleReconciliation registers Run on a cron schedule such as "@every 5m". Overlapping runs
// are skipped. The caller starts and stops the returned scheduler.
func ScheduleReconciliation(spec string, r *Reconciler, timeout time.Duration) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := r.Run(ctx); err != nil {
			r.log.Error("scheduled reconciliation failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile schedule %q: %w", spec, err)
	}
	return c, nil
}
