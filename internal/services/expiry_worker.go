// internal/services/expiry_worker.go
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/javajoker/verifyhub/internal/config"
	"github.com/javajoker/verifyhub/internal/metrics"
)

const sweepKey = "expire-overdue"

// ExpiryWorker periodically flips overdue Active licenses to Expired. Reads already
// treat overdue licenses as expired, so a missed tick only delays the stored status.
type ExpiryWorker struct {
	licenses *LicenseService
	interval time.Duration
	timeout  time.Duration
	group    singleflight.Group

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewExpiryWorker(licenses *LicenseService, cfg config.LicensingConfig) *ExpiryWorker {
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	timeout := cfg.SweepTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &ExpiryWorker{
		licenses: licenses,
		interval: interval,
		timeout:  timeout,
	}
}

// Start runs one sweep immediately and then one per interval until ctx is done or
// Stop is called. Calling Start twice is a no-op.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(ctx, w.done)

	logrus.WithField("interval", w.interval.String()).Info("License expiry worker started")
}

// Stop ends the loop and waits for it to exit. An in-flight sweep runs to completion.
func (w *ExpiryWorker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	logrus.Info("License expiry worker stopped")
}

func (w *ExpiryWorker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		// Errors are logged by RunOnce and retried next tick.
		_, _ = w.RunOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce sweeps now. Concurrent callers (the ticker and a manual admin check) share
// a single sweep and its result. The sweep is not cancelled with ctx.
func (w *ExpiryWorker) RunOnce(ctx context.Context) (int64, error) {
	v, err, shared := w.group.Do(sweepKey, func() (interface{}, error) {
		return w.sweep(context.WithoutCancel(ctx))
	})
	if shared {
		logrus.Debug("Expiry sweep joined an in-flight run")
	}
	count, _ := v.(int64)
	return count, err
}

func (w *ExpiryWorker) sweep(parent context.Context) (count int64, err error) {
	ctx, cancel := context.WithTimeout(parent, w.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("expiry sweep panicked: %v", r)
		}

		metrics.SweepDuration.Observe(time.Since(start).Seconds())
		fields := logrus.Fields{
			"expired":  count,
			"duration": time.Since(start).String(),
		}
		if err != nil {
			metrics.SweepRuns.WithLabelValues("failure").Inc()
			logrus.WithFields(fields).WithError(err).Error("License expiry sweep failed")
			return
		}
		metrics.SweepRuns.WithLabelValues("success").Inc()
		metrics.SweepExpired.Add(float64(count))
		if count > 0 {
			logrus.WithFields(fields).Info("Expired overdue licenses")
		}
	}()

	return w.licenses.ExpireOverdue(ctx)
}
