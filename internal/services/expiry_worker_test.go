// internal/services/expiry_worker_test.go
package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"github.com/javajoker/verifyhub/internal/models"
)

type ExpiryWorkerTestSuite struct {
	serviceSuite
	worker *ExpiryWorker
	hook   *test.Hook
}

func TestExpiryWorkerTestSuite(t *testing.T) {
	suite.Run(t, new(ExpiryWorkerTestSuite))
}

func (s *ExpiryWorkerTestSuite) SetupTest() {
	s.serviceSuite.SetupTest()
	s.worker = NewExpiryWorker(s.licenses, s.cfg)
	s.hook = test.NewGlobal()
}

func (s *ExpiryWorkerTestSuite) TearDownTest() {
	s.worker.Stop()
	s.hook.Reset()
}

func (s *ExpiryWorkerTestSuite) TestRunOnce_ExpiresOverdueAndLogs() {
	overdue := s.issue(s.starter)
	s.clock.Advance(366 * 24 * time.Hour)
	fresh := s.issue(s.starter)

	count, err := s.worker.RunOnce(s.ctx)

	s.Require().NoError(err)
	s.Equal(int64(1), count)
	s.Equal(models.LicenseStatusExpired, s.reload(overdue).Status)
	s.Equal(models.LicenseStatusActive, s.reload(fresh).Status)

	entry := s.hook.LastEntry()
	s.Require().NotNil(entry)
	s.Equal(logrus.InfoLevel, entry.Level)
	s.Equal("Expired overdue licenses", entry.Message)
	s.Equal(int64(1), entry.Data["expired"])
}

func (s *ExpiryWorkerTestSuite) TestRunOnce_NothingToDoIsQuiet() {
	s.issue(s.starter)
	s.hook.Reset()

	count, err := s.worker.RunOnce(s.ctx)

	s.Require().NoError(err)
	s.Zero(count)
	s.Empty(s.hook.AllEntries())
}

func (s *ExpiryWorkerTestSuite) TestRunOnce_StoreFailureIsLogged() {
	s.store.FailNext("ExpireOverdue", errors.New("connection reset"))

	_, err := s.worker.RunOnce(s.ctx)

	s.Require().Error(err)
	entry := s.hook.LastEntry()
	s.Require().NotNil(entry)
	s.Equal(logrus.ErrorLevel, entry.Level)
	s.Equal("License expiry sweep failed", entry.Message)
}

func (s *ExpiryWorkerTestSuite) TestRunOnce_IgnoresCanceledContext() {
	license := s.issue(s.starter)
	s.clock.Advance(366 * 24 * time.Hour)

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	count, err := s.worker.RunOnce(ctx)

	s.Require().NoError(err)
	s.Equal(int64(1), count)
	s.Equal(models.LicenseStatusExpired, s.reload(license).Status)
}

func (s *ExpiryWorkerTestSuite) TestRunOnce_ConcurrentCallersAgree() {
	for i := 0; i < 5; i++ {
		s.issue(s.starter)
	}
	s.clock.Advance(366 * 24 * time.Hour)

	var g errgroup.Group
	var mu sync.Mutex
	var total int64
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			count, err := s.worker.RunOnce(s.ctx)
			mu.Lock()
			total += count
			mu.Unlock()
			return err
		})
	}
	s.Require().NoError(g.Wait())

	// Each license flips exactly once whether callers shared a sweep or not.
	s.GreaterOrEqual(total, int64(5))
	count, err := s.licenses.ExpireOverdue(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *ExpiryWorkerTestSuite) TestStartSweepsImmediately() {
	license := s.issue(s.starter)
	s.clock.Advance(366 * 24 * time.Hour)

	s.worker.Start(s.ctx)
	s.worker.Start(s.ctx)
	s.worker.Stop()

	s.Equal(models.LicenseStatusExpired, s.reload(license).Status)
}
