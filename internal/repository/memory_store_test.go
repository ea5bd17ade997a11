// internal/repository/memory_store_test.go
package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"github.com/javajoker/verifyhub/internal/models"
)

type MemoryStoreTestSuite struct {
	suite.Suite
	ctx   context.Context
	store *MemoryStore
}

func TestMemoryStoreTestSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreTestSuite))
}

func (s *MemoryStoreTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewMemoryStore()
}

func (s *MemoryStoreTestSuite) license(status models.LicenseStatus) *models.License {
	now := time.Now().UTC()
	license := &models.License{
		Key:            "EML-AAAA-BBBB-CCCC-DDDD",
		KeyPrefix:      "EML",
		Status:         status,
		IssuedAt:       now,
		ExpiresAt:      now.Add(24 * time.Hour),
		UsageResetDate: now.Add(time.Hour),
	}
	s.Require().NoError(s.store.CreateLicense(s.ctx, license))
	return license
}

func (s *MemoryStoreTestSuite) TestTransaction_RollbackRestoresSnapshot() {
	boom := errors.New("boom")

	err := s.store.Transaction(s.ctx, func(tx Store) error {
		s.Require().NoError(tx.CreateUser(s.ctx, &models.User{Email: "inside@example.com", Name: "Inside"}))
		return boom
	})

	s.ErrorIs(err, boom)
	_, err = s.store.FindUserByEmail(s.ctx, "inside@example.com")
	s.ErrorIs(err, ErrNotFound)
}

func (s *MemoryStoreTestSuite) TestTransaction_RollbackKeepsConcurrentWrites() {
	boom := errors.New("boom")
	started := make(chan struct{})

	var g errgroup.Group
	err := s.store.Transaction(s.ctx, func(tx Store) error {
		s.Require().NoError(tx.CreateUser(s.ctx, &models.User{Email: "inside@example.com", Name: "Inside"}))
		g.Go(func() error {
			close(started)
			return s.store.CreateUser(s.ctx, &models.User{Email: "outside@example.com", Name: "Outside"})
		})
		<-started
		time.Sleep(20 * time.Millisecond)
		return boom
	})
	s.Require().NoError(g.Wait())

	s.ErrorIs(err, boom)
	_, err = s.store.FindUserByEmail(s.ctx, "inside@example.com")
	s.ErrorIs(err, ErrNotFound)
	outside, err := s.store.FindUserByEmail(s.ctx, "outside@example.com")
	s.Require().NoError(err)
	s.Equal("Outside", outside.Name)
}

func (s *MemoryStoreTestSuite) TestTransaction_Nested() {
	err := s.store.Transaction(s.ctx, func(tx Store) error {
		return tx.Transaction(s.ctx, func(inner Store) error {
			return inner.CreateUser(s.ctx, &models.User{Email: "nested@example.com", Name: "Nested"})
		})
	})

	s.Require().NoError(err)
	_, err = s.store.FindUserByEmail(s.ctx, "nested@example.com")
	s.NoError(err)
}

func (s *MemoryStoreTestSuite) TestIncrementUsage_OnlyActive() {
	tests := []struct {
		status models.LicenseStatus
		want   bool
	}{
		{models.LicenseStatusActive, true},
		{models.LicenseStatusRevoked, false},
		{models.LicenseStatusSuspended, false},
		{models.LicenseStatusExpired, false},
	}
	for _, tt := range tests {
		s.SetupTest()
		license := s.license(tt.status)

		applied, err := s.store.IncrementUsage(s.ctx, license.ID, time.Now().UTC())

		s.Require().NoError(err)
		s.Equal(tt.want, applied, tt.status)
		stored, err := s.store.FindLicenseByID(s.ctx, license.ID)
		s.Require().NoError(err)
		if tt.want {
			s.Equal(1, stored.VerificationsThisMonth)
		} else {
			s.Zero(stored.VerificationsThisMonth)
		}
	}
}
