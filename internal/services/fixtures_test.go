// internal/services/fixtures_test.go
package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/javajoker/verifyhub/internal/config"
	"github.com/javajoker/verifyhub/internal/models"
	"github.com/javajoker/verifyhub/internal/repository"
	"github.com/javajoker/verifyhub/internal/utils"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// serviceSuite wires the license services against the in-memory store with a
// controllable clock. Suites embed it.
type serviceSuite struct {
	suite.Suite

	ctx      context.Context
	store    *repository.MemoryStore
	clock    *testClock
	plugins  *utils.PluginTokenIssuer
	cfg      config.LicensingConfig
	licenses *LicenseService

	user         *models.User
	emailProduct models.Product
	starter      models.Plan
	agency       models.Plan
}

func (s *serviceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = repository.NewMemoryStore()
	s.clock = &testClock{now: time.Now().UTC().Truncate(time.Second)}
	s.plugins = utils.NewPluginTokenIssuer("plugin-secret-for-tests-9876543210", "VerifyHubPortal", "VerifyHubPlugin")
	s.cfg = config.LicensingConfig{
		SweepInterval:         time.Hour,
		SweepTimeout:          time.Minute,
		SweepBatchSize:        100,
		MaxKeyGenerationTries: 5,
	}

	s.licenses = NewLicenseService(s.store, s.plugins, s.cfg)
	s.licenses.now = s.clock.Now

	s.emailProduct = models.Product{
		BaseModel: models.BaseModel{ID: uuid.New()},
		Name:      "Email Verify",
		Slug:      models.ProductSlugEmail,
		IsActive:  true,
	}
	s.starter = models.Plan{
		BaseModel:                models.BaseModel{ID: uuid.New()},
		Name:                     "Starter",
		PriceUSD:                 49,
		DurationDays:             365,
		MaxDomains:               1,
		MaxVerificationsPerMonth: 500,
	}
	s.agency = models.Plan{
		BaseModel:                models.BaseModel{ID: uuid.New()},
		Name:                     "Agency",
		PriceUSD:                 199,
		DurationDays:             365,
		MaxDomains:               5,
		MaxVerificationsPerMonth: 5000,
	}
	s.store.SeedProduct(s.emailProduct, s.starter, s.agency)
	s.starter.ProductID = s.emailProduct.ID
	s.agency.ProductID = s.emailProduct.ID

	s.user = s.createUser("owner@example.com", "correct-horse-battery")
}

func (s *serviceSuite) createUser(email, password string) *models.User {
	user := &models.User{
		Email:    email,
		Name:     "Owner",
		Role:     models.UserRoleCustomer,
		IsActive: true,
	}
	s.Require().NoError(user.SetPassword(password))
	s.Require().NoError(s.store.CreateUser(s.ctx, user))
	return user
}

func (s *serviceSuite) issue(plan models.Plan) *models.License {
	license, err := s.licenses.Create(s.ctx, CreateLicenseParams{
		UserID:    s.user.ID,
		ProductID: s.emailProduct.ID,
		PlanID:    plan.ID,
	})
	s.Require().NoError(err)
	return license
}

func (s *serviceSuite) activate(license *models.License, domain string) *models.License {
	activated, err := s.licenses.Activate(s.ctx, ActivateRequest{LicenseKey: license.Key, Domain: domain})
	s.Require().NoError(err)
	return activated
}

func (s *serviceSuite) reload(license *models.License) *models.License {
	current, err := s.store.FindLicenseByID(s.ctx, license.ID)
	s.Require().NoError(err)
	return current
}

func (s *serviceSuite) pluginClaims(license *models.License) *utils.PluginClaims {
	return &utils.PluginClaims{
		LicenseID:  license.ID.String(),
		LicenseKey: license.Key,
		Domain:     license.InstalledDomain,
	}
}
