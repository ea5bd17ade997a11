// internal/repository/memory_store.go
package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/javajoker/verifyhub/internal/models"
	"github.com/javajoker/verifyhub/internal/utils"
)

type memoryData struct {
	users     map[uuid.UUID]models.User
	products  map[uuid.UUID]models.Product
	plans     map[uuid.UUID]models.Plan
	licenses  map[uuid.UUID]models.License
	telemetry []models.TelemetryRecord
	tokens    map[string]models.RefreshToken
	orders    []models.Order
	settings  map[string]models.PlatformSetting
	audit     []models.AuditLog
}

func newMemoryData() *memoryData {
	return &memoryData{
		users:    make(map[uuid.UUID]models.User),
		products: make(map[uuid.UUID]models.Product),
		plans:    make(map[uuid.UUID]models.Plan),
		licenses: make(map[uuid.UUID]models.License),
		tokens:   make(map[string]models.RefreshToken),
		settings: make(map[string]models.PlatformSetting),
	}
}

func (d *memoryData) clone() *memoryData {
	c := newMemoryData()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.products {
		c.products[k] = v
	}
	for k, v := range d.plans {
		c.plans[k] = v
	}
	for k, v := range d.licenses {
		c.licenses[k] = v
	}
	for k, v := range d.tokens {
		c.tokens[k] = v
	}
	for k, v := range d.settings {
		c.settings[k] = v
	}
	c.telemetry = append([]models.TelemetryRecord(nil), d.telemetry...)
	c.orders = append([]models.Order(nil), d.orders...)
	c.audit = append([]models.AuditLog(nil), d.audit...)
	return c
}

type memoryState struct {
	// gate is held shared by each call and exclusively by a transaction.
	gate sync.RWMutex
	mu   sync.Mutex
	data *memoryData
	now  func() time.Time

	failures map[string]error
}

// MemoryStore is an in-process Store used by tests and local runs without
// PostgreSQL. Each method is atomic under one mutex. A transaction has the
// store to itself: calls from outside it wait until it commits or rolls back,
// so restoring the snapshot on failure never discards another caller's write.
type MemoryStore struct {
	*memoryState
	inTx bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{memoryState: &memoryState{
		data:     newMemoryData(),
		now:      time.Now,
		failures: make(map[string]error),
	}}
}

func (s *MemoryStore) lock() func() {
	if !s.inTx {
		s.gate.RLock()
	}
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		if !s.inTx {
			s.gate.RUnlock()
		}
	}
}

// FailNext makes the next call of the named method return err.
func (s *MemoryStore) FailNext(method string, err error) {
	defer s.lock()()
	s.failures[method] = err
}

func (s *MemoryStore) takeFailure(method string) error {
	if err, ok := s.failures[method]; ok {
		delete(s.failures, method)
		return err
	}
	return nil
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.gate.Lock()
	defer s.gate.Unlock()

	tx := &MemoryStore{memoryState: s.memoryState, inTx: true}
	tx.mu.Lock()
	snapshot := tx.data.clone()
	tx.mu.Unlock()

	if err := fn(tx); err != nil {
		tx.mu.Lock()
		tx.data = snapshot
		tx.mu.Unlock()
		return err
	}
	return nil
}

func stamp(base *models.BaseModel, now time.Time) {
	if base.ID == uuid.Nil {
		base.ID = uuid.New()
	}
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
}

// Catalog

func (s *MemoryStore) SeedProduct(product models.Product, plans ...models.Plan) {
	defer s.lock()()
	now := s.now()
	stamp(&product.BaseModel, now)
	product.Plans = nil
	s.data.products[product.ID] = product
	for _, plan := range plans {
		plan.ProductID = product.ID
		plan.Product = nil
		stamp(&plan.BaseModel, now)
		s.data.plans[plan.ID] = plan
	}
}

func (s *MemoryStore) ListProducts(ctx context.Context, activeOnly bool) ([]models.Product, error) {
	defer s.lock()()
	if err := s.takeFailure("ListProducts"); err != nil {
		return nil, err
	}

	var products []models.Product
	for _, product := range s.data.products {
		if activeOnly && !product.IsActive {
			continue
		}
		for _, plan := range s.data.plans {
			if plan.ProductID == product.ID {
				product.Plans = append(product.Plans, plan)
			}
		}
		sort.Slice(product.Plans, func(i, j int) bool { return product.Plans[i].PriceUSD < product.Plans[j].PriceUSD })
		products = append(products, product)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (s *MemoryStore) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	defer s.lock()()
	product, ok := s.data.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &product, nil
}

func (s *MemoryStore) FindPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	defer s.lock()()
	plan, ok := s.data.plans[id]
	if !ok {
		return nil, ErrNotFound
	}
	if product, ok := s.data.products[plan.ProductID]; ok {
		plan.Product = &product
	}
	return &plan, nil
}

func (s *MemoryStore) SavePlan(ctx context.Context, plan *models.Plan) error {
	defer s.lock()()
	if err := s.takeFailure("SavePlan"); err != nil {
		return err
	}
	stored := *plan
	stored.Product = nil
	stamp(&stored.BaseModel, s.now())
	s.data.plans[stored.ID] = stored
	plan.BaseModel = stored.BaseModel
	return nil
}

// Licenses

func (s *MemoryStore) withRelations(license models.License) *models.License {
	if plan, ok := s.data.plans[license.PlanID]; ok {
		license.Plan = &plan
	}
	if product, ok := s.data.products[license.ProductID]; ok {
		license.Product = &product
	}
	return &license
}

func (s *MemoryStore) LicenseKeyExists(ctx context.Context, key string) (bool, error) {
	defer s.lock()()
	if err := s.takeFailure("LicenseKeyExists"); err != nil {
		return false, err
	}
	for _, license := range s.data.licenses {
		if license.Key == key {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) CreateLicense(ctx context.Context, license *models.License) error {
	defer s.lock()()
	if err := s.takeFailure("CreateLicense"); err != nil {
		return err
	}
	for _, existing := range s.data.licenses {
		if existing.Key == license.Key {
			return ErrDuplicateKey
		}
	}

	stored := *license
	stored.User, stored.Product, stored.Plan, stored.Telemetry = nil, nil, nil, nil
	stamp(&stored.BaseModel, s.now())
	s.data.licenses[stored.ID] = stored
	license.BaseModel = stored.BaseModel
	return nil
}

func (s *MemoryStore) FindLicenseByKey(ctx context.Context, key string) (*models.License, error) {
	defer s.lock()()
	if err := s.takeFailure("FindLicenseByKey"); err != nil {
		return nil, err
	}
	for _, license := range s.data.licenses {
		if license.Key == key {
			return s.withRelations(license), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindLicenseByID(ctx context.Context, id uuid.UUID) (*models.License, error) {
	defer s.lock()()
	license, ok := s.data.licenses[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.withRelations(license), nil
}

func (s *MemoryStore) ListLicensesByUser(ctx context.Context, userID uuid.UUID) ([]models.License, error) {
	defer s.lock()()
	var licenses []models.License
	for _, license := range s.data.licenses {
		if license.UserID == userID {
			licenses = append(licenses, *s.withRelations(license))
		}
	}
	sort.Slice(licenses, func(i, j int) bool { return licenses[i].IssuedAt.After(licenses[j].IssuedAt) })
	return licenses, nil
}

func (s *MemoryStore) ListLicenses(ctx context.Context, filter LicenseFilter, params utils.PaginationParams) ([]models.License, int64, error) {
	defer s.lock()()
	var matched []models.License
	for _, license := range s.data.licenses {
		if filter.UserID != nil && license.UserID != *filter.UserID {
			continue
		}
		if filter.Status != "" && license.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(license.Key, filter.Search) && !strings.Contains(license.InstalledDomain, filter.Search) {
			continue
		}
		matched = append(matched, *s.withRelations(license))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].IssuedAt.After(matched[j].IssuedAt) })
	return page(matched, params), int64(len(matched)), nil
}

func (s *MemoryStore) FindPlatformLicense(ctx context.Context, userID, productID uuid.UUID) (*models.License, error) {
	defer s.lock()()
	var found *models.License
	for _, license := range s.data.licenses {
		if license.UserID == userID && license.ProductID == productID {
			if found == nil || license.ExpiresAt.After(found.ExpiresAt) {
				l := license
				found = &l
			}
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (s *MemoryStore) BindDomain(ctx context.Context, params BindDomainParams) (bool, error) {
	defer s.lock()()
	if err := s.takeFailure("BindDomain"); err != nil {
		return false, err
	}
	license, ok := s.data.licenses[params.LicenseID]
	if !ok || license.Status != models.LicenseStatusActive || params.Now.After(license.ExpiresAt) {
		return false, nil
	}
	if params.SingleDomain && license.IsBoundElsewhere(params.Domain) {
		return false, nil
	}

	activatedAt := params.Now
	license.InstalledDomain = params.Domain
	license.ActivatedAt = &activatedAt
	license.InstalledBy = params.InstalledBy
	license.PluginVersion = params.PluginVersion
	license.ActivationCount++
	license.UpdatedAt = s.now()
	s.data.licenses[license.ID] = license
	return true, nil
}

func (s *MemoryStore) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.TransitionStatus(ctx, id, []models.LicenseStatus{models.LicenseStatusActive}, models.LicenseStatusExpired)
}

func (s *MemoryStore) ResetUsage(ctx context.Context, id uuid.UUID, now, nextReset time.Time) (bool, error) {
	defer s.lock()()
	if err := s.takeFailure("ResetUsage"); err != nil {
		return false, err
	}
	license, ok := s.data.licenses[id]
	if !ok || !now.After(license.UsageResetDate) {
		return false, nil
	}
	license.VerificationsThisMonth = 0
	license.UsageResetDate = nextReset
	s.data.licenses[id] = license
	return true, nil
}

func (s *MemoryStore) IncrementUsage(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	defer s.lock()()
	if err := s.takeFailure("IncrementUsage"); err != nil {
		return false, err
	}
	license, ok := s.data.licenses[id]
	if !ok || license.Status != models.LicenseStatusActive || license.IsExpiredAt(now) {
		return false, nil
	}
	license.VerificationsThisMonth++
	s.data.licenses[id] = license
	return true, nil
}

func (s *MemoryStore) TransitionStatus(ctx context.Context, id uuid.UUID, from []models.LicenseStatus, to models.LicenseStatus) (bool, error) {
	defer s.lock()()
	if err := s.takeFailure("TransitionStatus"); err != nil {
		return false, err
	}
	license, ok := s.data.licenses[id]
	if !ok {
		return false, nil
	}
	for _, status := range from {
		if license.Status == status {
			license.Status = to
			license.UpdatedAt = s.now()
			s.data.licenses[id] = license
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ExpireOverdue(ctx context.Context, now time.Time, batchSize int) (int64, error) {
	defer s.lock()()
	if err := s.takeFailure("ExpireOverdue"); err != nil {
		return 0, err
	}
	var count int64
	for id, license := range s.data.licenses {
		if license.Status == models.LicenseStatusActive && license.ExpiresAt.Before(now) {
			license.Status = models.LicenseStatusExpired
			s.data.licenses[id] = license
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) UpdatePlatformKey(ctx context.Context, update PlatformKeyUpdate) error {
	defer s.lock()()
	license, ok := s.data.licenses[update.LicenseID]
	if !ok {
		return ErrNotFound
	}
	for id, existing := range s.data.licenses {
		if id != update.LicenseID && existing.Key == update.Key {
			return ErrDuplicateKey
		}
	}
	license.Key = update.Key
	license.KeyPrefix = utils.LicenseKeyPrefix(update.Key)
	license.InstalledDomain = update.Domain
	license.Status = models.LicenseStatusActive
	if update.ExpiresAt != nil {
		license.ExpiresAt = update.ExpiresAt.UTC()
	}
	s.data.licenses[license.ID] = license
	return nil
}

// Telemetry

func (s *MemoryStore) CreateTelemetry(ctx context.Context, record *models.TelemetryRecord) error {
	defer s.lock()()
	if err := s.takeFailure("CreateTelemetry"); err != nil {
		return err
	}
	if _, ok := s.data.licenses[record.LicenseID]; !ok {
		return ErrNotFound
	}
	stored := *record
	stored.License = nil
	stamp(&stored.BaseModel, s.now())
	s.data.telemetry = append(s.data.telemetry, stored)
	record.BaseModel = stored.BaseModel
	return nil
}

func (s *MemoryStore) matchTelemetry(filter TelemetryFilter) []models.TelemetryRecord {
	var matched []models.TelemetryRecord
	for _, record := range s.data.telemetry {
		if filter.LicenseID != nil && record.LicenseID != *filter.LicenseID {
			continue
		}
		if filter.UserID != nil {
			license, ok := s.data.licenses[record.LicenseID]
			if !ok || license.UserID != *filter.UserID {
				continue
			}
		}
		if filter.Domain != "" && !strings.Contains(record.PluginDomain, filter.Domain) {
			continue
		}
		matched = append(matched, record)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].ReceivedAt.After(matched[j].ReceivedAt) })
	return matched
}

func (s *MemoryStore) ListTelemetry(ctx context.Context, filter TelemetryFilter, params utils.PaginationParams) ([]models.TelemetryRecord, int64, error) {
	defer s.lock()()
	matched := s.matchTelemetry(filter)
	return page(matched, params), int64(len(matched)), nil
}

func (s *MemoryStore) ExportTelemetry(ctx context.Context, filter TelemetryFilter, limit int) ([]models.TelemetryRecord, error) {
	defer s.lock()()
	matched := s.matchTelemetry(filter)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// TelemetryCount is a test helper.
func (s *MemoryStore) TelemetryCount() int {
	defer s.lock()()
	return len(s.data.telemetry)
}

// Users

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	defer s.lock()()
	if err := s.takeFailure("CreateUser"); err != nil {
		return err
	}
	for _, existing := range s.data.users {
		if existing.Email == user.Email {
			return ErrDuplicateKey
		}
	}
	stored := *user
	stored.Licenses, stored.Orders = nil, nil
	stamp(&stored.BaseModel, s.now())
	s.data.users[stored.ID] = stored
	user.BaseModel = stored.BaseModel
	return nil
}

func (s *MemoryStore) SaveUser(ctx context.Context, user *models.User) error {
	defer s.lock()()
	stored := *user
	stored.Licenses, stored.Orders = nil, nil
	stamp(&stored.BaseModel, s.now())
	s.data.users[stored.ID] = stored
	user.BaseModel = stored.BaseModel
	return nil
}

func (s *MemoryStore) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	defer s.lock()()
	user, ok := s.data.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (s *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	defer s.lock()()
	for _, user := range s.data.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListUsers(ctx context.Context, params utils.PaginationParams) ([]models.User, int64, error) {
	defer s.lock()()
	var users []models.User
	for _, user := range s.data.users {
		if params.Search != "" && !strings.Contains(user.Email, params.Search) && !strings.Contains(user.Name, params.Search) {
			continue
		}
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return page(users, params), int64(len(users)), nil
}

// Tokens

func (s *MemoryStore) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	defer s.lock()()
	if _, exists := s.data.tokens[token.Token]; exists {
		return ErrDuplicateKey
	}
	stored := *token
	stored.User = nil
	stamp(&stored.BaseModel, s.now())
	s.data.tokens[stored.Token] = stored
	token.BaseModel = stored.BaseModel
	return nil
}

func (s *MemoryStore) ConsumeRefreshToken(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error) {
	defer s.lock()()
	token, ok := s.data.tokens[tokenHash]
	if !ok || !token.UsableAt(now) {
		return nil, ErrNotFound
	}
	token.IsRevoked = true
	s.data.tokens[tokenHash] = token
	return &token, nil
}

func (s *MemoryStore) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	defer s.lock()()
	if token, ok := s.data.tokens[tokenHash]; ok {
		token.IsRevoked = true
		s.data.tokens[tokenHash] = token
	}
	return nil
}

// Orders

func (s *MemoryStore) CreateOrder(ctx context.Context, order *models.Order) error {
	defer s.lock()()
	if err := s.takeFailure("CreateOrder"); err != nil {
		return err
	}
	stored := *order
	stored.Plan = nil
	stamp(&stored.BaseModel, s.now())
	s.data.orders = append(s.data.orders, stored)
	order.BaseModel = stored.BaseModel
	return nil
}

func (s *MemoryStore) ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	defer s.lock()()
	var orders []models.Order
	for _, order := range s.data.orders {
		if order.UserID != userID {
			continue
		}
		if plan, ok := s.data.plans[order.PlanID]; ok {
			if product, ok := s.data.products[plan.ProductID]; ok {
				plan.Product = &product
			}
			order.Plan = &plan
		}
		orders = append(orders, order)
	}
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

// Settings

func (s *MemoryStore) GetSettings(ctx context.Context, keys ...string) (map[string]string, error) {
	defer s.lock()()
	values := make(map[string]string)
	if len(keys) == 0 {
		for key, setting := range s.data.settings {
			values[key] = setting.Value
		}
		return values, nil
	}
	for _, key := range keys {
		if setting, ok := s.data.settings[key]; ok {
			values[key] = setting.Value
		}
	}
	return values, nil
}

func (s *MemoryStore) UpsertSettings(ctx context.Context, values map[string]string, updatedBy *uuid.UUID) error {
	defer s.lock()()
	now := s.now()
	for key, value := range values {
		setting := s.data.settings[key]
		setting.Key = key
		setting.Value = value
		setting.UpdatedBy = updatedBy
		stamp(&setting.BaseModel, now)
		s.data.settings[key] = setting
	}
	return nil
}

// Stats

func (s *MemoryStore) PlatformStats(ctx context.Context, since time.Time) (PlatformStats, error) {
	defer s.lock()()
	stats := PlatformStats{
		TotalUsers:            int64(len(s.data.users)),
		TotalLicenses:         int64(len(s.data.licenses)),
		TotalTelemetryRecords: int64(len(s.data.telemetry)),
	}
	for _, license := range s.data.licenses {
		if license.Status == models.LicenseStatusActive {
			stats.ActiveLicenses++
		}
	}
	for _, order := range s.data.orders {
		if order.Status != models.OrderStatusCompleted {
			continue
		}
		stats.TotalRevenue += order.AmountUSD
		if !order.CreatedAt.Before(since) {
			stats.OrdersThisMonth++
		}
	}
	return stats, nil
}

func (s *MemoryStore) DashboardStats(ctx context.Context, userID uuid.UUID, now, since time.Time) (DashboardStats, error) {
	defer s.lock()()
	var stats DashboardStats
	owned := make(map[uuid.UUID]bool)
	for id, license := range s.data.licenses {
		if license.UserID != userID {
			continue
		}
		owned[id] = true
		stats.TotalLicenses++
		if license.IsExpiredAt(now) {
			stats.ExpiredLicenses++
		} else if license.Status == models.LicenseStatusActive {
			stats.ActiveLicenses++
		}
	}
	for _, record := range s.data.telemetry {
		if !owned[record.LicenseID] {
			continue
		}
		stats.TotalVerifications++
		if !record.ReceivedAt.Before(since) {
			stats.VerificationsThisMonth++
		}
	}
	return stats, nil
}

// Audit

func (s *MemoryStore) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	defer s.lock()()
	stored := *log
	stamp(&stored.BaseModel, s.now())
	s.data.audit = append(s.data.audit, stored)
	return nil
}

func page[T any](items []T, params utils.PaginationParams) []T {
	if params.Limit <= 0 {
		return items
	}
	start := params.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + params.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
