package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/license"
	"github.com/makkenzo/license-backoffice/internal/domain/plan"
	"github.com/makkenzo/license-backoffice/internal/domain/product"
	"github.com/makkenzo/license-backoffice/internal/domain/user"
	"github.com/makkenzo/license-backoffice/internal/storage/memstorage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var day0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func daysAfter(n int) time.Time {
	return day0.Add(time.Duration(n) * 24 * time.Hour)
}

type fixture struct {
	ctx      context.Context
	store    *memstorage.Store
	licenses license.Repository

	catalog    *PlanCatalog
	registry   *DeviceRegistry
	lifecycle  *LicenseService
	invoices   *InvoiceService
	activation *ActivationService

	product *product.Product
	plan    *plan.Plan
}

type fixtureOption func(*fixture)

// withLicenseRepo swaps the license repository seen by the services.
func withLicenseRepo(wrap func(license.Repository) license.Repository) fixtureOption {
	return func(f *fixture) { f.licenses = wrap(f.licenses) }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	return newFixtureWithScheduler(t, nil, opts...)
}

func newFixtureWithScheduler(t *testing.T, scheduler RecomputeScheduler, opts ...fixtureOption) *fixture {
	t.Helper()
	logger := zap.NewNop()
	f := &fixture{ctx: context.Background(), store: memstorage.NewStore()}
	f.licenses = f.store.Licenses
	for _, opt := range opts {
		opt(f)
	}

	s := f.store
	f.catalog = NewPlanCatalog(s.Plans, s.Products, nil, logger)
	f.registry = NewDeviceRegistry(s.Devices, f.licenses, f.catalog, nil, logger)
	f.lifecycle = NewLicenseService(f.licenses, s.Devices, s.Invoices, s.Products, f.catalog, nil, logger)
	f.invoices = NewInvoiceService(s.Invoices, s.Users, f.catalog, f.lifecycle, scheduler, nil, logger)
	f.activation = NewActivationService(f.licenses, s.Products, s.Invoices, f.catalog, f.registry, f.lifecycle, logger)

	f.product = f.addProduct(t, "AwesomeApp")
	f.plan = f.addPlan(t, f.product.ID, 2, 30)
	return f
}

func (f *fixture) addProduct(t *testing.T, name string) *product.Product {
	t.Helper()
	p, err := NewProductService(f.store.Products, zap.NewNop()).Create(f.ctx, name, nil)
	require.NoError(t, err)
	return p
}

func (f *fixture) addPlan(t *testing.T, productID uuid.UUID, deviceLimit, durationDays int) *plan.Plan {
	t.Helper()
	p, err := f.catalog.Create(f.ctx, CreatePlanInput{
		ProductID:    productID,
		Name:         "plan",
		PriceCents:   1000,
		DeviceLimit:  deviceLimit,
		DurationDays: durationDays,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) addCompanyUser(t *testing.T, companyID uuid.UUID, username string, createdAt time.Time) *user.User {
	t.Helper()
	u := &user.User{
		ID:        uuid.New(),
		CompanyID: uuid.NullUUID{UUID: companyID, Valid: true},
		Username:  username,
		Email:     username + "@example.com",
		Role:      user.RoleCustomer,
		CreatedAt: createdAt,
	}
	require.NoError(t, f.store.Users.Create(f.ctx, u))
	return u
}

// generate issues one license without an invoice at now.
func (f *fixture) generate(t *testing.T, status license.LicenseStatus, now time.Time) *license.License {
	t.Helper()
	lics, err := f.lifecycle.Generate(f.ctx, GenerateInput{
		ProductID:     f.product.ID,
		PlanID:        f.plan.ID,
		Count:         1,
		InitialStatus: &status,
	}, now)
	require.NoError(t, err)
	require.Len(t, lics, 1)
	return lics[0]
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *license.License {
	t.Helper()
	lic, err := f.store.Licenses.FindByID(f.ctx, id)
	require.NoError(t, err)
	return lic
}

func ptr[T any](v T) *T {
	return &v
}
