package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/makkenzo/license-backoffice/internal/domain/invoice"
	"github.com/makkenzo/license-backoffice/internal/domain/license"
	"github.com/makkenzo/license-backoffice/internal/ierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sweepingLicenses persists expired for every license returned by the armed
// read method, once, as a sweep running between a read and a write would.
type sweepingLicenses struct {
	license.Repository

	mu    sync.Mutex
	armed string
}

func (r *sweepingLicenses) arm(method string) {
	r.mu.Lock()
	r.armed = method
	r.mu.Unlock()
}

func (r *sweepingLicenses) sweep(ctx context.Context, method string, lics ...*license.License) {
	r.mu.Lock()
	fire := r.armed == method
	if fire {
		r.armed = ""
	}
	r.mu.Unlock()
	if !fire {
		return
	}
	for _, lic := range lics {
		if err := r.Repository.UpdateStatus(ctx, lic.ID, license.StatusExpired); err != nil {
			panic(err)
		}
	}
}

func (r *sweepingLicenses) FindByID(ctx context.Context, id uuid.UUID) (*license.License, error) {
	lic, err := r.Repository.FindByID(ctx, id)
	if err == nil {
		r.sweep(ctx, "FindByID", lic)
	}
	return lic, err
}

func (r *sweepingLicenses) FindByKey(ctx context.Context, key string) (*license.License, error) {
	lic, err := r.Repository.FindByKey(ctx, key)
	if err == nil {
		r.sweep(ctx, "FindByKey", lic)
	}
	return lic, err
}

func (r *sweepingLicenses) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*license.License, error) {
	lics, err := r.Repository.ListByInvoice(ctx, invoiceID)
	if err == nil {
		r.sweep(ctx, "ListByInvoice", lics...)
	}
	return lics, err
}

func newSweepingFixture(t *testing.T) (*fixture, *sweepingLicenses) {
	var repo *sweepingLicenses
	f := newFixture(t, withLicenseRepo(func(inner license.Repository) license.Repository {
		repo = &sweepingLicenses{Repository: inner}
		return repo
	}))
	return f, repo
}

func TestConcurrentExpiryIsNotOverwritten(t *testing.T) {
	t.Run("payment recompute", func(t *testing.T) {
		f, repo := newSweepingFixture(t)
		companyID := uuid.New()
		f.addCompanyUser(t, companyID, "owner", day0)

		res, err := f.invoices.CreateInvoice(f.ctx, oneLineInvoice(companyID, f.plan.ID, 2, invoice.StatusUnpaid), day0)
		require.NoError(t, err)

		repo.arm("ListByInvoice")
		_, err = f.invoices.MarkInvoicePaid(f.ctx, res.Invoice.ID, daysAfter(2))
		require.NoError(t, err)
		assert.Equal(t, []license.LicenseStatus{license.StatusExpired, license.StatusExpired}, statusesOf(t, f, res.Invoice.ID))
	})

	t.Run("first activation", func(t *testing.T) {
		f, repo := newSweepingFixture(t)
		lic := f.generate(t, license.StatusInactive, day0)

		repo.arm("FindByKey")
		_, err := f.activation.Activate(f.ctx, activateInput(lic, "pc-1"), daysAfter(1))
		assert.ErrorIs(t, err, ierr.ErrExpiredLicense)
		assert.Equal(t, license.StatusExpired, f.reload(t, lic.ID).Status)
	})

	t.Run("admin edit", func(t *testing.T) {
		f, repo := newSweepingFixture(t)
		lic := f.generate(t, license.StatusActive, day0)

		repo.arm("FindByID")
		_, err := f.lifecycle.EditLicense(f.ctx, lic.ID, EditInput{Status: ptr(license.StatusInactive)}, daysAfter(1))
		assert.ErrorIs(t, err, ierr.ErrInvalidTransition)
		assert.Equal(t, license.StatusExpired, f.reload(t, lic.ID).Status)
	})
}
