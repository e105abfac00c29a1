package memstorage

// Store bundles one of every in-memory repository. It backs the "memory"
// database driver and most service tests.
type Store struct {
	Products *ProductRepository
	Plans    *PlanRepository
	Users    *UserRepository
	Licenses *LicenseRepository
	Devices  *DeviceRepository
	Invoices *InvoiceRepository
	Activity *ActivityRepository
	APIKeys  *APIKeyRepository
}

func NewStore() *Store {
	return &Store{
		Products: NewProductRepository(),
		Plans:    NewPlanRepository(),
		Users:    NewUserRepository(),
		Licenses: NewLicenseRepository(),
		Devices:  NewDeviceRepository(),
		Invoices: NewInvoiceRepository(),
		Activity: NewActivityRepository(),
		APIKeys:  NewAPIKeyRepository(),
	}
}
