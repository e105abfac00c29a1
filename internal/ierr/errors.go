package ierr

import "errors"

// Generic failures, mapped to HTTP statuses by the admin error middleware.
var (
	ErrValidation     = errors.New("validation failed")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource conflict")
	ErrInternalServer = errors.New("internal server error")
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTokenInvalidClaims = errors.New("token contains invalid claims type")
)

// Activation and license lifecycle outcomes.
var (
	ErrInvalidLicenseKey  = errors.New("license key is not valid for this product")
	ErrLicenseNotFound    = errors.New("license not found")
	ErrExpiredLicense     = errors.New("license has expired")
	ErrDeviceLimitReached = errors.New("device limit reached for this license")
	ErrDeviceNotFound     = errors.New("device not registered for this license")
	ErrNoCompanyUsers     = errors.New("company has no users to assign licenses to")
	ErrInvalidTransition  = errors.New("license status transition not allowed")
)
