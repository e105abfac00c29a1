package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/license-backoffice/internal/config"
	"github.com/makkenzo/license-backoffice/internal/domain/user"
	"github.com/makkenzo/license-backoffice/internal/service"
	"github.com/makkenzo/license-backoffice/internal/storage/memstorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	store  *memstorage.Store
	apiKey *service.APIKeyService
}

func newTestServer(t *testing.T, requireAPIKey bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	prevNow := requestTime
	requestTime = func() time.Time { return testNow }
	t.Cleanup(func() { requestTime = prevNow })

	logger := zap.NewNop()
	store := memstorage.NewStore()

	catalog := service.NewPlanCatalog(store.Plans, store.Products, nil, logger)
	registry := service.NewDeviceRegistry(store.Devices, store.Licenses, catalog, nil, logger)
	licenses := service.NewLicenseService(store.Licenses, store.Devices, store.Invoices, store.Products, catalog, nil, logger)
	invoices := service.NewInvoiceService(store.Invoices, store.Users, catalog, licenses, nil, nil, logger)
	activation := service.NewActivationService(store.Licenses, store.Products, store.Invoices, catalog, registry, licenses, logger)
	auth := service.NewAuthService(store.Users, &config.JWTConfig{Secret: "test-secret", Issuer: "license-backoffice", TTL: time.Hour}, logger)
	apiKeys := service.NewAPIKeyService(store.APIKeys, store.Products, logger)
	users := service.NewUserService(store.Users, logger)

	for _, in := range []service.CreateUserInput{
		{Username: "admin", Email: "admin@example.com", Password: "admin-password", Role: user.RoleAdmin},
		{Username: "staff", Email: "staff@example.com", Password: "staff-password", Role: user.RoleStaff},
	} {
		_, err := users.Create(context.Background(), in)
		require.NoError(t, err)
	}

	router := NewRouter(Handlers{
		Health:     NewHealthHandler(nil, nil, logger),
		Auth:       NewAuthHandler(auth, logger),
		Activation: NewActivationHandler(activation, logger),
		License:    NewLicenseHandler(licenses, registry, logger),
		Device:     NewDeviceHandler(registry, logger),
		Invoice:    NewInvoiceHandler(invoices, logger),
		Catalog:    NewCatalogHandler(service.NewProductService(store.Products, logger), catalog, logger),
		User:       NewUserHandler(users, logger),
		APIKey:     NewAPIKeyHandler(apiKeys, logger),
		Dashboard:  NewDashboardHandler(licenses, 30, logger),
	}, RouterOptions{
		Tokens:        auth,
		APIKeys:       store.APIKeys,
		RequireAPIKey: requireAPIKey,
	}, logger)

	return &testServer{t: t, router: router, store: store, apiKey: apiKeys}
}

func (s *testServer) do(method, path, token string, body any, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func (s *testServer) login(username, password string) string {
	s.t.Helper()
	rec, body := s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": username, "password": password})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(s.t, "Bearer", body["token_type"])
	return body["access_token"].(string)
}

// seedLicense creates a product, a two-device plan and one license through the API.
func (s *testServer) seedLicense(token string) (productID, licenseKey string) {
	s.t.Helper()
	rec, prod := s.do(http.MethodPost, "/api/v1/products", token, gin.H{"name": "AwesomeApp"})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	productID = prod["id"].(string)

	rec, pl := s.do(http.MethodPost, "/api/v1/plans", token, gin.H{
		"product_id":    productID,
		"name":          "Pro",
		"price_cents":   4900,
		"device_limit":  2,
		"duration_days": 30,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, gen := s.do(http.MethodPost, "/api/v1/licenses/generate", token, gin.H{
		"product_id": productID,
		"plan_id":    pl["id"],
		"count":      1,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	lics := gen["licenses"].([]any)
	require.Len(s.t, lics, 1)
	return productID, lics[0].(map[string]any)["license_key"].(string)
}

func activateBody(key, computerID string) gin.H {
	return gin.H{
		"licenseKey":  key,
		"productName": "AwesomeApp",
		"device":      gin.H{"computerId": computerID, "name": "Workstation", "os": "Linux"},
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, false)
	rec, body := s.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "disabled", deps["database"])
	assert.Equal(t, "disabled", deps["redis"])
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, false)
	assert.NotEmpty(t, s.login("admin", "admin-password"))

	rec, body := s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "admin", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHENTICATED", body["code"])

	rec, body = s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
}

func TestAdminAccessControl(t *testing.T) {
	s := newTestServer(t, false)

	rec, body := s.do(http.MethodGet, "/api/v1/licenses", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHENTICATED", body["code"])

	rec, _ = s.do(http.MethodGet, "/api/v1/licenses", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	staff := s.login("staff", "staff-password")
	rec, _ = s.do(http.MethodGet, "/api/v1/licenses", staff, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = s.do(http.MethodGet, "/api/v1/apikeys", staff, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", body["code"])

	admin := s.login("admin", "admin-password")
	rec, _ = s.do(http.MethodGet, "/api/v1/apikeys", admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidationDetails(t *testing.T) {
	s := newTestServer(t, false)
	admin := s.login("admin", "admin-password")

	rec, body := s.do(http.MethodPost, "/api/v1/licenses/generate", admin, gin.H{"count": 5000})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	details, ok := body["details"].([]any)
	require.True(t, ok, "field details expected: %s", rec.Body.String())
	assert.NotEmpty(t, details)

	rec, body = s.do(http.MethodGet, "/api/v1/licenses/not-a-uuid", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
}

func TestActivationProtocol(t *testing.T) {
	s := newTestServer(t, false)
	admin := s.login("admin", "admin-password")
	_, key := s.seedLicense(admin)

	rec, body := s.do(http.MethodPost, "/licenses/activate", "", activateBody(key, "pc-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "License activated successfully", body["message"])
	lic := body["license"].(map[string]any)
	assert.Equal(t, key, lic["key"])
	assert.Equal(t, true, lic["isActive"])
	assert.NotNil(t, lic["expiresAt"])
	dev := body["device"].(map[string]any)
	assert.Equal(t, "pc-1", dev["computerId"])
	assert.Equal(t, "Linux", dev["os"])
	assert.Nil(t, dev["ram"])

	rec, body = s.do(http.MethodPost, "/licenses/activate", "", activateBody(key, "pc-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Device already activated", body["message"])

	rec, _ = s.do(http.MethodPost, "/licenses/activate", "", activateBody(key, "pc-2"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = s.do(http.MethodPost, "/licenses/activate", "", activateBody(key, "pc-3"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "DEVICE_LIMIT_REACHED", body["error"])

	rec, body = s.do(http.MethodPost, "/licenses/activate", "", activateBody("LM-NOPE-NOPE-NOPE-NOPE", "pc-1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "INVALID_LICENSE_KEY", body["error"])

	rec, body = s.do(http.MethodPost, "/licenses/activate", "", gin.H{"licenseKey": key})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", body["error"])

	rec, body = s.do(http.MethodPost, "/devices/heartbeat", "", gin.H{"licenseKey": key, "computerId": "pc-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "active", body["licenseStatus"])

	rec, body = s.do(http.MethodPost, "/devices/heartbeat", "", gin.H{"licenseKey": key, "computerId": "pc-9"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "DEVICE_NOT_FOUND", body["error"])
}

func TestActivationRequiresAPIKey(t *testing.T) {
	s := newTestServer(t, true)
	admin := s.login("admin", "admin-password")
	productID, key := s.seedLicense(admin)

	rec, body := s.do(http.MethodPost, "/licenses/activate", "", activateBody(key, "pc-1"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "API_KEY_REQUIRED", body["error"])

	rec, body = s.do(http.MethodPost, "/licenses/activate", "", activateBody(key, "pc-1"), "X-API-Key", "lm_bogus_key")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "INVALID_API_KEY", body["error"])

	rec, created := s.do(http.MethodPost, "/api/v1/apikeys", admin, gin.H{"description": "desktop", "product_id": productID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	fullKey := created["full_key"].(string)
	assert.Equal(t, productID, created["product_id"])

	rec, body = s.do(http.MethodPost, "/licenses/activate", "", activateBody(key, "pc-1"), "X-API-Key", fullKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])
}

func TestLicenseAdminFlow(t *testing.T) {
	s := newTestServer(t, false)
	admin := s.login("admin", "admin-password")
	_, key := s.seedLicense(admin)

	rec, list := s.do(http.MethodGet, "/api/v1/licenses?status=inactive", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, list["totalCount"])
	lic := list["licenses"].([]any)[0].(map[string]any)
	assert.Equal(t, key, lic["license_key"])
	id := lic["id"].(string)

	rec, dev := s.do(http.MethodPost, "/api/v1/licenses/"+id+"/devices", admin, gin.H{"computer_id": "pc-1", "name": "Laptop"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "pc-1", dev["computer_id"])

	rec, body := s.do(http.MethodPost, "/api/v1/licenses/"+id+"/devices", admin, gin.H{"computer_id": "pc-1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", body["code"])

	rec, devices := s.do(http.MethodGet, "/api/v1/licenses/"+id+"/devices", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, devices["devices"].([]any), 1)

	rec, updated := s.do(http.MethodPatch, "/api/v1/licenses/"+id, admin, gin.H{"status": "active"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "active", updated["status"])

	rec, body = s.do(http.MethodPatch, "/api/v1/licenses/"+id, admin, gin.H{"status": "expired"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])

	rec, _ = s.do(http.MethodDelete, "/api/v1/devices/"+dev["id"].(string), admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = s.do(http.MethodDelete, "/api/v1/licenses/"+id, admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, body = s.do(http.MethodGet, "/api/v1/licenses/"+id, admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", body["code"])
}
