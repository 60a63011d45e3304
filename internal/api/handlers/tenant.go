package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/Harshitk-cp/cognicore/internal/api/middleware"
	"github.com/Harshitk-cp/cognicore/internal/domain"
	"github.com/Harshitk-cp/cognicore/internal/store"
)

// APIKeyPrefix marks keys issued by this server.
const APIKeyPrefix = "cc_"

// keyAttempts bounds retries when a freshly drawn key collides with an
// existing hash.
const keyAttempts = 3

type TenantHandler struct {
	tenants domain.TenantStore
}

func NewTenantHandler(tenants domain.TenantStore) *TenantHandler {
	return &TenantHandler{tenants: tenants}
}

type createTenantRequest struct {
	Name string `json:"name"`
}

type createTenantResponse struct {
	Tenant *domain.Tenant `json:"tenant"`
	APIKey string         `json:"api_key"`
}

// Create is the only unauthenticated write. The plaintext key appears in this
// response and nowhere else.
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if !decode(w, r, &req) {
		return
	}
	name, err := domain.NormalizeTenantName(req.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	for range keyAttempts {
		apiKey, err := newAPIKey()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to generate API key")
			return
		}
		tenant := &domain.Tenant{Name: name, APIKeyHash: middleware.HashAPIKey(apiKey)}
		err = h.tenants.Create(r.Context(), tenant)
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to create tenant")
			return
		}
		writeJSON(w, http.StatusCreated, createTenantResponse{Tenant: tenant, APIKey: apiKey})
		return
	}
	writeError(w, http.StatusServiceUnavailable, "could not allocate a unique API key")
}

func newAPIKey() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return APIKeyPrefix + hex.EncodeToString(b[:]), nil
}
