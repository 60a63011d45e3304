package domain

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const MaxTenantNameLen = 128

var ErrInvalidTenantName = errors.New("tenant name must be 1-128 printable characters")

// Tenant owns agents. Every record below an agent carries the tenant id too so
// that queries can never cross tenants by agent id alone.
type Tenant struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	APIKeyHash string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NormalizeTenantName trims surrounding space and rejects empty, overlong or
// control-character names.
func NormalizeTenantName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > MaxTenantNameLen {
		return "", ErrInvalidTenantName
	}
	for _, r := range name {
		if !unicode.IsPrint(r) {
			return "", ErrInvalidTenantName
		}
	}
	return name, nil
}
