// Package patient manages patient records. Most fields here are PHI and are
// subject to masking on impersonated sessions (internal/platform/phi).
package patient

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("patient not found")
	ErrEmailTaken     = errors.New("email already registered")
	ErrInvalidPatient = errors.New("invalid patient")
)

type Patient struct {
	ID           uuid.UUID  `json:"id"`
	UserID       string     `json:"user_id,omitempty"` // auth subject, when the patient has portal access
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	DOB          *time.Time `json:"dob,omitempty"`
	AddressLine1 string     `json:"address_line1"`
	AddressLine2 string     `json:"address_line2,omitempty"`
	City         string     `json:"city"`
	State        string     `json:"state"`
	Zip          string     `json:"zip"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

func (p *Patient) Validate() error {
	if p.FirstName == "" || p.LastName == "" {
		return errors.New("first_name and last_name are required")
	}
	if p.Email == "" || !strings.Contains(p.Email, "@") {
		return errors.New("a valid email is required")
	}
	if p.DOB != nil && p.DOB.After(time.Now()) {
		return errors.New("dob must be in the past")
	}
	return nil
}

// FullName is used in logs-safe contexts only (order confirmations, partner
// dispatch payloads).
func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}
