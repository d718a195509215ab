// Package product manages the per-clinic catalog, including items sourced
// from fulfillment partner catalogs.
package product

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("product not found")
	ErrSKUTaken       = errors.New("sku already in use")
	ErrInvalidProduct = errors.New("invalid product")
)

// Catalog sources.
const (
	SourceInternal = "internal" // clinic's own item
	SourcePartner  = "partner"  // mirrored from a fulfillment partner catalog
)

type Product struct {
	ID                   uuid.UUID  `json:"id"`
	Name                 string     `json:"name"`
	SKU                  string     `json:"sku"`
	Description          string     `json:"description"`
	PriceCents           int64      `json:"price_cents"`
	Currency             string     `json:"currency"`
	Source               string     `json:"source"`
	PartnerCode          string     `json:"partner_code,omitempty"`
	PartnerProductID     string     `json:"partner_product_id,omitempty"`
	RequiresPrescription bool       `json:"requires_prescription"`
	Active               bool       `json:"active"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	DeletedAt            *time.Time `json:"deleted_at,omitempty"`
}

func (p *Product) Validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.SKU == "" {
		return errors.New("sku is required")
	}
	if p.PriceCents < 0 {
		return errors.New("price_cents must not be negative")
	}
	switch p.Source {
	case SourceInternal:
		// nothing extra
	case SourcePartner:
		if p.PartnerCode == "" || p.PartnerProductID == "" {
			return errors.New("partner products require partner_code and partner_product_id")
		}
	default:
		return errors.New("source must be internal or partner")
	}
	return nil
}
