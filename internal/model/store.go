package model

import "time"

// Store is a tenant: a shop reachable at <subdomain>.<base domain>.  It
// corresponds to a row in the `stores` table.  Subdomain is lowercase and
// never changes after creation.
type Store struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	Subdomain    string    `json:"subdomain"`
	Name         string    `json:"name"`
	Description  *string   `json:"description,omitempty"`
	Logo         *string   `json:"logo,omitempty"`
	IsActive     bool      `json:"isActive"`
	ProductCount *int      `json:"productCount,omitempty"` // only on owner list/detail reads
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// StorePatch carries the mutable store fields.  A nil field is left
// unchanged; the subdomain is deliberately absent.
type StorePatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Logo        *string `json:"logo"`
	IsActive    *bool   `json:"isActive"`
}

// Empty reports whether the patch changes nothing.
func (p StorePatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Logo == nil && p.IsActive == nil
}
