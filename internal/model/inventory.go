package model

import "time"

type InventoryStatus string

const (
	StatusAvailable InventoryStatus = "available"
	StatusDepleted  InventoryStatus = "depleted"
)

// Toggle returns the opposite status. Unknown values toggle to available.
func (s InventoryStatus) Toggle() InventoryStatus {
	if s == StatusAvailable {
		return StatusDepleted
	}
	return StatusAvailable
}

func (s InventoryStatus) Valid() bool {
	return s == StatusAvailable || s == StatusDepleted
}

type InventoryItem struct {
	ID          string          `json:"id"`
	HouseholdID string          `json:"household_id"`
	Name        string          `json:"name"`
	Quantity    int             `json:"quantity"`
	Status      InventoryStatus `json:"status"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"image_url"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewInventoryItem is the input for creating an inventory item.
type NewInventoryItem struct {
	Name     string `json:"name" validate:"required,max=200"`
	Quantity int    `json:"quantity" validate:"gt=0"`
	Category string `json:"category" validate:"max=100"`
	ImageURL string `json:"image_url" validate:"omitempty,url"`
}

// InventoryPatch holds the fields of an edit. Nil fields are left unchanged.
type InventoryPatch struct {
	Name     *string `json:"name" validate:"omitnil,min=1,max=200"`
	Quantity *int    `json:"quantity" validate:"omitnil,gt=0"`
	Category *string `json:"category" validate:"omitnil,max=100"`
	ImageURL *string `json:"image_url" validate:"omitnil,omitempty,url,max=2048"`
}

// Apply merges the patch into item.
func (p InventoryPatch) Apply(item *InventoryItem) {
	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.Quantity != nil {
		item.Quantity = *p.Quantity
	}
	if p.Category != nil {
		item.Category = *p.Category
	}
	if p.ImageURL != nil {
		item.ImageURL = *p.ImageURL
	}
}
