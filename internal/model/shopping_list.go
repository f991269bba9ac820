package model

import "time"

type ListStatus string

const (
	ListActive    ListStatus = "active"
	ListCompleted ListStatus = "completed"
)

type ShoppingList struct {
	ID          string             `json:"id"`
	HouseholdID string             `json:"household_id"`
	Name        string             `json:"name"`
	Status      ListStatus         `json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
	CompletedAt *time.Time         `json:"completed_at"`
	Items       []ShoppingListItem `json:"items"`
}

// Item returns the item with the given id, or nil.
func (l *ShoppingList) Item(id string) *ShoppingListItem {
	for i := range l.Items {
		if l.Items[i].ID == id {
			return &l.Items[i]
		}
	}
	return nil
}

// Taken returns the items marked as taken, in list order.
func (l *ShoppingList) Taken() []ShoppingListItem {
	var taken []ShoppingListItem
	for _, item := range l.Items {
		if item.IsTaken {
			taken = append(taken, item)
		}
	}
	return taken
}

func (l *ShoppingList) IsActive() bool {
	return l.Status == ListActive
}

type ShoppingListItem struct {
	ID        string    `json:"id"`
	ListID    string    `json:"list_id"`
	ProductID *string   `json:"product_id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	IsTaken   bool      `json:"is_taken"`
	Position  int       `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type NewShoppingList struct {
	Name string `json:"name" validate:"required,max=200"`
}

type NewShoppingListItem struct {
	Name      string  `json:"name" validate:"required,max=200"`
	Quantity  int     `json:"quantity" validate:"gt=0"`
	ProductID *string `json:"product_id" validate:"omitnil,uuid"`
}
