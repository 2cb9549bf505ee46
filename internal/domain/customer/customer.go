package customer

import (
	"errors"
	"strings"
	"time"
)

// Customer is the rider's durable profile. The engine only needs enough of it
// to confirm the rider exists and to attribute requests and history.
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Rating    float64   `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}

var ErrNameRequired = errors.New("customer name is required")

// NewCustomer creates a Customer profile.
func NewCustomer(id, name, phone string) (*Customer, error) {
	if name = strings.TrimSpace(name); name == "" {
		return nil, ErrNameRequired
	}
	return &Customer{
		ID:        id,
		Name:      name,
		Phone:     strings.TrimSpace(phone),
		Rating:    5.0,
		CreatedAt: time.Now().UTC(),
	}, nil
}
