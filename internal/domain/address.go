package domain

import "time"

// ShippingAddress belongs to one customer. At most one address per customer
// carries IsDefault; persisting a new default clears the previous one.
type ShippingAddress struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"-"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Company    string    `json:"company,omitempty"`
	Line1      string    `json:"address_line_1"`
	Line2      string    `json:"address_line_2,omitempty"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	PostalCode string    `json:"postal_code"`
	Country    string    `json:"country"`
	Phone      string    `json:"phone"`
	IsDefault  bool      `json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (a ShippingAddress) Validate() error {
	if a.FirstName == "" || a.LastName == "" {
		return ErrInvalidAddress
	}
	if a.Line1 == "" || a.City == "" || a.State == "" || a.PostalCode == "" || a.Country == "" {
		return ErrInvalidAddress
	}
	if a.Phone == "" {
		return ErrInvalidAddress
	}
	return nil
}
