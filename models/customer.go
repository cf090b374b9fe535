package models

import "time"

// Customer is shared across every invoice that references the same email;
// it is never deleted when an invoice is.
type Customer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Address   string    `gorm:"size:500;not null" json:"address"`
	Invoices  []Invoice `gorm:"foreignKey:CustomerID" json:"invoices,omitempty"`
}

// TableName overrides the table name
func (Customer) TableName() string {
	return "customers"
}
