package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus enumerates the lifecycle states of an invoice.
type InvoiceStatus string

const (
	StatusUnpaid    InvoiceStatus = "Unpaid"
	StatusPending   InvoiceStatus = "Pending"
	StatusPaid      InvoiceStatus = "Paid"
	StatusCancelled InvoiceStatus = "Cancelled"
)

// IsValid reports whether s is one of the known statuses.
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case StatusUnpaid, StatusPending, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

type Invoice struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	Number     string        `gorm:"uniqueIndex;size:50;not null" json:"number"`
	UserID     uint          `gorm:"not null;index" json:"user_id"`
	User       User          `gorm:"foreignKey:UserID" json:"-"`
	CustomerID uint          `gorm:"not null;index" json:"customer_id"`
	Customer   Customer      `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Date       time.Time     `gorm:"not null" json:"date"`
	DueDate    time.Time     `gorm:"not null" json:"due_date"`
	Currency   string        `gorm:"size:3;not null;default:'USD'" json:"currency"`
	// TaxRate and Discount are percentages in [0,100]; the derived amounts
	// are never stored in these columns.
	TaxRate  decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"tax_rate"`
	Discount decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"discount"`
	Status   InvoiceStatus   `gorm:"size:20;not null;default:'Unpaid'" json:"status"`
	Subtotal decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	Total    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total"`
	Notes    string          `gorm:"type:text" json:"notes"`
	// Version guards header updates against concurrent writers.
	Version uint          `gorm:"not null;default:1" json:"-"`
	Items   []InvoiceItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// TableName overrides the table name
func (Invoice) TableName() string {
	return "invoices"
}
