package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/yourusername/invoicely/apperr"
	"github.com/yourusername/invoicely/billing"
	"github.com/yourusername/invoicely/logger"
	"github.com/yourusername/invoicely/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CustomerInput is the customer draft submitted with an invoice. Customers
// are resolved by email: update-or-create, last write wins.
type CustomerInput struct {
	Name    string
	Email   string
	Address string
}

// InvoiceInput is the full draft an invoice is created or updated from.
// It deliberately has no subtotal/total fields; totals are always computed
// server-side.
type InvoiceInput struct {
	Number         string
	Date           time.Time
	DueDate        time.Time
	TaxRate        decimal.Decimal
	Discount       decimal.Decimal
	Currency       string
	Status         models.InvoiceStatus
	Notes          string
	Customer       CustomerInput
	Items          []billing.ItemInput
	DeletedItemIDs []uint
}

// InvoiceService is the transactional boundary for invoice mutations.
// Every write runs inside a single transaction: customer upsert, header and
// item changes either all commit or all roll back.
type InvoiceService struct {
	db   *gorm.DB
	log  *logger.Logger
	mode billing.ReconcileMode
}

func NewInvoiceService(db *gorm.DB, log *logger.Logger) *InvoiceService {
	return &InvoiceService{db: db, log: log, mode: billing.ReconcileDelta}
}

// WithReconcileMode overrides the default delta reconciliation policy.
func (s *InvoiceService) WithReconcileMode(mode billing.ReconcileMode) *InvoiceService {
	s.mode = mode
	return s
}

// Create validates the draft, resolves the customer and stores the invoice
// with server-computed totals.
func (s *InvoiceService) Create(ownerID uint, in InvoiceInput) (*models.Invoice, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	totals, err := billing.CalculateTotals(toLineItems(in.Items), in.TaxRate, in.Discount)
	if err != nil {
		return nil, err
	}

	var created models.Invoice
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := checkNumberFree(tx, in.Number, 0); err != nil {
			return err
		}
		customer, err := upsertCustomer(tx, in.Customer)
		if err != nil {
			return err
		}

		created = models.Invoice{
			Number:     in.Number,
			UserID:     ownerID,
			CustomerID: customer.ID,
			Date:       in.Date,
			DueDate:    in.DueDate,
			Currency:   strings.ToUpper(in.Currency),
			TaxRate:    in.TaxRate,
			Discount:   in.Discount,
			Status:     in.Status,
			Subtotal:   totals.Subtotal,
			Total:      totals.Total,
			Notes:      in.Notes,
			Version:    1,
		}
		if err := tx.Create(&created).Error; err != nil {
			return wrapDB(err, "creating invoice")
		}
		for _, item := range in.Items {
			row := models.InvoiceItem{
				InvoiceID:   created.ID,
				Description: item.Description,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
			}
			if err := tx.Create(&row).Error; err != nil {
				return wrapDB(err, "creating invoice item")
			}
			created.Items = append(created.Items, row)
		}
		created.Customer = *customer
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("invoice created", "invoice_id", created.ID, "number", created.Number, "total", created.Total)
	return &created, nil
}

// Update overwrites the header, re-resolves the customer and reconciles the
// line items against persisted state. The header write is guarded by the
// invoice version so a concurrent writer surfaces as a conflict instead of
// a lost update.
func (s *InvoiceService) Update(invoiceID, ownerID uint, in InvoiceInput) (*models.Invoice, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var updated *models.Invoice
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var invoice models.Invoice
		if err := tx.Preload("Items").Where("id = ? AND user_id = ?", invoiceID, ownerID).First(&invoice).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("invoice not found")
			}
			return apperr.Persistence(err, "loading invoice")
		}
		if err := checkNumberFree(tx, in.Number, invoice.ID); err != nil {
			return err
		}

		persistedIDs := lo.Map(invoice.Items, func(item models.InvoiceItem, _ int) uint {
			return item.ID
		})
		plan, err := billing.Reconcile(persistedIDs, in.Items, in.DeletedItemIDs, s.mode)
		if err != nil {
			return err
		}

		// Totals come from the item set as it will stand after the plan is
		// applied, computed up front so a bad draft aborts before any write.
		finalLines := applyPlanInMemory(invoice.Items, plan)
		if len(finalLines) == 0 {
			return apperr.ValidationField("items", "invoice must have at least one item")
		}
		totals, err := billing.CalculateTotals(finalLines, in.TaxRate, in.Discount)
		if err != nil {
			return err
		}

		customer, err := upsertCustomer(tx, in.Customer)
		if err != nil {
			return err
		}
		if err := applyPlan(tx, invoice.ID, plan); err != nil {
			return err
		}

		res := tx.Model(&models.Invoice{}).
			Where("id = ? AND version = ?", invoice.ID, invoice.Version).
			Updates(map[string]interface{}{
				"number":      in.Number,
				"customer_id": customer.ID,
				"date":        in.Date,
				"due_date":    in.DueDate,
				"currency":    strings.ToUpper(in.Currency),
				"tax_rate":    in.TaxRate,
				"discount":    in.Discount,
				"status":      in.Status,
				"subtotal":    totals.Subtotal,
				"total":       totals.Total,
				"notes":       in.Notes,
				"version":     invoice.Version + 1,
			})
		if res.Error != nil {
			return wrapDB(res.Error, "updating invoice")
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("invoice was modified concurrently, retry the update")
		}

		var reloaded models.Invoice
		if err := tx.Preload("Customer").Preload("Items").First(&reloaded, invoice.ID).Error; err != nil {
			return apperr.Persistence(err, "reloading invoice")
		}
		updated = &reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("invoice updated", "invoice_id", updated.ID, "number", updated.Number, "total", updated.Total)
	return updated, nil
}

// Delete removes the invoice and its items. Deleting an invoice that does
// not exist (or belongs to someone else) is a not-found error, never a
// silent success.
func (s *InvoiceService) Delete(invoiceID, ownerID uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var invoice models.Invoice
		if err := tx.Where("id = ? AND user_id = ?", invoiceID, ownerID).First(&invoice).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("invoice not found")
			}
			return apperr.Persistence(err, "loading invoice")
		}
		if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&models.InvoiceItem{}).Error; err != nil {
			return wrapDB(err, "deleting invoice items")
		}
		if err := tx.Delete(&invoice).Error; err != nil {
			return wrapDB(err, "deleting invoice")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Infow("invoice deleted", "invoice_id", invoiceID)
	return nil
}

// Get returns the invoice with its customer and items resolved, scoped to
// the owner.
func (s *InvoiceService) Get(invoiceID, ownerID uint) (*models.Invoice, error) {
	var invoice models.Invoice
	err := s.db.Preload("Customer").Preload("Items").
		Where("id = ? AND user_id = ?", invoiceID, ownerID).
		First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("invoice not found")
		}
		return nil, apperr.Persistence(err, "loading invoice")
	}
	return &invoice, nil
}

// List returns the owner's invoices, newest first, for the dashboard.
func (s *InvoiceService) List(ownerID uint) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := s.db.Preload("Customer").Preload("Items").
		Where("user_id = ?", ownerID).
		Order("created_at DESC, id DESC").
		Find(&invoices).Error
	if err != nil {
		return nil, apperr.Persistence(err, "listing invoices")
	}
	return invoices, nil
}

func validateInput(in InvoiceInput) error {
	fields := map[string]string{}
	if strings.TrimSpace(in.Number) == "" {
		fields["number"] = "is required"
	}
	if in.Date.IsZero() {
		fields["date"] = "is required"
	}
	switch {
	case in.DueDate.IsZero():
		fields["due_date"] = "is required"
	case !in.Date.IsZero() && in.DueDate.Before(in.Date):
		fields["due_date"] = "must not precede the invoice date"
	}
	if len(in.Currency) != 3 {
		fields["currency"] = "must be a 3-letter code"
	}
	if !in.Status.IsValid() {
		fields["status"] = "must be one of Unpaid, Pending, Paid, Cancelled"
	}
	if len(in.Items) == 0 {
		fields["items"] = "invoice must have at least one item"
	}
	for i, item := range in.Items {
		if strings.TrimSpace(item.Description) == "" {
			fields[fmt.Sprintf("items.%d.description", i)] = "is required"
		}
	}
	if strings.TrimSpace(in.Customer.Name) == "" {
		fields["customer.name"] = "is required"
	}
	if !strings.Contains(in.Customer.Email, "@") {
		fields["customer.email"] = "must be a valid email address"
	}
	if strings.TrimSpace(in.Customer.Address) == "" {
		fields["customer.address"] = "is required"
	}
	if len(fields) > 0 {
		return apperr.Validation(fields)
	}
	return nil
}

// upsertCustomer resolves the customer by email in a single statement so two
// concurrent invoices for the same customer cannot race a duplicate row past
// the unique index.
func upsertCustomer(tx *gorm.DB, in CustomerInput) (*models.Customer, error) {
	customer := models.Customer{
		Name:    in.Name,
		Email:   strings.ToLower(strings.TrimSpace(in.Email)),
		Address: in.Address,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "address", "updated_at"}),
	}).Create(&customer).Error
	if err != nil {
		return nil, apperr.Persistence(err, "upserting customer")
	}
	// On conflict the insert does not report the existing row's id, so read
	// back by the natural key.
	if err := tx.Where("email = ?", customer.Email).First(&customer).Error; err != nil {
		return nil, apperr.Persistence(err, "loading customer")
	}
	return &customer, nil
}

func checkNumberFree(tx *gorm.DB, number string, selfID uint) error {
	query := tx.Model(&models.Invoice{}).Where("number = ?", number)
	if selfID != 0 {
		query = query.Where("id <> ?", selfID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return apperr.Persistence(err, "checking invoice number")
	}
	if count > 0 {
		return apperr.Conflict(fmt.Sprintf("invoice number %q is already taken", number))
	}
	return nil
}

func applyPlan(tx *gorm.DB, invoiceID uint, plan billing.Plan) error {
	// Deletes first, then updates, then creates.
	if len(plan.ToDelete) > 0 {
		if err := tx.Where("invoice_id = ? AND id IN ?", invoiceID, plan.ToDelete).
			Delete(&models.InvoiceItem{}).Error; err != nil {
			return wrapDB(err, "deleting invoice items")
		}
	}
	for _, item := range plan.ToUpdate {
		err := tx.Model(&models.InvoiceItem{}).
			Where("id = ? AND invoice_id = ?", item.ID, invoiceID).
			Updates(map[string]interface{}{
				"description": item.Description,
				"quantity":    item.Quantity,
				"unit_price":  item.UnitPrice,
			}).Error
		if err != nil {
			return wrapDB(err, "updating invoice item")
		}
	}
	for _, item := range plan.ToCreate {
		row := models.InvoiceItem{
			InvoiceID:   invoiceID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		}
		if err := tx.Create(&row).Error; err != nil {
			return wrapDB(err, "creating invoice item")
		}
	}
	return nil
}

// applyPlanInMemory projects the item set that will exist once the plan is
// applied, for computing totals before anything is written.
func applyPlanInMemory(persisted []models.InvoiceItem, plan billing.Plan) []billing.LineItem {
	gone := lo.SliceToMap(plan.ToDelete, func(id uint) (uint, struct{}) {
		return id, struct{}{}
	})
	edited := lo.SliceToMap(plan.ToUpdate, func(item billing.ItemInput) (uint, billing.ItemInput) {
		return item.ID, item
	})

	var lines []billing.LineItem
	for _, item := range persisted {
		if _, ok := gone[item.ID]; ok {
			continue
		}
		if edit, ok := edited[item.ID]; ok {
			lines = append(lines, billing.LineItem{Quantity: edit.Quantity, UnitPrice: edit.UnitPrice})
			continue
		}
		lines = append(lines, billing.LineItem{Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	for _, item := range plan.ToCreate {
		lines = append(lines, billing.LineItem{Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	return lines
}

func toLineItems(items []billing.ItemInput) []billing.LineItem {
	return lo.Map(items, func(item billing.ItemInput, _ int) billing.LineItem {
		return billing.LineItem{Quantity: item.Quantity, UnitPrice: item.UnitPrice}
	})
}

func wrapDB(err error, op string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Conflict("duplicate value violates a unique constraint")
	}
	return apperr.Persistence(err, op)
}
