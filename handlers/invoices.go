package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/yourusername/invoicely/apperr"
	"github.com/yourusername/invoicely/billing"
	"github.com/yourusername/invoicely/models"
	"github.com/yourusername/invoicely/services"
)

const dateLayout = "2006-01-02"

type InvoiceHandler struct {
	svc *services.InvoiceService
}

func NewInvoiceHandler(svc *services.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{svc: svc}
}

type InvoiceItemRequest struct {
	ID          uint     `json:"id"`
	Description string   `json:"description" binding:"required"`
	Quantity    int      `json:"quantity" binding:"required,min=1"`
	UnitPrice   *float64 `json:"unit_price" binding:"required,gte=0"`
}

type CustomerRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Address string `json:"address" binding:"required"`
}

// InvoiceRequest is the create/update payload. Existing items carry their
// id; deleted_items lists item ids removed in the edit form. There are no
// subtotal/total fields: totals are computed server-side.
type InvoiceRequest struct {
	Number         string               `json:"number" binding:"required"`
	Date           string               `json:"date" binding:"required,datetime=2006-01-02"`
	DueDate        string               `json:"due_date" binding:"required,datetime=2006-01-02"`
	TaxRate        *float64             `json:"tax_rate" binding:"required,gte=0,lte=100"`
	Discount       *float64             `json:"discount" binding:"required,gte=0,lte=100"`
	Currency       string               `json:"currency" binding:"required,len=3"`
	Status         string               `json:"status" binding:"required"`
	Notes          string               `json:"notes"`
	Items          []InvoiceItemRequest `json:"invoice_items" binding:"required,min=1,dive"`
	Customer       CustomerRequest      `json:"customer" binding:"required"`
	DeletedItemIDs []uint               `json:"deleted_items"`
}

func (r *InvoiceRequest) toInput() services.InvoiceInput {
	date, _ := time.Parse(dateLayout, r.Date)
	dueDate, _ := time.Parse(dateLayout, r.DueDate)

	items := make([]billing.ItemInput, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, billing.ItemInput{
			ID:          item.ID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   decimal.NewFromFloat(*item.UnitPrice),
		})
	}

	return services.InvoiceInput{
		Number:   r.Number,
		Date:     date,
		DueDate:  dueDate,
		TaxRate:  decimal.NewFromFloat(*r.TaxRate),
		Discount: decimal.NewFromFloat(*r.Discount),
		Currency: r.Currency,
		Status:   models.InvoiceStatus(r.Status),
		Notes:    r.Notes,
		Customer: services.CustomerInput{
			Name:    r.Customer.Name,
			Email:   r.Customer.Email,
			Address: r.Customer.Address,
		},
		Items:          items,
		DeletedItemIDs: r.DeletedItemIDs,
	}
}

func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderBindingError(c, err)
		return
	}

	invoice, err := h.svc.Create(ownerID, req.toInput())
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, invoice)
}

func (h *InvoiceHandler) UpdateInvoice(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	invoiceID, ok := pathID(c)
	if !ok {
		return
	}

	var req InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderBindingError(c, err)
		return
	}

	invoice, err := h.svc.Update(invoiceID, ownerID, req.toInput())
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, invoice)
}

func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	invoiceID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(invoiceID, ownerID); err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Invoice deleted"})
}

func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	h.renderInvoice(c)
}

// PrintInvoice returns the fully-resolved invoice (header, customer, items)
// that the printable view renders from.
func (h *InvoiceHandler) PrintInvoice(c *gin.Context) {
	h.renderInvoice(c)
}

func (h *InvoiceHandler) renderInvoice(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	invoiceID, ok := pathID(c)
	if !ok {
		return
	}

	invoice, err := h.svc.Get(invoiceID, ownerID)
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, invoice)
}

func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}

	invoices, err := h.svc.List(ownerID)
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, invoices)
}

func currentUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, false
	}
	id, ok := userID.(uint)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, false
	}
	return id, true
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid invoice id"})
		return 0, false
	}
	return uint(id), true
}

func renderError(c *gin.Context, err error) {
	body := gin.H{"error": apperr.Message(err)}
	if fields := apperr.FieldErrors(err); len(fields) > 0 {
		body["fields"] = fields
	}
	c.JSON(apperr.HTTPStatus(err), body)
}

// renderBindingError turns gin binding failures into the same shape the
// service's validation errors render with. Malformed JSON stays a 400.
func renderBindingError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[strings.ToLower(fe.Field())] = bindingMessage(fe)
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "fields": fields})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func bindingMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "len":
		return "has the wrong length"
	case "min":
		return "is below the minimum"
	case "gte", "lte":
		return "is out of range"
	default:
		return "is invalid"
	}
}
