package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/invoicely/logger"
	"github.com/yourusername/invoicely/models"
	"github.com/yourusername/invoicely/services"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Customer{}, &models.Invoice{}, &models.InvoiceItem{}))
	return db
}

func setupInvoiceRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)
	handler := NewInvoiceHandler(services.NewInvoiceService(db, logger.NewNop()))

	router := gin.Default()
	router.Use(func(c *gin.Context) {
		c.Set("userID", uint(1))
		c.Next()
	})
	router.POST("/invoices", handler.CreateInvoice)
	router.GET("/invoices", handler.ListInvoices)
	router.GET("/invoices/:id", handler.GetInvoice)
	router.PUT("/invoices/:id", handler.UpdateInvoice)
	router.DELETE("/invoices/:id", handler.DeleteInvoice)
	router.GET("/invoices/:id/print", handler.PrintInvoice)
	return router, db
}

func invoicePayload() map[string]interface{} {
	return map[string]interface{}{
		"number":   "INV-100",
		"date":     "2025-03-01",
		"due_date": "2025-03-31",
		"tax_rate": 10,
		"discount": 5,
		"currency": "USD",
		"status":   "Unpaid",
		"notes":    "thanks for your business",
		"invoice_items": []map[string]interface{}{
			{"description": "Design work", "quantity": 2, "unit_price": 100.00},
			{"description": "Hosting", "quantity": 1, "unit_price": 50.00},
		},
		"customer": map[string]interface{}{
			"name":    "Acme Corp",
			"email":   "billing@acme.test",
			"address": "1 Acme Way",
		},
	}
}

func doJSON(router *gin.Engine, method, path string, payload interface{}) *httptest.ResponseRecorder {
	var body *bytes.Buffer
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestCreateInvoiceEndpoint(t *testing.T) {
	router, db := setupInvoiceRouter(t)

	t.Run("Valid Request", func(t *testing.T) {
		w := doJSON(router, "POST", "/invoices", invoicePayload())

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"262.5"`, "server computes the total")

		var invoice models.Invoice
		require.NoError(t, db.Preload("Items").First(&invoice).Error)
		assert.Equal(t, "INV-100", invoice.Number)
		assert.Len(t, invoice.Items, 2)
	})

	t.Run("Missing Items", func(t *testing.T) {
		payload := invoicePayload()
		payload["number"] = "INV-101"
		delete(payload, "invoice_items")

		w := doJSON(router, "POST", "/invoices", payload)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "fields")
	})

	t.Run("Duplicate Number", func(t *testing.T) {
		w := doJSON(router, "POST", "/invoices", invoicePayload())
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Malformed JSON", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/invoices", bytes.NewBufferString("{not json"))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUpdateInvoiceEndpoint(t *testing.T) {
	router, db := setupInvoiceRouter(t)

	w := doJSON(router, "POST", "/invoices", invoicePayload())
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Invoice
	require.NoError(t, db.Preload("Items").First(&created).Error)
	require.Len(t, created.Items, 2)

	payload := invoicePayload()
	payload["invoice_items"] = []map[string]interface{}{
		{"id": created.Items[0].ID, "description": "Design work (revised)", "quantity": 3, "unit_price": 100.00},
	}
	payload["deleted_items"] = []uint{created.Items[1].ID}

	w = doJSON(router, "PUT", fmt.Sprintf("/invoices/%d", created.ID), payload)
	assert.Equal(t, http.StatusOK, w.Code)

	var updated models.Invoice
	require.NoError(t, db.Preload("Items").First(&updated, created.ID).Error)
	require.Len(t, updated.Items, 1)
	assert.Equal(t, "Design work (revised)", updated.Items[0].Description)
	// subtotal 300, tax 30, discount 15
	assert.True(t, updated.Total.Equal(decimal.NewFromInt(315)), "total: %s", updated.Total)
}

func TestGetInvoiceEndpoint(t *testing.T) {
	router, db := setupInvoiceRouter(t)

	w := doJSON(router, "POST", "/invoices", invoicePayload())
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Invoice
	require.NoError(t, db.First(&created).Error)

	t.Run("Found", func(t *testing.T) {
		w := doJSON(router, "GET", fmt.Sprintf("/invoices/%d", created.ID), nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Acme Corp")
	})

	t.Run("Print View", func(t *testing.T) {
		w := doJSON(router, "GET", fmt.Sprintf("/invoices/%d/print", created.ID), nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "invoice_items")
	})

	t.Run("Missing", func(t *testing.T) {
		w := doJSON(router, "GET", "/invoices/9999", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Bad ID", func(t *testing.T) {
		w := doJSON(router, "GET", "/invoices/abc", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDeleteInvoiceEndpoint(t *testing.T) {
	router, db := setupInvoiceRouter(t)

	w := doJSON(router, "POST", "/invoices", invoicePayload())
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Invoice
	require.NoError(t, db.First(&created).Error)

	w = doJSON(router, "DELETE", fmt.Sprintf("/invoices/%d", created.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, "DELETE", fmt.Sprintf("/invoices/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "repeat deletion is a 404, not a silent success")
}

func TestInvoiceEndpointsRequireOwner(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)
	handler := NewInvoiceHandler(services.NewInvoiceService(db, logger.NewNop()))

	// No auth middleware: the owner identity never reaches the context.
	router := gin.Default()
	router.POST("/invoices", handler.CreateInvoice)

	w := doJSON(router, "POST", "/invoices", invoicePayload())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
