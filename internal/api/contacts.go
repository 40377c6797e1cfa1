package api

import (
	"errors"
	"net/http"
	"strings"

	"whatsapp-assistant/internal/models"
	"whatsapp-assistant/internal/store"

	"github.com/gin-gonic/gin"
)

type CustomerHandler struct {
	Store *store.Store
}

func NewCustomerHandler(st *store.Store) *CustomerHandler {
	return &CustomerHandler{Store: st}
}

func (h *CustomerHandler) GetCustomers(c *gin.Context) {
	customers, err := h.Store.ListCustomers(c.Request.Context(), queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if customers == nil {
		customers = []models.Customer{}
	}
	c.JSON(http.StatusOK, customers)
}

// CreateCustomerRequest for adding a lead by hand
type CreateCustomerRequest struct {
	Name             string `json:"name"`
	PhoneNumber      string `json:"phone_number"`
	AlternatePhone   string `json:"alternate_phone"`
	PreferredPackage string `json:"preferred_package"`
}

func (h *CustomerHandler) CreateCustomer(c *gin.Context) {
	var req CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// A customer without a number can never be messaged.
	if strings.TrimSpace(req.PhoneNumber) == "" && strings.TrimSpace(req.AlternatePhone) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone_number or alternate_phone is required"})
		return
	}

	customer := &models.Customer{
		Name:             strings.TrimSpace(req.Name),
		PhoneNumber:      strings.TrimSpace(req.PhoneNumber),
		AlternatePhone:   strings.TrimSpace(req.AlternatePhone),
		PreferredPackage: strings.TrimSpace(req.PreferredPackage),
	}
	if err := h.Store.CreateCustomer(c.Request.Context(), customer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create customer"})
		return
	}
	c.JSON(http.StatusCreated, customer)
}

type UpdateCustomerRequest struct {
	Name             *string `json:"name"`
	PhoneNumber      *string `json:"phone_number"`
	AlternatePhone   *string `json:"alternate_phone"`
	PreferredPackage *string `json:"preferred_package"`
}

func (h *CustomerHandler) UpdateCustomer(c *gin.Context) {
	id := c.Param("id")
	var req UpdateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	current, err := h.Store.GetCustomer(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load customer"})
		return
	}
	phoneNumber, alternatePhone := current.PhoneNumber, current.AlternatePhone
	if req.PhoneNumber != nil {
		phoneNumber = *req.PhoneNumber
	}
	if req.AlternatePhone != nil {
		alternatePhone = *req.AlternatePhone
	}
	if strings.TrimSpace(phoneNumber) == "" && strings.TrimSpace(alternatePhone) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone_number or alternate_phone is required"})
		return
	}

	err = h.Store.UpdateCustomer(c.Request.Context(), id, store.CustomerEdit{
		Name:             req.Name,
		PhoneNumber:      req.PhoneNumber,
		AlternatePhone:   req.AlternatePhone,
		PreferredPackage: req.PreferredPackage,
	})
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update customer"})
		return
	}

	customer, err := h.Store.GetCustomer(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "Customer updated"})
		return
	}
	c.JSON(http.StatusOK, customer)
}
