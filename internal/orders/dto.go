package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storelane/storelane-backend/pkg/db/models"
	"github.com/storelane/storelane-backend/pkg/enums"
	"github.com/storelane/storelane-backend/pkg/pagination"
)

// CartLine is one requested product within a new order.
type CartLine struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

// CreateOrderInput captures everything needed to place an order.
type CreateOrderInput struct {
	CustomerID      uuid.UUID
	ShippingAddress string
	Lines           []CartLine
}

// UpdateStatusInput carries an admin status transition request.
type UpdateStatusInput struct {
	OrderID         uuid.UUID
	NextStatus      enums.OrderStatus
	ExpectedVersion int
	TrackingNumber  *string
}

// ListFilters describe the inputs supported by the orders list.
type ListFilters struct {
	CustomerID *uuid.UUID
	Status     *enums.OrderStatus
	Query      string
}

// OrderItemDTO is the transport shape of one immutable order line.
type OrderItemDTO struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// CustomerSummary is the embedded customer shown on admin order views.
type CustomerSummary struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
}

// OrderDTO is the full order detail returned by Get.
type OrderDTO struct {
	ID              uuid.UUID         `json:"id"`
	CustomerID      uuid.UUID         `json:"customer_id"`
	Customer        *CustomerSummary  `json:"customer,omitempty"`
	Status          enums.OrderStatus `json:"status"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	ShippingAddress string            `json:"shipping_address"`
	TrackingNumber  *string           `json:"tracking_number,omitempty"`
	Version         int               `json:"version"`
	PaidAt          *time.Time        `json:"paid_at,omitempty"`
	Items           []OrderItemDTO    `json:"items"`
	Payment         *PaymentDTO       `json:"payment,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// PaymentDTO exposes the payment recorded against an order.
type PaymentDTO struct {
	ID            uuid.UUID           `json:"id"`
	Provider      string              `json:"provider"`
	ProviderTxnID string              `json:"provider_txn_id"`
	Amount        decimal.Decimal     `json:"amount"`
	Method        enums.PaymentMethod `json:"method"`
	Status        enums.PaymentStatus `json:"status"`
	ReceivedAt    *time.Time          `json:"received_at,omitempty"`
}

// OrderList wraps one page of orders plus the page metadata.
type OrderList struct {
	Orders []OrderDTO      `json:"orders"`
	Page   pagination.Page `json:"page"`
}

// FromModel maps a persisted order (with preloads) to its transport shape.
func FromModel(o *models.Order) *OrderDTO {
	if o == nil {
		return nil
	}

	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal,
		})
	}

	dto := &OrderDTO{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		Status:          o.Status,
		TotalAmount:     o.TotalAmount,
		ShippingAddress: o.ShippingAddress,
		TrackingNumber:  o.TrackingNumber,
		Version:         o.Version,
		PaidAt:          o.PaidAt,
		Items:           items,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if o.Customer != nil {
		dto.Customer = &CustomerSummary{
			ID:          o.Customer.ID,
			Email:       o.Customer.Email,
			DisplayName: o.Customer.DisplayName,
		}
	}
	if o.Payment != nil {
		dto.Payment = &PaymentDTO{
			ID:            o.Payment.ID,
			Provider:      o.Payment.Provider,
			ProviderTxnID: o.Payment.ProviderTxnID,
			Amount:        o.Payment.Amount,
			Method:        o.Payment.Method,
			Status:        o.Payment.Status,
			ReceivedAt:    o.Payment.ReceivedAt,
		}
	}
	return dto
}
