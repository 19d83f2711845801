package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/storelane/storelane-backend/internal/orders"
	"github.com/storelane/storelane-backend/pkg/config"
	pkgerrors "github.com/storelane/storelane-backend/pkg/errors"
)

// StartRequest captures the cart a customer submits to begin checkout.
type StartRequest struct {
	ShippingAddress string            `json:"shipping_address" validate:"required"`
	Lines           []orders.CartLine `json:"lines" validate:"required,min=1,dive"`
}

// StartResponse returns the created order and the hosted payment page URL.
type StartResponse struct {
	Order       *orders.OrderDTO `json:"order"`
	RedirectURL string           `json:"redirect_url"`
}

// Service starts hosted checkout flows.
type Service interface {
	Start(ctx context.Context, input orders.CreateOrderInput) (*StartResponse, error)
}

type service struct {
	orders orders.Service
	stripe StripeCheckoutClient
	cfg    config.CheckoutConfig
}

// NewService builds a checkout service with the required dependencies.
func NewService(orderSvc orders.Service, stripeClient StripeCheckoutClient, cfg config.CheckoutConfig) (Service, error) {
	if orderSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if stripeClient == nil {
		return nil, fmt.Errorf("stripe checkout client required")
	}
	if strings.TrimSpace(cfg.SuccessURL) == "" || strings.TrimSpace(cfg.CancelURL) == "" {
		return nil, fmt.Errorf("checkout success and cancel URLs required")
	}
	return &service{
		orders: orderSvc,
		stripe: stripeClient,
		cfg:    cfg,
	}, nil
}

func (s *service) Start(ctx context.Context, input orders.CreateOrderInput) (*StartResponse, error) {
	order, err := s.orders.Create(ctx, input)
	if err != nil {
		return nil, err
	}

	currency := strings.ToLower(strings.TrimSpace(s.cfg.Currency))
	if currency == "" {
		currency = "usd"
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(order.Items))
	for _, item := range order.Items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(item.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(item.UnitPrice.Shift(2).IntPart()),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.ProductName),
				},
			},
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		ClientReferenceID: stripe.String(order.ID.String()),
		LineItems:         lineItems,
		Metadata: map[string]string{
			"order_id": order.ID.String(),
		},
	}

	session, err := s.stripe.CreateSession(ctx, params)
	if err != nil {
		// The pending order stays behind; it will simply never be paid.
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe checkout session")
	}

	return &StartResponse{
		Order:       order,
		RedirectURL: session.URL,
	}, nil
}
