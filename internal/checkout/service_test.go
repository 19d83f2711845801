package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/storelane/storelane-backend/internal/orders"
	"github.com/storelane/storelane-backend/pkg/config"
	"github.com/storelane/storelane-backend/pkg/enums"
	pkgerrors "github.com/storelane/storelane-backend/pkg/errors"
	"github.com/storelane/storelane-backend/pkg/pagination"
)

type stubOrderService struct {
	created   *orders.OrderDTO
	createErr error
}

func (s *stubOrderService) Create(_ context.Context, input orders.CreateOrderInput) (*orders.OrderDTO, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.created, nil
}

func (s *stubOrderService) UpdateStatus(_ context.Context, _ orders.UpdateStatusInput) (*orders.OrderDTO, error) {
	panic("not implemented")
}

func (s *stubOrderService) List(_ context.Context, _ pagination.Params, _ orders.ListFilters) (*orders.OrderList, error) {
	panic("not implemented")
}

func (s *stubOrderService) Get(_ context.Context, _ uuid.UUID, _ *uuid.UUID) (*orders.OrderDTO, error) {
	panic("not implemented")
}

type stubStripeCheckout struct {
	params  *stripe.CheckoutSessionParams
	session *stripe.CheckoutSession
	err     error
}

func (s *stubStripeCheckout) CreateSession(_ context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.params = params
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

func sampleOrder() *orders.OrderDTO {
	return &orders.OrderDTO{
		ID:          uuid.New(),
		CustomerID:  uuid.New(),
		Status:      enums.OrderStatusPending,
		TotalAmount: decimal.RequireFromString("39.98"),
		Items: []orders.OrderItemDTO{
			{
				ProductID:   uuid.New(),
				ProductName: "Desk Lamp",
				UnitPrice:   decimal.RequireFromString("19.99"),
				Quantity:    2,
				LineTotal:   decimal.RequireFromString("39.98"),
			},
		},
	}
}

func testCheckoutConfig() config.CheckoutConfig {
	return config.CheckoutConfig{
		SuccessURL: "https://shop.example.com/success",
		CancelURL:  "https://shop.example.com/cancel",
		Currency:   "usd",
	}
}

func TestStartCreatesSessionWithOrderMetadata(t *testing.T) {
	order := sampleOrder()
	stripeStub := &stubStripeCheckout{
		session: &stripe.CheckoutSession{URL: "https://checkout.stripe.com/pay/cs_test_1"},
	}
	svc, err := NewService(&stubOrderService{created: order}, stripeStub, testCheckoutConfig())
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	resp, err := svc.Start(context.Background(), orders.CreateOrderInput{
		CustomerID:      order.CustomerID,
		ShippingAddress: "123 Main St",
		Lines:           []orders.CartLine{{ProductID: order.Items[0].ProductID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if resp.RedirectURL != "https://checkout.stripe.com/pay/cs_test_1" {
		t.Fatalf("unexpected redirect url %s", resp.RedirectURL)
	}
	if stripeStub.params.Metadata["order_id"] != order.ID.String() {
		t.Fatalf("expected order id metadata, got %v", stripeStub.params.Metadata)
	}
	if len(stripeStub.params.LineItems) != 1 {
		t.Fatalf("expected 1 line item, got %d", len(stripeStub.params.LineItems))
	}
	if got := *stripeStub.params.LineItems[0].PriceData.UnitAmount; got != 1999 {
		t.Fatalf("expected unit amount 1999 cents, got %d", got)
	}
}

func TestStartPropagatesOrderFailure(t *testing.T) {
	svc, err := NewService(
		&stubOrderService{createErr: pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock")},
		&stubStripeCheckout{},
		testCheckoutConfig(),
	)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	_, err = svc.Start(context.Background(), orders.CreateOrderInput{})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict passthrough, got %v", err)
	}
}

func TestStartWrapsStripeFailure(t *testing.T) {
	svc, err := NewService(
		&stubOrderService{created: sampleOrder()},
		&stubStripeCheckout{err: errors.New("stripe down")},
		testCheckoutConfig(),
	)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	_, err = svc.Start(context.Background(), orders.CreateOrderInput{})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
