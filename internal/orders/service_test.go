package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/storelane/storelane-backend/internal/products"
	"github.com/storelane/storelane-backend/pkg/db/models"
	"github.com/storelane/storelane-backend/pkg/enums"
	pkgerrors "github.com/storelane/storelane-backend/pkg/errors"
	"github.com/storelane/storelane-backend/pkg/pagination"
)

type stubTxRunner struct{}

func (s stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubOrdersRepo struct {
	orders       map[uuid.UUID]*models.Order
	createdItems []models.OrderItem
	transitioned bool
	casResult    bool
	casErr       error
}

func newStubOrdersRepo() *stubOrdersRepo {
	return &stubOrdersRepo{orders: map[uuid.UUID]*models.Order{}, casResult: true}
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubOrdersRepo) CreateOrder(_ context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.orders[order.ID] = order
	return order, nil
}

func (s *stubOrdersRepo) CreateOrderItems(_ context.Context, items []models.OrderItem) error {
	s.createdItems = append(s.createdItems, items...)
	return nil
}

func (s *stubOrdersRepo) FindByID(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	if order, ok := s.orders[orderID]; ok {
		return order, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrdersRepo) List(_ context.Context, params pagination.Params, _ ListFilters) (*OrderList, error) {
	out := make([]OrderDTO, 0, len(s.orders))
	for _, order := range s.orders {
		out = append(out, *FromModel(order))
	}
	return &OrderList{Orders: out, Page: pagination.Build(params.Page, int64(len(out)))}, nil
}

func (s *stubOrdersRepo) TransitionStatus(_ context.Context, orderID uuid.UUID, expectedVersion int, next enums.OrderStatus, updates map[string]any) (bool, error) {
	if s.casErr != nil {
		return false, s.casErr
	}
	if !s.casResult {
		return false, nil
	}
	s.transitioned = true
	if order, ok := s.orders[orderID]; ok && order.Version == expectedVersion {
		order.Status = next
		order.Version++
		if tracking, ok := updates["tracking_number"].(string); ok {
			order.TrackingNumber = &tracking
		}
		return true, nil
	}
	return false, nil
}

type stubProductsRepo struct {
	products map[uuid.UUID]*models.Product
}

func newStubProductsRepo() *stubProductsRepo {
	return &stubProductsRepo{products: map[uuid.UUID]*models.Product{}}
}

func (s *stubProductsRepo) WithTx(tx *gorm.DB) products.Repository { return s }

func (s *stubProductsRepo) Create(_ context.Context, product *models.Product) (*models.Product, error) {
	panic("not implemented")
}

func (s *stubProductsRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	if product, ok := s.products[id]; ok {
		return product, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubProductsRepo) List(_ context.Context, _ pagination.Params, _ products.ListFilters) (*products.ProductList, error) {
	panic("not implemented")
}

func (s *stubProductsRepo) Update(_ context.Context, _ uuid.UUID, _ map[string]any) error {
	panic("not implemented")
}

func (s *stubProductsRepo) DecrementStock(_ context.Context, id uuid.UUID, qty int) (bool, error) {
	product, ok := s.products[id]
	if !ok || !product.IsActive || product.StockQty < qty {
		return false, nil
	}
	product.StockQty -= qty
	return true, nil
}

func (s *stubProductsRepo) seed(name string, price string, stock int) *models.Product {
	product := &models.Product{
		ID:       uuid.New(),
		Name:     name,
		Price:    decimal.RequireFromString(price),
		StockQty: stock,
		IsActive: true,
	}
	s.products[product.ID] = product
	return product
}

func newOrderService(t *testing.T, repo Repository, productsRepo products.Repository) Service {
	t.Helper()
	svc, err := NewService(repo, productsRepo, stubTxRunner{})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func TestCreateOrderComputesDecimalTotal(t *testing.T) {
	ordersRepo := newStubOrdersRepo()
	productsRepo := newStubProductsRepo()
	lamp := productsRepo.seed("Desk Lamp", "19.99", 10)
	svc := newOrderService(t, ordersRepo, productsRepo)

	dto, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerID:      uuid.New(),
		ShippingAddress: "123 Main St",
		Lines:           []CartLine{{ProductID: lamp.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if !dto.TotalAmount.Equal(decimal.RequireFromString("39.98")) {
		t.Fatalf("expected total 39.98, got %s", dto.TotalAmount)
	}
	if dto.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending status, got %s", dto.Status)
	}
	if len(ordersRepo.createdItems) != 1 {
		t.Fatalf("expected 1 item, got %d", len(ordersRepo.createdItems))
	}
	if lamp.StockQty != 8 {
		t.Fatalf("expected stock 8 after decrement, got %d", lamp.StockQty)
	}
}

func TestCreateOrderSnapshotsEachLine(t *testing.T) {
	ordersRepo := newStubOrdersRepo()
	productsRepo := newStubProductsRepo()
	lamp := productsRepo.seed("Desk Lamp", "19.99", 10)
	chair := productsRepo.seed("Office Chair", "120.50", 4)
	svc := newOrderService(t, ordersRepo, productsRepo)

	dto, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerID:      uuid.New(),
		ShippingAddress: "123 Main St",
		Lines: []CartLine{
			{ProductID: lamp.ID, Quantity: 1},
			{ProductID: chair.ID, Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if len(dto.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(dto.Items))
	}
	if !dto.TotalAmount.Equal(decimal.RequireFromString("260.99")) {
		t.Fatalf("expected total 260.99, got %s", dto.TotalAmount)
	}
	for _, item := range dto.Items {
		if !item.LineTotal.Equal(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))) {
			t.Fatalf("line total mismatch for %s", item.ProductName)
		}
	}
}

func TestCreateOrderMergesDuplicateLines(t *testing.T) {
	ordersRepo := newStubOrdersRepo()
	productsRepo := newStubProductsRepo()
	lamp := productsRepo.seed("Desk Lamp", "10.00", 10)
	svc := newOrderService(t, ordersRepo, productsRepo)

	dto, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerID:      uuid.New(),
		ShippingAddress: "123 Main St",
		Lines: []CartLine{
			{ProductID: lamp.ID, Quantity: 1},
			{ProductID: lamp.ID, Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if len(dto.Items) != 1 {
		t.Fatalf("expected merged single line, got %d", len(dto.Items))
	}
	if dto.Items[0].Quantity != 3 {
		t.Fatalf("expected merged quantity 3, got %d", dto.Items[0].Quantity)
	}
}

func TestCreateOrderInsufficientStockConflicts(t *testing.T) {
	ordersRepo := newStubOrdersRepo()
	productsRepo := newStubProductsRepo()
	lamp := productsRepo.seed("Desk Lamp", "19.99", 1)
	svc := newOrderService(t, ordersRepo, productsRepo)

	_, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerID:      uuid.New(),
		ShippingAddress: "123 Main St",
		Lines:           []CartLine{{ProductID: lamp.ID, Quantity: 2}},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(ordersRepo.orders) != 0 {
		t.Fatal("expected no order persisted")
	}
}

func TestCreateOrderEmptyCartRejected(t *testing.T) {
	svc := newOrderService(t, newStubOrdersRepo(), newStubProductsRepo())

	_, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerID:      uuid.New(),
		ShippingAddress: "123 Main St",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func seedOrder(repo *stubOrdersRepo, status enums.OrderStatus) *models.Order {
	order := &models.Order{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
		Status:     status,
		Version:    1,
	}
	repo.orders[order.ID] = order
	return order
}

func TestUpdateStatusFollowsTransitionTable(t *testing.T) {
	ordersRepo := newStubOrdersRepo()
	svc := newOrderService(t, ordersRepo, newStubProductsRepo())
	order := seedOrder(ordersRepo, enums.OrderStatusPending)

	dto, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:    order.ID,
		NextStatus: enums.OrderStatusProcessing,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if dto.Status != enums.OrderStatusProcessing {
		t.Fatalf("expected processing, got %s", dto.Status)
	}
	if dto.Version != 2 {
		t.Fatalf("expected version bump to 2, got %d", dto.Version)
	}
}

func TestUpdateStatusRejectsBackwardTransition(t *testing.T) {
	ordersRepo := newStubOrdersRepo()
	svc := newOrderService(t, ordersRepo, newStubProductsRepo())
	order := seedOrder(ordersRepo, enums.OrderStatusDelivered)

	_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:    order.ID,
		NextStatus: enums.OrderStatusPending,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if ordersRepo.transitioned {
		t.Fatal("expected no status write")
	}
}

func TestUpdateStatusCancelFromAnyNonTerminal(t *testing.T) {
	ordersRepo := newStubOrdersRepo()
	svc := newOrderService(t, ordersRepo, newStubProductsRepo())
	order := seedOrder(ordersRepo, enums.OrderStatusShipped)

	dto, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:    order.ID,
		NextStatus: enums.OrderStatusCancelled,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if dto.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", dto.Status)
	}
}

func TestUpdateStatusStaleVersionConflicts(t *testing.T) {
	ordersRepo := newStubOrdersRepo()
	svc := newOrderService(t, ordersRepo, newStubProductsRepo())
	order := seedOrder(ordersRepo, enums.OrderStatusPending)
	order.Version = 3

	_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:         order.ID,
		NextStatus:      enums.OrderStatusProcessing,
		ExpectedVersion: 2,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for stale version, got %v", err)
	}
}

func TestGetEnforcesOwnership(t *testing.T) {
	ordersRepo := newStubOrdersRepo()
	svc := newOrderService(t, ordersRepo, newStubProductsRepo())
	order := seedOrder(ordersRepo, enums.OrderStatusPending)

	owner := order.CustomerID
	if _, err := svc.Get(context.Background(), order.ID, &owner); err != nil {
		t.Fatalf("owner get failed: %v", err)
	}

	stranger := uuid.New()
	_, err := svc.Get(context.Background(), order.ID, &stranger)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for stranger, got %v", err)
	}

	if _, err := svc.Get(context.Background(), order.ID, nil); err != nil {
		t.Fatalf("admin get failed: %v", err)
	}
}
