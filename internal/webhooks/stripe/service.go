package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/storelane/storelane-backend/internal/orders"
	"github.com/storelane/storelane-backend/pkg/db"
	"github.com/storelane/storelane-backend/pkg/db/models"
	"github.com/storelane/storelane-backend/pkg/enums"
	pkgerrors "github.com/storelane/storelane-backend/pkg/errors"
	"github.com/storelane/storelane-backend/pkg/logger"
	"github.com/storelane/storelane-backend/pkg/metrics"
)

const providerName = "stripe"

// PaymentRepository defines persistence operations for payment rows.
type PaymentRepository interface {
	WithTx(tx *gorm.DB) PaymentRepository
	FindByProviderTxnID(ctx context.Context, txnID string) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) (*models.Payment, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams bundles the dependencies of the reconciliation listener.
type ServiceParams struct {
	PaymentRepo       PaymentRepository
	OrdersRepo        orders.Repository
	TransactionRunner txRunner
	Metrics           *metrics.WebhookMetrics
	Logger            *logger.Logger
}

// Service reconciles provider payment events against local orders.
type Service struct {
	payments PaymentRepository
	orders   orders.Repository
	txRunner txRunner
	metrics  *metrics.WebhookMetrics
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.PaymentRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment repo required")
	}
	if params.OrdersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		payments: params.PaymentRepo,
		orders:   params.OrdersRepo,
		txRunner: params.TransactionRunner,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// HandleEvent processes a verified Stripe event. Unknown event types and
// unknown orders are acked so the provider stops redelivering them; transient
// failures return an error so the delivery is retried.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		return nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
	}

	orderID, ok := orderIDFromSession(&session)
	if !ok {
		s.metrics.IncUnknownOrder(providerName)
		if s.logg != nil {
			s.logg.Warn(ctx, "stripe event carries no resolvable order id")
		}
		return nil
	}

	amount := decimal.New(session.AmountTotal, -2)
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		paymentRepo := s.payments.WithTx(tx)
		orderRepo := s.orders.WithTx(tx)

		// Second defense after the unique index: a replayed txn id is a no-op.
		if _, err := paymentRepo.FindByProviderTxnID(ctx, session.ID); err == nil {
			s.metrics.IncDuplicate(providerName)
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment")
		}

		order, err := orderRepo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.metrics.IncUnknownOrder(providerName)
				if s.logg != nil {
					s.logg.Warn(ctx, "stripe event references unknown order")
				}
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		now := time.Now().UTC()
		_, err = paymentRepo.Create(ctx, &models.Payment{
			OrderID:       order.ID,
			Provider:      providerName,
			ProviderTxnID: session.ID,
			Amount:        amount,
			Method:        enums.PaymentMethodCard,
			Status:        enums.PaymentStatusCompleted,
			ReceivedAt:    &now,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "idx_payments_provider_txn_id") {
				s.metrics.IncDuplicate(providerName)
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment")
		}

		if order.Status == enums.OrderStatusPending {
			ok, err := orderRepo.TransitionStatus(ctx, order.ID, order.Version, enums.OrderStatusProcessing, map[string]any{
				"paid_at": now,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition order")
			}
			if !ok {
				// Lost the CAS race with an admin update. Roll back and let the
				// provider redeliver against the new order state.
				return pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently")
			}
		}

		s.metrics.IncProcessed(providerName)
		return nil
	})
	if err != nil {
		s.metrics.IncFailed(providerName)
		return err
	}
	return nil
}

func orderIDFromSession(session *stripe.CheckoutSession) (uuid.UUID, bool) {
	raw := session.Metadata["order_id"]
	if raw == "" {
		raw = session.ClientReferenceID
	}
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
