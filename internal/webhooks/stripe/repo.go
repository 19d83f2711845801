package stripewebhook

import (
	"context"

	"gorm.io/gorm"

	"github.com/storelane/storelane-backend/pkg/db/models"
)

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository builds a payment repository bound to the provided DB.
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) WithTx(tx *gorm.DB) PaymentRepository {
	if tx == nil {
		return r
	}
	return &paymentRepository{db: tx}
}

func (r *paymentRepository) FindByProviderTxnID(ctx context.Context, txnID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("provider_txn_id = ?", txnID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, err
	}
	return payment, nil
}
