package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/storelane/storelane-backend/api/responses"
	"github.com/storelane/storelane-backend/api/validators"
	checkoutsvc "github.com/storelane/storelane-backend/internal/checkout"
	ordersvc "github.com/storelane/storelane-backend/internal/orders"
	pkgerrors "github.com/storelane/storelane-backend/pkg/errors"
	"github.com/storelane/storelane-backend/pkg/logger"
)

type checkoutLineRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type checkoutRequest struct {
	ShippingAddress string                `json:"shipping_address" validate:"required"`
	Lines           []checkoutLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// Checkout creates a pending order from the submitted cart and opens a
// provider payment session for it.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := make([]ordersvc.CartLine, 0, len(body.Lines))
		for _, line := range body.Lines {
			productID, err := uuid.Parse(line.ProductID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
				return
			}
			lines = append(lines, ordersvc.CartLine{ProductID: productID, Quantity: line.Quantity})
		}

		result, err := svc.Start(r.Context(), ordersvc.CreateOrderInput{
			CustomerID:      userID,
			ShippingAddress: body.ShippingAddress,
			Lines:           lines,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
