package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vegshop/vegshop-backend/api/middleware"
	"github.com/vegshop/vegshop-backend/api/responses"
	"github.com/vegshop/vegshop-backend/api/validators"
	internalorders "github.com/vegshop/vegshop-backend/internal/orders"
	"github.com/vegshop/vegshop-backend/internal/submission"
	pkgerrors "github.com/vegshop/vegshop-backend/pkg/errors"
	"github.com/vegshop/vegshop-backend/pkg/logger"
	"github.com/vegshop/vegshop-backend/pkg/outbox"
)

type placeOrderItem struct {
	ItemID   string          `json:"item_id" validate:"required,uuid"`
	Quantity decimal.Decimal `json:"quantity" validate:"dpositive"`
}

type placeOrderRequest struct {
	Items    []placeOrderItem `json:"items" validate:"required,min=1,dive"`
	BagCount int              `json:"bag_count" validate:"gte=0,lte=50"`
}

// Place submits the caller's cart. Submissions from one session are run
// through the admitter, so at most one is in flight at a time.
func Place(svc internalorders.Service, admitter submission.Admitter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID := middleware.UserIDFromContext(r.Context())
		if customerID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing"))
			return
		}

		var req placeOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalorders.PlaceOrderInput{
			CustomerID: customerID,
			BagCount:   req.BagCount,
			Items:      make([]internalorders.ItemRequest, 0, len(req.Items)),
			Actor:      &outbox.ActorRef{UserID: customerID, Role: middleware.RoleFromContext(r.Context())},
		}
		for _, item := range req.Items {
			id, err := uuid.Parse(item.ItemID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id"))
				return
			}
			input.Items = append(input.Items, internalorders.ItemRequest{ItemID: id, Quantity: item.Quantity})
		}

		session := middleware.SessionIDFromContext(r.Context())
		if session == "" {
			session = customerID
		}

		var placed *internalorders.PlacedOrder
		err := admitter.Do(r.Context(), session, func(ctx context.Context) error {
			var placeErr error
			placed, placeErr = svc.PlaceOrder(ctx, input)
			return placeErr
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, placed)
	}
}

// List returns the caller's own orders, newest first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListCustomerOrders(r.Context(), middleware.UserIDFromContext(r.Context()), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one order by bill id. Orders belonging to other customers
// are reported as missing.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		billID := strings.TrimSpace(chi.URLParam(r, "billId"))
		if billID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "bill id is required"))
			return
		}

		order, err := svc.GetOrder(r.Context(), billID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if order.CustomerID != middleware.UserIDFromContext(r.Context()) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}
		responses.WriteSuccess(w, order)
	}
}
