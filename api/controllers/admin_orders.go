package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vegshop/vegshop-backend/api/responses"
	"github.com/vegshop/vegshop-backend/api/validators"
	internalorders "github.com/vegshop/vegshop-backend/internal/orders"
	"github.com/vegshop/vegshop-backend/internal/partition"
	"github.com/vegshop/vegshop-backend/pkg/enums"
	pkgerrors "github.com/vegshop/vegshop-backend/pkg/errors"
	"github.com/vegshop/vegshop-backend/pkg/logger"
)

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// AdminListOrders returns one day's orders in bill sequence order.
func AdminListOrders(svc internalorders.Service, resolver *partition.Resolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := partitionFromQuery(r, resolver, time.Now())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := validators.ParsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var filters internalorders.ListFilters
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
					WithDetails(map[string]any{"field": "status"}))
				return
			}
			filters.Status = &status
		}

		list, err := svc.ListOrders(r.Context(), key, filters, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AdminUpdateOrderStatus moves an order forward along its lifecycle.
func AdminUpdateOrderStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		billID := strings.TrimSpace(chi.URLParam(r, "billId"))
		if billID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "bill id is required"))
			return
		}

		var req updateStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(strings.TrimSpace(req.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		order, err := svc.UpdateStatus(r.Context(), billID, status, actorFromRequest(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
