package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vegshop/vegshop-backend/api/responses"
	"github.com/vegshop/vegshop-backend/api/validators"
	"github.com/vegshop/vegshop-backend/internal/inventory"
	"github.com/vegshop/vegshop-backend/internal/partition"
	"github.com/vegshop/vegshop-backend/pkg/enums"
	pkgerrors "github.com/vegshop/vegshop-backend/pkg/errors"
	"github.com/vegshop/vegshop-backend/pkg/logger"
)

const maxItemNameLen = 120

type upsertItemRequest struct {
	ID         *string         `json:"id" validate:"omitempty,uuid"`
	Name       string          `json:"name" validate:"required,max=120"`
	UnitType   string          `json:"unit_type" validate:"required,oneof=KG COUNT"`
	PricePerKg decimal.Decimal `json:"price_per_kg" validate:"dnonneg"`
	TotalStock decimal.Decimal `json:"total_stock" validate:"dnonneg"`
}

type updateStockRequest struct {
	Mode  string          `json:"mode" validate:"required,oneof=SET ADD"`
	Value decimal.Decimal `json:"value"`
}

type copyForwardRequest struct {
	From string `json:"from" validate:"required"`
}

// CustomerStock returns the sellable stock for ?date= (default: today).
func CustomerStock(svc inventory.Service, resolver *partition.Resolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := partitionFromQuery(r, resolver, time.Now())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.GetAvailableStock(r.Context(), key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// AdminListItems returns the raw catalog rows of a day.
func AdminListItems(svc inventory.Service, resolver *partition.Resolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := partitionFromPath(r, resolver)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.ListItems(r.Context(), key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]inventory.ItemDTO, 0, len(items))
		for _, item := range items {
			out = append(out, inventory.NewItemDTO(item))
		}
		responses.WriteSuccess(w, map[string]any{"partition_key": key.String(), "items": out})
	}
}

// AdminUpsertItem creates an item or edits its name, unit and price.
func AdminUpsertItem(svc inventory.Service, resolver *partition.Resolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := partitionFromPath(r, resolver)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req upsertItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		unit, err := enums.ParseUnitType(req.UnitType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit type"))
			return
		}
		input := inventory.UpsertItemInput{
			Name:       validators.SanitizeString(req.Name, maxItemNameLen),
			UnitType:   unit,
			PricePerKg: req.PricePerKg,
			TotalStock: req.TotalStock,
		}
		if req.ID != nil {
			id, err := uuid.Parse(*req.ID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id"))
				return
			}
			input.ID = &id
		}

		item, err := svc.UpsertItem(r.Context(), key, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, inventory.NewItemDTO(*item))
	}
}

// AdminUpdateStock applies a SET or ADD revision to one item.
func AdminUpdateStock(svc inventory.Service, resolver *partition.Resolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := partitionFromPath(r, resolver)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "itemId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id"))
			return
		}

		var req updateStockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		mode, err := enums.ParseStockUpdateMode(req.Mode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid mode"))
			return
		}

		item, err := svc.UpdateStock(r.Context(), key, itemID, mode, req.Value)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, inventory.NewItemDTO(*item))
	}
}

// AdminCopyForward seeds the {date} catalog from another day.
func AdminCopyForward(svc inventory.Service, resolver *partition.Resolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		to, err := partitionFromPath(r, resolver)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req copyForwardRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		from, err := resolver.ResolveDate(req.From)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		copied, err := svc.CopyForward(r.Context(), from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"from":   from.String(),
			"to":     to.String(),
			"copied": copied,
		})
	}
}
