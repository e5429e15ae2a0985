package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vegshop/vegshop-backend/api/middleware"
	"github.com/vegshop/vegshop-backend/internal/partition"
	"github.com/vegshop/vegshop-backend/pkg/outbox"
)

// partitionFromPath resolves the {date} route parameter.
func partitionFromPath(r *http.Request, resolver *partition.Resolver) (partition.Key, error) {
	return resolver.ResolveDate(chi.URLParam(r, "date"))
}

// partitionFromQuery resolves ?date=, defaulting to the partition serving now.
func partitionFromQuery(r *http.Request, resolver *partition.Resolver, now time.Time) (partition.Key, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		return resolver.Resolve(now), nil
	}
	return resolver.ResolveDate(raw)
}

func actorFromRequest(r *http.Request) *outbox.ActorRef {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return nil
	}
	return &outbox.ActorRef{UserID: userID, Role: middleware.RoleFromContext(r.Context())}
}
