package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/vegshop/vegshop-backend/internal/partition"
	"github.com/vegshop/vegshop-backend/pkg/db/models"
	"github.com/vegshop/vegshop-backend/pkg/logger"
)

// defaultRolloverLookback bounds how many days back the job searches for a
// stocked catalog, covering a closed week.
const defaultRolloverLookback = 7

type catalogCopier interface {
	ListItems(ctx context.Context, key partition.Key) ([]models.InventoryItem, error)
	CopyForward(ctx context.Context, from, to partition.Key) (int, error)
}

type CatalogRolloverJobParams struct {
	Logger    *logger.Logger
	Inventory catalogCopier
	Resolver  *partition.Resolver
	// Lookback defaults to a week.
	Lookback int
}

// NewCatalogRolloverJob seeds today's catalog from the most recent stocked
// day when the shop has not stocked today yet. Days the shop was closed are
// skipped, up to Lookback days back.
func NewCatalogRolloverJob(params CatalogRolloverJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("partition resolver required")
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = defaultRolloverLookback
	}
	return &catalogRolloverJob{
		logg:      params.Logger,
		inventory: params.Inventory,
		resolver:  params.Resolver,
		lookback:  lookback,
		now:       time.Now,
	}, nil
}

type catalogRolloverJob struct {
	logg      *logger.Logger
	inventory catalogCopier
	resolver  *partition.Resolver
	lookback  int
	now       func() time.Time
}

func (j *catalogRolloverJob) Name() string { return "catalog_rollover" }

func (j *catalogRolloverJob) Run(ctx context.Context) error {
	today := j.resolver.LocalDay(j.now())
	to := j.resolver.Resolve(today)

	logCtx := j.logg.WithField(ctx, "to", to.String())
	if to.IsLegacy() {
		j.logg.Info(logCtx, "catalog rollover skipped")
		return nil
	}

	existing, err := j.inventory.ListItems(ctx, to)
	if err != nil {
		return fmt.Errorf("catalog rollover: list %s: %w", to, err)
	}
	if len(existing) > 0 {
		j.logg.Info(logCtx, "catalog already stocked")
		return nil
	}

	from, err := j.latestStocked(ctx, today, to)
	if err != nil {
		return err
	}
	if from.IsZero() {
		j.logg.Warn(j.logg.WithField(logCtx, "lookback_days", j.lookback), "no stocked catalog to roll over")
		return nil
	}

	copied, err := j.inventory.CopyForward(ctx, from, to)
	if err != nil {
		return fmt.Errorf("catalog rollover: %w", err)
	}
	logCtx = j.logg.WithFields(logCtx, map[string]any{"from": from.String(), "items_copied": copied})
	j.logg.Info(logCtx, "catalog rollover complete")
	return nil
}

// latestStocked walks back from today to the newest partition holding items.
// The legacy partition is the oldest there is, so the walk ends on it.
func (j *catalogRolloverJob) latestStocked(ctx context.Context, today time.Time, to partition.Key) (partition.Key, error) {
	for back := 1; back <= j.lookback; back++ {
		key := j.resolver.Resolve(today.AddDate(0, 0, -back))
		if key == to {
			continue
		}
		items, err := j.inventory.ListItems(ctx, key)
		if err != nil {
			return partition.Key{}, fmt.Errorf("catalog rollover: list %s: %w", key, err)
		}
		if len(items) > 0 {
			return key, nil
		}
		if key.IsLegacy() {
			break
		}
	}
	return partition.Key{}, nil
}
