// Package billing issues per-partition bill sequence numbers and formats them
// into the printed bill id.
package billing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/vegshop/vegshop-backend/internal/partition"
	pkgerrors "github.com/vegshop/vegshop-backend/pkg/errors"
)

const (
	billPrefix     = "ES"
	billDateLayout = "02012006"
)

// Generator hands out bill sequences. It only works against a caller-owned
// transaction so the number commits or rolls back with the order it belongs to.
type Generator struct {
	repo Repository
}

// NewGenerator wires the counter repository.
func NewGenerator(repo Repository) (*Generator, error) {
	if repo == nil {
		return nil, fmt.Errorf("bill counter repository required")
	}
	return &Generator{repo: repo}, nil
}

// Next returns the next sequence for key inside tx.
func (g *Generator) Next(ctx context.Context, tx *gorm.DB, key partition.Key) (int64, error) {
	if tx == nil {
		return 0, fmt.Errorf("bill sequence requires a transaction")
	}
	if key.IsZero() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "partition key required")
	}
	return g.repo.WithTx(tx).NextSequence(ctx, key)
}

// Last reports the most recently issued sequence for key, zero when none.
func (g *Generator) Last(ctx context.Context, key partition.Key) (int64, error) {
	return g.repo.LastSequence(ctx, key)
}

// FormatBillID renders ES + ddmmyyyy + a sequence padded to three digits.
func FormatBillID(day time.Time, sequence int64) string {
	return fmt.Sprintf("%s%s%03d", billPrefix, day.Format(billDateLayout), sequence)
}

// ParseBillID splits a bill id back into its day and sequence.
func ParseBillID(id string, loc *time.Location) (time.Time, int64, error) {
	if loc == nil {
		loc = time.Local
	}
	invalid := func(err error) error {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed bill id").
			WithDetails(map[string]any{"bill_id": id})
	}
	if len(id) < len(billPrefix)+len(billDateLayout)+3 || id[:len(billPrefix)] != billPrefix {
		return time.Time{}, 0, invalid(nil)
	}
	datePart := id[len(billPrefix) : len(billPrefix)+len(billDateLayout)]
	day, err := time.ParseInLocation(billDateLayout, datePart, loc)
	if err != nil {
		return time.Time{}, 0, invalid(err)
	}
	seq, err := strconv.ParseInt(id[len(billPrefix)+len(billDateLayout):], 10, 64)
	if err != nil || seq <= 0 {
		return time.Time{}, 0, invalid(err)
	}
	return day, seq, nil
}
