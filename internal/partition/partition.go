// Package partition maps calendar dates onto the storage partition that holds
// that day's inventory, bill counter and orders.
package partition

import (
	"strings"
	"time"

	pkgerrors "github.com/vegshop/vegshop-backend/pkg/errors"
)

// DateLayout is the canonical key format for dated partitions.
const DateLayout = "2006-01-02"

const legacyValue = "legacy"

// LegacyDates predate per-day partitioning; their data lives in the shared
// legacy bucket. The list is a closed migration table, not a rule. Confirm with
// the shop owner before adding dates.
var LegacyDates = []string{
	"2025-01-18",
	"2025-01-19",
	"2025-01-20",
}

// Key identifies a partition. The zero Key is invalid; keys come from a Resolver.
type Key struct {
	value string
}

// Legacy is the unpartitioned bucket shared by every date in LegacyDates.
var Legacy = Key{value: legacyValue}

func (k Key) String() string { return k.value }

func (k Key) IsZero() bool { return k.value == "" }

func (k Key) IsLegacy() bool { return k.value == legacyValue }

// Resolver turns instants into partition keys using the shop's local calendar.
type Resolver struct {
	loc    *time.Location
	legacy map[string]struct{}
}

// NewResolver builds a resolver for loc. A nil loc falls back to time.Local.
func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	legacy := make(map[string]struct{}, len(LegacyDates))
	for _, d := range LegacyDates {
		legacy[d] = struct{}{}
	}
	return &Resolver{loc: loc, legacy: legacy}
}

// Location returns the timezone used to pick the calendar day.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Resolve returns the partition for the local calendar day containing t.
func (r *Resolver) Resolve(t time.Time) Key {
	day := t.In(r.loc).Format(DateLayout)
	if _, ok := r.legacy[day]; ok {
		return Legacy
	}
	return Key{value: day}
}

// LocalDay truncates t to midnight of its local calendar day.
func (r *Resolver) LocalDay(t time.Time) time.Time {
	local := t.In(r.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.loc)
}

// ParseDay parses a YYYY-MM-DD string as a local calendar day.
func (r *Resolver) ParseDay(value string) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), r.loc)
	if err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "date must be formatted as YYYY-MM-DD").
			WithDetails(map[string]any{"date": value})
	}
	return day, nil
}

// ResolveDate parses a YYYY-MM-DD string and resolves its partition.
func (r *Resolver) ResolveDate(value string) (Key, error) {
	day, err := r.ParseDay(value)
	if err != nil {
		return Key{}, err
	}
	return r.Resolve(day), nil
}

// FromStored rebuilds a key previously persisted by this package.
func FromStored(value string) (Key, error) {
	if value == legacyValue {
		return Legacy, nil
	}
	if _, err := time.Parse(DateLayout, value); err != nil {
		return Key{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid partition key")
	}
	return Key{value: value}, nil
}
