// Package refgen allocates human-readable reference numbers such as
// APT-2026-00042 from a serialized per-prefix, per-year counter.
package refgen

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/student-eservices/internal/db"
)

const (
	PrefixAppointment = "APT"
	PrefixMedical     = "MED"
	PrefixVisa        = "VA"
)

// ErrDuplicate is returned by repositories when a generated number collides
// with an existing row; callers draw the next number and retry.
var ErrDuplicate = errors.New("reference number already in use")

// MaxAttempts bounds the retry-on-conflict loop around inserts.
const MaxAttempts = 5

// Sequencer hands out strictly increasing values per (prefix, year).
type Sequencer interface {
	Next(ctx context.Context, prefix string, year int) (int64, error)
}

// Format renders a reference number, e.g. Format("MED", 2026, 7) == "MED-2026-00007".
func Format(prefix string, year int, n int64) string {
	return fmt.Sprintf("%s-%d-%05d", prefix, year, n)
}

// NextNumber draws the next formatted reference for prefix in the year of now.
func NextNumber(ctx context.Context, seq Sequencer, prefix string, now time.Time) (string, error) {
	year := now.Year()
	n, err := seq.Next(ctx, prefix, year)
	if err != nil {
		return "", fmt.Errorf("next %s sequence: %w", prefix, err)
	}
	return Format(prefix, year, n), nil
}

// Allocate draws numbers until insert accepts one, retrying while insert
// reports ErrDuplicate.
func Allocate(ctx context.Context, seq Sequencer, prefix string, now time.Time, insert func(number string) error) (string, error) {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		number, err := NextNumber(ctx, seq, prefix, now)
		if err != nil {
			return "", err
		}
		err = insert(number)
		if errors.Is(err, ErrDuplicate) {
			continue
		}
		if err != nil {
			return "", err
		}
		return number, nil
	}
	return "", fmt.Errorf("allocate %s number after %d attempts: %w", prefix, MaxAttempts, ErrDuplicate)
}

// ExternalReference builds an opaque submission reference such as
// EMGS-MED-1760500000000-4821. The random suffix keeps two submissions in the
// same millisecond apart.
func ExternalReference(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, now.UnixMilli(), rand.IntN(10000))
}

type PgSequencer struct {
	pool *pgxpool.Pool
}

func NewPgSequencer(pool *pgxpool.Pool) *PgSequencer {
	return &PgSequencer{pool: pool}
}

// Next increments the counter row under its row lock. Inside a transaction the
// increment commits or rolls back with the record that uses it.
func (s *PgSequencer) Next(ctx context.Context, prefix string, year int) (int64, error) {
	var n int64
	err := db.Conn(ctx, s.pool).QueryRow(ctx, `
		INSERT INTO reference_counters (prefix, year, value)
		VALUES ($1, $2, 1)
		ON CONFLICT (prefix, year) DO UPDATE
		SET value = reference_counters.value + 1
		RETURNING value
	`, prefix, year).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("increment reference counter: %w", err)
	}
	return n, nil
}
