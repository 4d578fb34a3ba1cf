package slot

import (
	"context"

	"github.com/hackgods/student-eservices/internal/apperr"
)

var (
	ErrNotFound    = apperr.NotFound("time slot not found")
	ErrUnavailable = apperr.SlotUnavailable("time slot is fully booked")
)

// Repository persists slots. Increment and Decrement must be atomic with
// respect to concurrent callers on the same key.
type Repository interface {
	// Insert stores s and reports false when a slot with the same key exists.
	Insert(ctx context.Context, s *TimeSlot) (bool, error)
	Get(ctx context.Context, key Key) (*TimeSlot, error)

	// Increment adds one booking if capacity remains; ErrUnavailable otherwise.
	Increment(ctx context.Context, key Key) (*TimeSlot, error)
	// Decrement removes one booking, never going below zero.
	Decrement(ctx context.Context, key Key) (*TimeSlot, error)

	// ListAvailable returns up to limit slots with spare capacity after the
	// cursor, ordered by start then location.
	ListAvailable(ctx context.Context, q Query, after *Cursor, limit int) ([]TimeSlot, error)
}
