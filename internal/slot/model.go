package slot

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type LocationType string

const (
	LocationMedicalClinic       LocationType = "MEDICAL_CLINIC"
	LocationInternationalOffice LocationType = "INTERNATIONAL_OFFICE"
)

// TimeSlot is one bookable capacity unit at a location. Its identity is
// (LocationName, StartsAt); ID is a surrogate for storage.
type TimeSlot struct {
	ID              uuid.UUID
	LocationType    LocationType
	LocationName    string
	RoomNumber      string
	StaffID         string
	StartsAt        time.Time
	EndsAt          time.Time
	MaxCapacity     int
	BookedCount     int
	Available       bool
	AppointmentType string // empty means any appointment type
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (s TimeSlot) Key() Key {
	return Key{LocationName: s.LocationName, StartsAt: s.StartsAt}
}

func (s TimeSlot) Duration() time.Duration {
	return s.EndsAt.Sub(s.StartsAt)
}

func (s TimeSlot) HasCapacity() bool {
	return s.BookedCount < s.MaxCapacity
}

// Accepts reports whether an appointment of the given type may use the slot.
func (s TimeSlot) Accepts(appointmentType string) bool {
	return s.AppointmentType == "" || s.AppointmentType == appointmentType
}

// Key identifies a slot by location and start instant.
type Key struct {
	LocationName string
	StartsAt     time.Time
}

// String is stable across time zones and is used as the lock key.
func (k Key) String() string {
	return fmt.Sprintf("slot:%s:%s", k.LocationName, k.StartsAt.UTC().Format(time.RFC3339))
}

// GenerateRequest describes a block of slots: every date in [FromDate,
// ToDate], cut into SlotDuration pieces between DayStart and DayEnd.
type GenerateRequest struct {
	LocationType    LocationType
	LocationName    string
	RoomNumber      string
	StaffID         string
	AppointmentType string
	Notes           string
	FromDate        time.Time
	ToDate          time.Time
	DayStart        time.Duration // offset from midnight
	DayEnd          time.Duration
	SlotDuration    time.Duration
	Capacity        int // defaults to 1
}

// Filter selects slots for FindAvailable.
//
// LocationName alone restricts to that calendar date. LocationType alone
// covers Date through Date+LookaheadDays. Both together apply both predicates
// on Date only. Neither returns every slot with spare capacity.
type Filter struct {
	LocationName  string
	LocationType  LocationType
	Date          time.Time
	LookaheadDays int
}

// Query is the storage-level form of a Filter.
type Query struct {
	LocationName string
	LocationType LocationType
	From         *time.Time // inclusive
	To           *time.Time // exclusive
}

// Cursor marks the last row of a page for keyset pagination.
type Cursor struct {
	StartsAt     time.Time
	LocationName string
}
