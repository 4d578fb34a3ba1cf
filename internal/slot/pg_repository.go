package slot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/student-eservices/internal/db"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const slotColumns = `id, location_type, location_name, room_number, staff_id, starts_at, ends_at,
	max_capacity, booked_count, available, appointment_type, notes, created_at, updated_at`

func scanSlot(row pgx.Row) (*TimeSlot, error) {
	var s TimeSlot
	var room, staff, apptType, notes *string

	err := row.Scan(
		&s.ID,
		&s.LocationType,
		&s.LocationName,
		&room,
		&staff,
		&s.StartsAt,
		&s.EndsAt,
		&s.MaxCapacity,
		&s.BookedCount,
		&s.Available,
		&apptType,
		&notes,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.RoomNumber = db.Text(room)
	s.StaffID = db.Text(staff)
	s.AppointmentType = db.Text(apptType)
	s.Notes = db.Text(notes)
	return &s, nil
}

func (r *PgRepository) Insert(ctx context.Context, s *TimeSlot) (bool, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO time_slots (id, location_type, location_name, room_number, staff_id, starts_at, ends_at,
			max_capacity, booked_count, available, appointment_type, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		ON CONFLICT (location_name, starts_at) DO NOTHING
	`, s.ID, s.LocationType, s.LocationName, db.NullText(s.RoomNumber), db.NullText(s.StaffID),
		s.StartsAt, s.EndsAt, s.MaxCapacity, s.BookedCount, s.Available,
		db.NullText(s.AppointmentType), db.NullText(s.Notes))
	if err != nil {
		return false, fmt.Errorf("insert time slot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) Get(ctx context.Context, key Key) (*TimeSlot, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM time_slots
		WHERE location_name = $1 AND starts_at = $2
	`, key.LocationName, key.StartsAt)
	return scanSlot(row)
}

// Increment is a conditional update, so two transactions racing for the last
// unit serialize on the row lock and the loser matches no row.
func (r *PgRepository) Increment(ctx context.Context, key Key) (*TimeSlot, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE time_slots
		SET booked_count = booked_count + 1,
		    available = booked_count + 1 < max_capacity,
		    updated_at = now()
		WHERE location_name = $1
		  AND starts_at = $2
		  AND booked_count < max_capacity
		RETURNING `+slotColumns, key.LocationName, key.StartsAt)

	s, err := scanSlot(row)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := r.Get(ctx, key); getErr != nil {
			return nil, getErr
		}
		return nil, ErrUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("increment time slot: %w", err)
	}
	return s, nil
}

func (r *PgRepository) Decrement(ctx context.Context, key Key) (*TimeSlot, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE time_slots
		SET booked_count = GREATEST(booked_count - 1, 0),
		    available = true,
		    updated_at = now()
		WHERE location_name = $1 AND starts_at = $2
		RETURNING `+slotColumns, key.LocationName, key.StartsAt)

	s, err := scanSlot(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("decrement time slot: %w", err)
	}
	return s, err
}

func (r *PgRepository) ListAvailable(ctx context.Context, q Query, after *Cursor, limit int) ([]TimeSlot, error) {
	var afterAt *time.Time
	var afterName string
	if after != nil {
		afterAt = &after.StartsAt
		afterName = after.LocationName
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+slotColumns+`
		FROM time_slots
		WHERE available
		  AND ($1::text = '' OR location_name = $1)
		  AND ($2::text = '' OR location_type = $2)
		  AND ($3::timestamptz IS NULL OR starts_at >= $3)
		  AND ($4::timestamptz IS NULL OR starts_at < $4)
		  AND ($5::timestamptz IS NULL OR (starts_at, location_name) > ($5, $6::text))
		ORDER BY starts_at, location_name
		LIMIT $7
	`, q.LocationName, string(q.LocationType), q.From, q.To, afterAt, afterName, limit)
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	defer rows.Close()

	var result []TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
