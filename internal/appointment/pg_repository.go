package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/student-eservices/internal/db"
	"github.com/hackgods/student-eservices/internal/refgen"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, appointment_number, student_id, appointment_type,
	location_name, location_address, location_phone, room_number,
	starts_at, duration_minutes, assigned_staff, status,
	purpose, student_notes, staff_notes,
	confirmed, confirmed_at, reminder_sent, reminder_sent_at, reminder_count,
	reschedule_count, original_starts_at, cancellation_reason,
	created_by, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var address, phone, room, staff, purpose, studentNotes, staffNotes, reason *string

	err := row.Scan(
		&a.ID,
		&a.Number,
		&a.StudentID,
		&a.Type,
		&a.LocationName,
		&address,
		&phone,
		&room,
		&a.StartsAt,
		&a.DurationMinutes,
		&staff,
		&a.Status,
		&purpose,
		&studentNotes,
		&staffNotes,
		&a.Confirmed,
		&a.ConfirmedAt,
		&a.ReminderSent,
		&a.ReminderSentAt,
		&a.ReminderCount,
		&a.RescheduleCount,
		&a.OriginalStartsAt,
		&reason,
		&a.CreatedBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	a.LocationAddress = db.Text(address)
	a.LocationPhone = db.Text(phone)
	a.RoomNumber = db.Text(room)
	a.AssignedStaff = db.Text(staff)
	a.Purpose = db.Text(purpose)
	a.StudentNotes = db.Text(studentNotes)
	a.StaffNotes = db.Text(staffNotes)
	a.CancellationReason = db.Text(reason)
	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) Insert(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointments (id, appointment_number, student_id, appointment_type,
			location_name, location_address, location_phone, room_number,
			starts_at, duration_minutes, assigned_staff, status,
			purpose, student_notes, staff_notes,
			confirmed, confirmed_at, reminder_sent, reminder_sent_at, reminder_count,
			reschedule_count, original_starts_at, cancellation_reason,
			created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, now(), now())
		ON CONFLICT (appointment_number) DO NOTHING
		RETURNING created_at, updated_at
	`, a.ID, a.Number, a.StudentID, a.Type,
		a.LocationName, db.NullText(a.LocationAddress), db.NullText(a.LocationPhone), db.NullText(a.RoomNumber),
		a.StartsAt, a.DurationMinutes, db.NullText(a.AssignedStaff), a.Status,
		db.NullText(a.Purpose), db.NullText(a.StudentNotes), db.NullText(a.StaffNotes),
		a.Confirmed, a.ConfirmedAt, a.ReminderSent, a.ReminderSentAt, a.ReminderCount,
		a.RescheduleCount, a.OriginalStartsAt, db.NullText(a.CancellationReason),
		a.CreatedBy)

	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return refgen.ErrDuplicate
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) Update(ctx context.Context, a *Appointment) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointments
		SET room_number = $2,
		    starts_at = $3,
		    duration_minutes = $4,
		    assigned_staff = $5,
		    status = $6,
		    staff_notes = $7,
		    confirmed = $8,
		    confirmed_at = $9,
		    reminder_sent = $10,
		    reminder_sent_at = $11,
		    reminder_count = $12,
		    reschedule_count = $13,
		    original_starts_at = $14,
		    cancellation_reason = $15,
		    updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, a.ID, db.NullText(a.RoomNumber), a.StartsAt, a.DurationMinutes, db.NullText(a.AssignedStaff),
		a.Status, db.NullText(a.StaffNotes), a.Confirmed, a.ConfirmedAt,
		a.ReminderSent, a.ReminderSentAt, a.ReminderCount,
		a.RescheduleCount, a.OriginalStartsAt, db.NullText(a.CancellationReason),
	).Scan(&a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) ListByStudent(ctx context.Context, studentID string, status Status) ([]Appointment, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE student_id = $1
		  AND ($2::text = '' OR status = $2)
		ORDER BY starts_at DESC
	`, studentID, string(status))
	if err != nil {
		return nil, fmt.Errorf("list student appointments: %w", err)
	}
	return scanAppointments(rows)
}

func (r *PgRepository) Upcoming(ctx context.Context, studentID string, from time.Time) ([]Appointment, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE student_id = $1
		  AND starts_at >= $2
		  AND status IN ('PENDING', 'CONFIRMED', 'RESCHEDULED')
		ORDER BY starts_at ASC
	`, studentID, from)
	if err != nil {
		return nil, fmt.Errorf("list upcoming appointments: %w", err)
	}
	return scanAppointments(rows)
}

func (r *PgRepository) List(ctx context.Context, f ListFilter) ([]Appointment, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE ($1::text = '' OR status = $1)
		  AND ($2::text = '' OR appointment_type = $2)
		  AND ($3::text = '' OR assigned_staff = $3)
		  AND ($4::timestamptz IS NULL OR starts_at >= $4)
		  AND ($5::timestamptz IS NULL OR starts_at < $5)
		ORDER BY starts_at DESC
	`, string(f.Status), string(f.Type), f.AssignedStaff, f.From, f.To)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return scanAppointments(rows)
}

func (r *PgRepository) DueForReminder(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE starts_at >= $1
		  AND starts_at < $2
		  AND status IN ('PENDING', 'CONFIRMED')
		  AND NOT reminder_sent
		ORDER BY starts_at ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("find appointments due for reminder: %w", err)
	}
	return scanAppointments(rows)
}

func (r *PgRepository) Counts(ctx context.Context) ([]Count, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT status, appointment_type, count(*)
		FROM appointments
		GROUP BY status, appointment_type
	`)
	if err != nil {
		return nil, fmt.Errorf("count appointments: %w", err)
	}
	defer rows.Close()

	var result []Count
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Status, &c.Type, &c.N); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev Event) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO appointment_events (event_type, appointment_id, actor, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.EventType, ev.AppointmentID, ev.Actor, ev.Payload, db.NullTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert appointment event: %w", err)
	}
	return nil
}

func (r *PgRepository) ListEvents(ctx context.Context, appointmentID uuid.UUID) ([]Event, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, event_type, appointment_id, actor, payload, created_at
		FROM appointment_events
		WHERE appointment_id = $1
		ORDER BY id ASC
	`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("list appointment events: %w", err)
	}
	defer rows.Close()

	var result []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.AppointmentID, &ev.Actor, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}
