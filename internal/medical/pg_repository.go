package medical

import (
	"context"
	"errors"
	"fmt"

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

const examinationColumns = `id, examination_number, student_id, status,
	appointment_at, clinic_name, clinic_address, clinic_phone,
	examination_at, result_at, passed, result_notes,
	chest_xray_done, blood_test_done, urine_test_done,
	submitted_to_emgs, emgs_submitted_at, emgs_reference,
	expires_at, last_updated_by, created_at, updated_at`

func scanExamination(row pgx.Row) (*Examination, error) {
	var e Examination
	var clinicName, clinicAddress, clinicPhone, notes, reference, updatedBy *string

	err := row.Scan(
		&e.ID,
		&e.Number,
		&e.StudentID,
		&e.Status,
		&e.AppointmentAt,
		&clinicName,
		&clinicAddress,
		&clinicPhone,
		&e.ExaminationAt,
		&e.ResultAt,
		&e.Passed,
		&notes,
		&e.ChestXrayDone,
		&e.BloodTestDone,
		&e.UrineTestDone,
		&e.SubmittedToEmgs,
		&e.EmgsSubmittedAt,
		&reference,
		&e.ExpiresAt,
		&updatedBy,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	e.ClinicName = db.Text(clinicName)
	e.ClinicAddress = db.Text(clinicAddress)
	e.ClinicPhone = db.Text(clinicPhone)
	e.ResultNotes = db.Text(notes)
	e.EmgsReference = db.Text(reference)
	e.LastUpdatedBy = db.Text(updatedBy)
	return &e, nil
}

func (r *PgRepository) Insert(ctx context.Context, e *Examination) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO medical_examinations (id, examination_number, student_id, status, progress, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT DO NOTHING
		RETURNING created_at, updated_at
	`, e.ID, e.Number, e.StudentID, e.Status, e.Progress()).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return refgen.ErrDuplicate
		}
		return fmt.Errorf("insert medical examination: %w", err)
	}
	return nil
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Examination, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+examinationColumns+`
		FROM medical_examinations
		WHERE id = $1
	`, id)
	return scanExamination(row)
}

func (r *PgRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Examination, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+examinationColumns+`
		FROM medical_examinations
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanExamination(row)
}

func (r *PgRepository) GetByStudent(ctx context.Context, studentID string) (*Examination, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+examinationColumns+`
		FROM medical_examinations
		WHERE student_id = $1
	`, studentID)
	return scanExamination(row)
}

func (r *PgRepository) Update(ctx context.Context, e *Examination) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE medical_examinations
		SET status = $2,
		    appointment_at = $3,
		    clinic_name = $4,
		    clinic_address = $5,
		    clinic_phone = $6,
		    examination_at = $7,
		    result_at = $8,
		    passed = $9,
		    result_notes = $10,
		    chest_xray_done = $11,
		    blood_test_done = $12,
		    urine_test_done = $13,
		    submitted_to_emgs = $14,
		    emgs_submitted_at = $15,
		    emgs_reference = $16,
		    expires_at = $17,
		    progress = $18,
		    last_updated_by = $19,
		    updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, e.ID, e.Status, e.AppointmentAt,
		db.NullText(e.ClinicName), db.NullText(e.ClinicAddress), db.NullText(e.ClinicPhone),
		e.ExaminationAt, e.ResultAt, e.Passed, db.NullText(e.ResultNotes),
		e.ChestXrayDone, e.BloodTestDone, e.UrineTestDone,
		e.SubmittedToEmgs, e.EmgsSubmittedAt, db.NullText(e.EmgsReference),
		e.ExpiresAt, e.Progress(), db.NullText(e.LastUpdatedBy),
	).Scan(&e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update medical examination: %w", err)
	}
	return nil
}

func (r *PgRepository) List(ctx context.Context, status Status) ([]Examination, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+examinationColumns+`
		FROM medical_examinations
		WHERE ($1::text = '' OR status = $1)
		ORDER BY created_at DESC
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list medical examinations: %w", err)
	}
	defer rows.Close()

	var result []Examination
	for rows.Next() {
		e, err := scanExamination(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT status, count(*)
		FROM medical_examinations
		GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("count medical examinations: %w", err)
	}
	defer rows.Close()

	counts := map[Status]int{}
	for rows.Next() {
		var st Status
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		counts[st] = n
	}
	return counts, rows.Err()
}
