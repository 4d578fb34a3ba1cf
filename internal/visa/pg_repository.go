package visa

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

const applicationColumns = `id, application_number, student_id, medical_id, visa_type, status, current_stage,
	emgs_reference, val_number, passport_number, passport_expiry, nationality,
	program_name, faculty, program_start_date,
	application_at, documents_submitted_at, emgs_submitted_at, emgs_approved_at,
	val_issued_at, val_expires_at, immigration_submitted_at, immigration_approved_at,
	pass_collected_at, processing_notes, last_updated_by, created_at, updated_at`

func scanApplication(row pgx.Row) (*Application, error) {
	var a Application
	var emgsRef, valNumber, passport, nationality, program, faculty, notes, updatedBy *string

	err := row.Scan(
		&a.ID,
		&a.Number,
		&a.StudentID,
		&a.MedicalID,
		&a.VisaType,
		&a.Status,
		&a.CurrentStage,
		&emgsRef,
		&valNumber,
		&passport,
		&a.PassportExpiry,
		&nationality,
		&program,
		&faculty,
		&a.ProgramStartDate,
		&a.ApplicationAt,
		&a.DocumentsSubmittedAt,
		&a.EmgsSubmittedAt,
		&a.EmgsApprovedAt,
		&a.ValIssuedAt,
		&a.ValExpiresAt,
		&a.ImmigrationSubmittedAt,
		&a.ImmigrationApprovedAt,
		&a.PassCollectedAt,
		&notes,
		&updatedBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	a.EmgsReference = db.Text(emgsRef)
	a.ValNumber = db.Text(valNumber)
	a.PassportNumber = db.Text(passport)
	a.Nationality = db.Text(nationality)
	a.ProgramName = db.Text(program)
	a.Faculty = db.Text(faculty)
	a.ProcessingNotes = db.Text(notes)
	a.LastUpdatedBy = db.Text(updatedBy)
	return &a, nil
}

func (r *PgRepository) Insert(ctx context.Context, a *Application) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO visa_applications (id, application_number, student_id, medical_id, visa_type, status,
			current_stage, progress, passport_number, passport_expiry, nationality,
			program_name, faculty, program_start_date, application_at, last_updated_by,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, now(), now())
		ON CONFLICT DO NOTHING
		RETURNING created_at, updated_at
	`, a.ID, a.Number, a.StudentID, a.MedicalID, a.VisaType, a.Status,
		a.CurrentStage, a.Progress(), db.NullText(a.PassportNumber), a.PassportExpiry, db.NullText(a.Nationality),
		db.NullText(a.ProgramName), db.NullText(a.Faculty), a.ProgramStartDate, a.ApplicationAt,
		db.NullText(a.LastUpdatedBy),
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return refgen.ErrDuplicate
		}
		return fmt.Errorf("insert visa application: %w", err)
	}
	return nil
}

func (r *PgRepository) getBy(ctx context.Context, where string, arg any) (*Application, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+applicationColumns+`
		FROM visa_applications
		WHERE `+where, arg)
	return scanApplication(row)
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Application, error) {
	return r.getBy(ctx, "id = $1", id)
}

func (r *PgRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Application, error) {
	return r.getBy(ctx, "id = $1 FOR UPDATE", id)
}

func (r *PgRepository) GetByStudent(ctx context.Context, studentID string) (*Application, error) {
	return r.getBy(ctx, "student_id = $1", studentID)
}

func (r *PgRepository) GetByMedicalForUpdate(ctx context.Context, medicalID uuid.UUID) (*Application, error) {
	return r.getBy(ctx, "medical_id = $1 FOR UPDATE", medicalID)
}

func (r *PgRepository) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE visa_applications
		SET progress = $2, updated_at = now()
		WHERE id = $1
	`, id, progress)
	if err != nil {
		return fmt.Errorf("update visa progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgRepository) Update(ctx context.Context, a *Application) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE visa_applications
		SET medical_id = $2,
		    status = $3,
		    current_stage = $4,
		    progress = $5,
		    emgs_reference = $6,
		    val_number = $7,
		    documents_submitted_at = $8,
		    emgs_submitted_at = $9,
		    emgs_approved_at = $10,
		    val_issued_at = $11,
		    val_expires_at = $12,
		    immigration_submitted_at = $13,
		    immigration_approved_at = $14,
		    pass_collected_at = $15,
		    processing_notes = $16,
		    last_updated_by = $17,
		    updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, a.ID, a.MedicalID, a.Status, a.CurrentStage, a.Progress(),
		db.NullText(a.EmgsReference), db.NullText(a.ValNumber),
		a.DocumentsSubmittedAt, a.EmgsSubmittedAt, a.EmgsApprovedAt,
		a.ValIssuedAt, a.ValExpiresAt, a.ImmigrationSubmittedAt, a.ImmigrationApprovedAt,
		a.PassCollectedAt, db.NullText(a.ProcessingNotes), db.NullText(a.LastUpdatedBy),
	).Scan(&a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update visa application: %w", err)
	}
	return nil
}

func (r *PgRepository) List(ctx context.Context, status Status) ([]Application, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+applicationColumns+`
		FROM visa_applications
		WHERE ($1::text = '' OR status = $1)
		ORDER BY created_at DESC
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list visa applications: %w", err)
	}
	defer rows.Close()

	var result []Application
	for rows.Next() {
		a, err := scanApplication(rows)
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

func (r *PgRepository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT status, count(*)
		FROM visa_applications
		GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("count visa applications: %w", err)
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
