package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/student-eservices/internal/appointment"
	"github.com/hackgods/student-eservices/internal/medical"
	"github.com/hackgods/student-eservices/internal/slot"
	"github.com/hackgods/student-eservices/internal/visa"
)

// Dates are YYYY-MM-DD and clock times HH:MM in the campus time zone.

type GenerateSlotsRequest struct {
	LocationType    string `json:"location_type" validate:"required,oneof=MEDICAL_CLINIC INTERNATIONAL_OFFICE"`
	LocationName    string `json:"location_name" validate:"required,max=120"`
	RoomNumber      string `json:"room_number" validate:"max=40"`
	StaffID         string `json:"staff_id"`
	AppointmentType string `json:"appointment_type" validate:"omitempty,oneof=MEDICAL OFFICE_CONSULTATION DOCUMENT_SUBMISSION VISA_INTERVIEW"`
	Notes           string `json:"notes"`
	FromDate        string `json:"from_date" validate:"required"`
	ToDate          string `json:"to_date" validate:"required"`
	StartTime       string `json:"start_time" validate:"required"`
	EndTime         string `json:"end_time" validate:"required"`
	SlotMinutes     int    `json:"slot_duration_minutes" validate:"required,gt=0,lte=480"`
	Capacity        int    `json:"capacity" validate:"gte=0,lte=100"`
}

type GenerateSlotsResponse struct {
	Created int `json:"created"`
}

type SlotResponse struct {
	ID              uuid.UUID `json:"id"`
	LocationType    string    `json:"location_type"`
	LocationName    string    `json:"location_name"`
	RoomNumber      string    `json:"room_number,omitempty"`
	StaffID         string    `json:"staff_id,omitempty"`
	Date            string    `json:"date"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	StartsAt        time.Time `json:"starts_at"`
	MaxCapacity     int       `json:"max_capacity"`
	BookedCount     int       `json:"booked_count"`
	Available       bool      `json:"available"`
	AppointmentType string    `json:"appointment_type,omitempty"`
	Notes           string    `json:"notes,omitempty"`
}

func toSlotResponse(s slot.TimeSlot, loc *time.Location) SlotResponse {
	return SlotResponse{
		ID:              s.ID,
		LocationType:    string(s.LocationType),
		LocationName:    s.LocationName,
		RoomNumber:      s.RoomNumber,
		StaffID:         s.StaffID,
		Date:            s.StartsAt.In(loc).Format(slot.DateLayout),
		StartTime:       slot.FormatClock(s.StartsAt, loc),
		EndTime:         slot.FormatClock(s.EndsAt, loc),
		StartsAt:        s.StartsAt,
		MaxCapacity:     s.MaxCapacity,
		BookedCount:     s.BookedCount,
		Available:       s.Available,
		AppointmentType: s.AppointmentType,
		Notes:           s.Notes,
	}
}

type BookAppointmentRequest struct {
	// StudentID defaults to the caller; staff may book for any student.
	StudentID       string `json:"student_id"`
	Type            string `json:"appointment_type" validate:"required,oneof=MEDICAL OFFICE_CONSULTATION DOCUMENT_SUBMISSION VISA_INTERVIEW"`
	LocationName    string `json:"location_name" validate:"required"`
	Date            string `json:"date" validate:"required"`
	StartTime       string `json:"start_time" validate:"required"`
	LocationAddress string `json:"location_address" validate:"max=255"`
	LocationPhone   string `json:"location_phone" validate:"max=40"`
	Purpose         string `json:"purpose" validate:"max=500"`
	Notes           string `json:"notes" validate:"max=1000"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type RescheduleAppointmentRequest struct {
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes" validate:"max=1000"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID  `json:"id"`
	Number             string     `json:"appointment_number"`
	StudentID          string     `json:"student_id"`
	Type               string     `json:"appointment_type"`
	Status             string     `json:"status"`
	LocationName       string     `json:"location_name"`
	LocationAddress    string     `json:"location_address,omitempty"`
	LocationPhone      string     `json:"location_phone,omitempty"`
	RoomNumber         string     `json:"room_number,omitempty"`
	StartsAt           time.Time  `json:"starts_at"`
	DurationMinutes    int        `json:"duration_minutes"`
	AssignedStaff      string     `json:"assigned_staff,omitempty"`
	Purpose            string     `json:"purpose,omitempty"`
	StudentNotes       string     `json:"student_notes,omitempty"`
	StaffNotes         string     `json:"staff_notes,omitempty"`
	Confirmed          bool       `json:"confirmed"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	ReminderSent       bool       `json:"reminder_sent"`
	RescheduleCount    int        `json:"reschedule_count"`
	OriginalStartsAt   *time.Time `json:"original_starts_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID,
		Number:             a.Number,
		StudentID:          a.StudentID,
		Type:               string(a.Type),
		Status:             string(a.Status),
		LocationName:       a.LocationName,
		LocationAddress:    a.LocationAddress,
		LocationPhone:      a.LocationPhone,
		RoomNumber:         a.RoomNumber,
		StartsAt:           a.StartsAt,
		DurationMinutes:    a.DurationMinutes,
		AssignedStaff:      a.AssignedStaff,
		Purpose:            a.Purpose,
		StudentNotes:       a.StudentNotes,
		StaffNotes:         a.StaffNotes,
		Confirmed:          a.Confirmed,
		ConfirmedAt:        a.ConfirmedAt,
		ReminderSent:       a.ReminderSent,
		RescheduleCount:    a.RescheduleCount,
		OriginalStartsAt:   a.OriginalStartsAt,
		CancellationReason: a.CancellationReason,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func toAppointmentResponses(appts []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

type EventResponse struct {
	EventType string    `json:"event_type"`
	Actor     string    `json:"actor"`
	Payload   any       `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ScheduleMedicalRequest struct {
	Date          string `json:"date" validate:"required"`
	Time          string `json:"time" validate:"required"`
	ClinicName    string `json:"clinic_name" validate:"required,max=120"`
	ClinicAddress string `json:"clinic_address" validate:"max=255"`
	ClinicPhone   string `json:"clinic_phone" validate:"max=40"`
}

type RecordExaminationRequest struct {
	ExaminedAt time.Time `json:"examined_at" validate:"required"`
}

type UpdateTestsRequest struct {
	ChestXray *bool `json:"chest_xray_done"`
	BloodTest *bool `json:"blood_test_done"`
	UrineTest *bool `json:"urine_test_done"`
}

type SubmitResultRequest struct {
	Passed *bool  `json:"passed" validate:"required"`
	Notes  string `json:"notes" validate:"max=1000"`
}

type MedicalResponse struct {
	ID                uuid.UUID  `json:"id"`
	Number            string     `json:"examination_number"`
	StudentID         string     `json:"student_id"`
	Status            string     `json:"status"`
	Progress          int        `json:"progress_percentage"`
	AppointmentAt     *time.Time `json:"appointment_at,omitempty"`
	ClinicName        string     `json:"clinic_name,omitempty"`
	ClinicAddress     string     `json:"clinic_address,omitempty"`
	ClinicPhone       string     `json:"clinic_phone,omitempty"`
	ExaminationAt     *time.Time `json:"examination_at,omitempty"`
	ResultAt          *time.Time `json:"result_at,omitempty"`
	Passed            *bool      `json:"passed,omitempty"`
	ResultNotes       string     `json:"result_notes,omitempty"`
	ChestXrayDone     bool       `json:"chest_xray_done"`
	BloodTestDone     bool       `json:"blood_test_done"`
	UrineTestDone     bool       `json:"urine_test_done"`
	AllTestsCompleted bool       `json:"all_tests_completed"`
	SubmittedToEmgs   bool       `json:"submitted_to_emgs"`
	EmgsSubmittedAt   *time.Time `json:"emgs_submitted_at,omitempty"`
	EmgsReference     string     `json:"emgs_reference,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	Expired           bool       `json:"expired"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func toMedicalResponse(e medical.Examination, now time.Time) MedicalResponse {
	return MedicalResponse{
		ID:                e.ID,
		Number:            e.Number,
		StudentID:         e.StudentID,
		Status:            string(e.Status),
		Progress:          e.Progress(),
		AppointmentAt:     e.AppointmentAt,
		ClinicName:        e.ClinicName,
		ClinicAddress:     e.ClinicAddress,
		ClinicPhone:       e.ClinicPhone,
		ExaminationAt:     e.ExaminationAt,
		ResultAt:          e.ResultAt,
		Passed:            e.Passed,
		ResultNotes:       e.ResultNotes,
		ChestXrayDone:     e.ChestXrayDone,
		BloodTestDone:     e.BloodTestDone,
		UrineTestDone:     e.UrineTestDone,
		AllTestsCompleted: e.AllTestsCompleted(),
		SubmittedToEmgs:   e.SubmittedToEmgs,
		EmgsSubmittedAt:   e.EmgsSubmittedAt,
		EmgsReference:     e.EmgsReference,
		ExpiresAt:         e.ExpiresAt,
		Expired:           e.Expired(now),
		UpdatedAt:         e.UpdatedAt,
	}
}

type CreateVisaRequest struct {
	VisaType         string     `json:"visa_type" validate:"max=40"`
	PassportNumber   string     `json:"passport_number" validate:"required,alphanum,max=20"`
	PassportExpiry   *time.Time `json:"passport_expiry"`
	Nationality      string     `json:"nationality" validate:"required,max=60"`
	ProgramName      string     `json:"program_name" validate:"required,max=160"`
	Faculty          string     `json:"faculty" validate:"max=120"`
	ProgramStartDate *time.Time `json:"program_start_date"`
}

type VisaResponse struct {
	ID                     uuid.UUID  `json:"id"`
	Number                 string     `json:"application_number"`
	StudentID              string     `json:"student_id"`
	VisaType               string     `json:"visa_type"`
	Status                 string     `json:"status"`
	CurrentStage           string     `json:"current_stage"`
	Progress               int        `json:"progress_percentage"`
	MedicalStatus          string     `json:"medical_status,omitempty"`
	ReadyForEmgs           bool       `json:"ready_for_emgs"`
	EmgsReference          string     `json:"emgs_reference,omitempty"`
	ValNumber              string     `json:"val_number,omitempty"`
	PassportNumber         string     `json:"passport_number,omitempty"`
	Nationality            string     `json:"nationality,omitempty"`
	ProgramName            string     `json:"program_name,omitempty"`
	Faculty                string     `json:"faculty,omitempty"`
	ApplicationAt          *time.Time `json:"application_at,omitempty"`
	DocumentsSubmittedAt   *time.Time `json:"documents_submitted_at,omitempty"`
	EmgsSubmittedAt        *time.Time `json:"emgs_submitted_at,omitempty"`
	EmgsApprovedAt         *time.Time `json:"emgs_approved_at,omitempty"`
	ValIssuedAt            *time.Time `json:"val_issued_at,omitempty"`
	ValExpiresAt           *time.Time `json:"val_expires_at,omitempty"`
	ImmigrationSubmittedAt *time.Time `json:"immigration_submitted_at,omitempty"`
	ImmigrationApprovedAt  *time.Time `json:"immigration_approved_at,omitempty"`
	PassCollectedAt        *time.Time `json:"pass_collected_at,omitempty"`
	ProcessingNotes        string     `json:"processing_notes,omitempty"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

func toVisaResponse(a visa.Application) VisaResponse {
	resp := VisaResponse{
		ID:                     a.ID,
		Number:                 a.Number,
		StudentID:              a.StudentID,
		VisaType:               a.VisaType,
		Status:                 string(a.Status),
		CurrentStage:           a.CurrentStage,
		Progress:               a.Progress(),
		ReadyForEmgs:           a.ReadyForEmgsSubmission(),
		EmgsReference:          a.EmgsReference,
		ValNumber:              a.ValNumber,
		PassportNumber:         a.PassportNumber,
		Nationality:            a.Nationality,
		ProgramName:            a.ProgramName,
		Faculty:                a.Faculty,
		ApplicationAt:          a.ApplicationAt,
		DocumentsSubmittedAt:   a.DocumentsSubmittedAt,
		EmgsSubmittedAt:        a.EmgsSubmittedAt,
		EmgsApprovedAt:         a.EmgsApprovedAt,
		ValIssuedAt:            a.ValIssuedAt,
		ValExpiresAt:           a.ValExpiresAt,
		ImmigrationSubmittedAt: a.ImmigrationSubmittedAt,
		ImmigrationApprovedAt:  a.ImmigrationApprovedAt,
		PassCollectedAt:        a.PassCollectedAt,
		ProcessingNotes:        a.ProcessingNotes,
		UpdatedAt:              a.UpdatedAt,
	}
	if a.Medical != nil {
		resp.MedicalStatus = string(a.Medical.Status)
	}
	return resp
}

type TimelineResponse struct {
	Number       string               `json:"application_number"`
	Status       string               `json:"current_status"`
	CurrentStage string               `json:"current_stage"`
	Progress     int                  `json:"progress_percentage"`
	Timeline     []visa.TimelineEvent `json:"timeline"`
}
