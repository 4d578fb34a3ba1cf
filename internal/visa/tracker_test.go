package visa_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/student-eservices/internal/apperr"
	"github.com/hackgods/student-eservices/internal/identity"
	"github.com/hackgods/student-eservices/internal/medical"
	"github.com/hackgods/student-eservices/internal/notify"
	"github.com/hackgods/student-eservices/internal/notify/notifytest"
	"github.com/hackgods/student-eservices/internal/storage/memory"
	"github.com/hackgods/student-eservices/internal/visa"
)

var (
	campus  = time.FixedZone("MYT", 8*60*60)
	now     = time.Date(2026, time.October, 15, 9, 0, 0, 0, campus)
	staff   = identity.Staff("STAFF01")
	student = identity.Student("TP001")
)

type fixture struct {
	visa    *visa.Tracker
	medical *medical.Tracker
	rec     *notifytest.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, func(r visa.Repository) visa.Repository { return r })
}

func newFixtureWith(t *testing.T, wrap func(visa.Repository) visa.Repository) *fixture {
	t.Helper()
	store := memory.New()
	for _, s := range []identity.StudentRecord{
		{ID: "TP001", FullName: "Aisha Rahman", Email: "aisha@example.edu"},
		{ID: "TP002", FullName: "Wei Chen", Email: "wei@example.edu"},
	} {
		require.NoError(t, store.Directory().Upsert(context.Background(), s))
	}

	rec := &notifytest.Recorder{}
	dispatcher := notify.NewDispatcher(rec, store.Directory(), zap.NewNop())
	clock := func() time.Time { return now }

	med := medical.NewTracker(medical.Deps{
		Repo:       store.Medical(),
		Tx:         store,
		Sequencer:  store.Sequencer(),
		Directory:  store.Directory(),
		Dispatcher: dispatcher,
		Log:        zap.NewNop(),
		Location:   campus,
		Now:        clock,
	})
	v := visa.NewTracker(visa.Deps{
		Repo:       wrap(store.Visas()),
		Medical:    med,
		Tx:         store,
		Sequencer:  store.Sequencer(),
		Directory:  store.Directory(),
		Dispatcher: dispatcher,
		Log:        zap.NewNop(),
		Location:   campus,
		Now:        clock,
	})
	return &fixture{visa: v, medical: med, rec: rec}
}

func (f *fixture) passMedical(t *testing.T, studentID string) {
	t.Helper()
	ctx := context.Background()
	yes := true

	exam, err := f.medical.GetOrCreate(ctx, studentID)
	require.NoError(t, err)
	_, err = f.medical.UpdateTests(ctx, exam.ID, medical.TestUpdate{ChestXray: &yes, BloodTest: &yes, UrineTest: &yes}, staff)
	require.NoError(t, err)
	_, err = f.medical.SubmitResult(ctx, exam.ID, true, "fit", staff)
	require.NoError(t, err)
}

func programme() visa.ProgramDetails {
	return visa.ProgramDetails{
		PassportNumber: "A12345678",
		Nationality:    "Indonesian",
		ProgramName:    "BSc Computer Science",
		Faculty:        "Computing",
	}
}

func TestCreateLinksMedicalCase(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, err := f.visa.Create(ctx, "TP001", programme(), student)
	require.NoError(t, err)

	assert.Equal(t, "VA-2026-00001", a.Number)
	assert.Equal(t, visa.StatusPending, a.Status)
	assert.Equal(t, visa.DefaultVisaType, a.VisaType)
	assert.Equal(t, "Application Created", a.CurrentStage)
	assert.Equal(t, 5, a.Progress())
	require.NotNil(t, a.MedicalID)

	exam, err := f.medical.GetByStudent(ctx, "TP001")
	require.NoError(t, err)
	assert.Equal(t, exam.ID, *a.MedicalID)
	assert.Equal(t, []string{"Visa Application Created"}, f.rec.Subjects())
}

func TestCreateRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.visa.Create(ctx, "TP001", programme(), student)
	require.NoError(t, err)
	_, err = f.visa.Create(ctx, "TP001", programme(), student)
	assert.True(t, apperr.Is(err, apperr.KindAlreadyExists))

	opened, err := f.visa.GetOrCreate(ctx, "TP002")
	require.NoError(t, err)
	assert.Equal(t, "Not Started", opened.CurrentStage)
	assert.Zero(t, opened.Progress())
	assert.NotNil(t, opened.Medical)

	_, err = f.visa.Create(ctx, "TP002", programme(), identity.Student("TP002"))
	assert.True(t, apperr.Is(err, apperr.KindAlreadyExists))

	_, err = f.visa.Create(ctx, "TP002", programme(), student)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.visa.GetOrCreate(ctx, "TP001")
	require.NoError(t, err)
	again, err := f.visa.GetOrCreate(ctx, "TP001")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	_, err = f.visa.GetOrCreate(ctx, "TP404")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestEmgsSubmissionWaitsForMedicalPass(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, err := f.visa.Create(ctx, "TP001", programme(), student)
	require.NoError(t, err)

	a, err = f.visa.SubmitDocuments(ctx, "TP001", student)
	require.NoError(t, err)
	assert.Equal(t, visa.StatusDocumentsSubmitted, a.Status)
	assert.Equal(t, 20, a.Progress())
	assert.False(t, a.ReadyForEmgsSubmission())

	_, err = f.visa.SubmitToEmgs(ctx, a.ID, staff)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	f.passMedical(t, "TP001")

	a, err = f.visa.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, a.ReadyForEmgsSubmission())
	before := a.Progress()
	assert.Equal(t, 30, before)

	a, err = f.visa.SubmitToEmgs(ctx, a.ID, staff)
	require.NoError(t, err)
	assert.Equal(t, visa.StatusEmgsProcessing, a.Status)
	assert.Equal(t, "EMGS Processing - 0%", a.CurrentStage)
	assert.Regexp(t, `^EMGS-VISA-\d+-\d{4}$`, a.EmgsReference)
	assert.GreaterOrEqual(t, a.Progress(), before+10)
	assert.Equal(t, "STAFF01", a.LastUpdatedBy)
}

func TestSubmitDocumentsRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.visa.SubmitDocuments(ctx, "TP001", student)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.visa.Create(ctx, "TP001", programme(), student)
	require.NoError(t, err)

	_, err = f.visa.SubmitDocuments(ctx, "TP001", identity.Student("TP002"))
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.visa.SubmitDocuments(ctx, "TP001", student)
	require.NoError(t, err)
	_, err = f.visa.SubmitDocuments(ctx, "TP001", student)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
}

func TestStatusChainAndTimeline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, err := f.visa.Create(ctx, "TP001", programme(), student)
	require.NoError(t, err)
	_, err = f.visa.SubmitDocuments(ctx, "TP001", student)
	require.NoError(t, err)
	f.passMedical(t, "TP001")
	_, err = f.visa.SubmitToEmgs(ctx, a.ID, staff)
	require.NoError(t, err)

	steps := []struct {
		status   visa.Status
		stage    string
		progress int
	}{
		{visa.StatusEmgsApproved, "EMGS Approved - 32%", 60},
		{visa.StatusValIssued, "VAL Issued - 70%", 80},
		{visa.StatusImmigrationSubmitted, "Immigration Processing", 90},
		{visa.StatusImmigrationApproved, "Student Pass Approved - Ready for Collection", 95},
		{visa.StatusPassCollected, "Student Pass Collected - Complete", 100},
	}
	for _, s := range steps {
		a, err = f.visa.UpdateStatus(ctx, a.ID, s.status, "ok", staff)
		require.NoError(t, err, s.status)
		assert.Equal(t, s.status, a.Status)
		assert.Equal(t, s.stage, a.CurrentStage)
		assert.Equal(t, s.progress, a.Progress())
		assert.Equal(t, "ok", a.ProcessingNotes)
	}

	assert.Regexp(t, `^VAL-\d+-\d{4}$`, a.ValNumber)
	require.NotNil(t, a.ValExpiresAt)
	assert.Equal(t, now.AddDate(0, 6, 0), *a.ValExpiresAt)

	events, err := f.visa.Timeline(ctx, "TP001")
	require.NoError(t, err)
	var titles []string
	for _, ev := range events {
		titles = append(titles, ev.Title)
		assert.Equal(t, visa.TimelineCompleted, ev.Status, ev.Title)
	}
	assert.Equal(t, []string{
		"Application Created",
		"Documents Submitted",
		"Medical Examination",
		"EMGS Submission",
		"EMGS Approved",
		"VAL Issued",
		"Immigration Submission",
		"Immigration Approved",
		"Pass Collected",
	}, titles)
	assert.Equal(t, "Medical status: PASSED", events[2].Description)

	_, err = f.visa.UpdateStatus(ctx, a.ID, visa.StatusRejected, "", staff)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	subjects := f.rec.Subjects()
	assert.Equal(t, "Visa Application Status Update", subjects[len(subjects)-1])
}

func TestTimelineOfFreshApplication(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.visa.Create(ctx, "TP001", programme(), student)
	require.NoError(t, err)

	events, err := f.visa.Timeline(ctx, "TP001")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Application Created", events[0].Title)
	assert.Equal(t, "Medical Examination", events[1].Title)
	assert.Equal(t, visa.TimelineInProgress, events[1].Status)
	assert.Nil(t, events[1].At)

	_, err = f.visa.Timeline(ctx, "TP002")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUpdateStatusRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, err := f.visa.Create(ctx, "TP001", programme(), student)
	require.NoError(t, err)

	_, err = f.visa.UpdateStatus(ctx, a.ID, visa.StatusEmgsApproved, "", student)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.visa.UpdateStatus(ctx, a.ID, "LOST", "", staff)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.visa.UpdateStatus(ctx, a.ID, visa.StatusDocumentsSubmitted, "", staff)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	_, err = f.visa.UpdateStatus(ctx, a.ID, visa.StatusEmgsApproved, "", staff)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	rejected, err := f.visa.UpdateStatus(ctx, a.ID, visa.StatusRejected, "incomplete passport", staff)
	require.NoError(t, err)
	assert.Equal(t, "Application Rejected", rejected.CurrentStage)
	assert.Equal(t, "incomplete passport", rejected.ProcessingNotes)

	_, err = f.visa.SubmitDocuments(ctx, "TP001", student)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
}

func TestMedicalChangeRecomputesVisaProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, err := f.visa.Create(ctx, "TP001", programme(), student)
	require.NoError(t, err)
	assert.Equal(t, 5, a.Progress())

	f.passMedical(t, "TP001")

	a, err = f.visa.GetByStudent(ctx, "TP001")
	require.NoError(t, err)
	assert.Equal(t, medical.StatusPassed, a.Medical.Status)
	assert.Equal(t, 15, a.Progress())
}

// countingRepo counts the two ways an application can be written.
type countingRepo struct {
	visa.Repository
	fullUpdates     int
	progressUpdates int
}

func (r *countingRepo) Update(ctx context.Context, a *visa.Application) error {
	r.fullUpdates++
	return r.Repository.Update(ctx, a)
}

func (r *countingRepo) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	r.progressUpdates++
	return r.Repository.UpdateProgress(ctx, id, progress)
}

func TestMedicalChangeKeepsVisaMilestones(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepo{}
	f := newFixtureWith(t, func(r visa.Repository) visa.Repository {
		repo.Repository = r
		return repo
	})

	a, err := f.visa.Create(ctx, "TP001", programme(), student)
	require.NoError(t, err)
	_, err = f.visa.SubmitDocuments(ctx, "TP001", student)
	require.NoError(t, err)
	f.passMedical(t, "TP001")
	submitted, err := f.visa.SubmitToEmgs(ctx, a.ID, staff)
	require.NoError(t, err)

	full, narrow := repo.fullUpdates, repo.progressUpdates
	exam, err := f.medical.GetByStudent(ctx, "TP001")
	require.NoError(t, err)
	_, err = f.medical.SubmitToEmgs(ctx, exam.ID, staff)
	require.NoError(t, err)

	assert.Equal(t, full, repo.fullUpdates, "medical changes never rewrite the whole application")
	assert.Equal(t, narrow+1, repo.progressUpdates)

	got, err := f.visa.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, visa.StatusEmgsProcessing, got.Status)
	assert.Equal(t, submitted.EmgsReference, got.EmgsReference)
	require.NotNil(t, got.EmgsSubmittedAt)
	assert.Equal(t, medical.StatusSubmittedToEmgs, got.Medical.Status)
}

func TestListAndStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.visa.Create(ctx, "TP001", programme(), student)
	require.NoError(t, err)
	_, err = f.visa.GetOrCreate(ctx, "TP002")
	require.NoError(t, err)
	_, err = f.visa.SubmitDocuments(ctx, "TP001", student)
	require.NoError(t, err)

	pending, err := f.visa.List(ctx, visa.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "TP002", pending[0].StudentID)
	assert.NotNil(t, pending[0].Medical)

	st, err := f.visa.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 1, st.ByStatus[visa.StatusDocumentsSubmitted])
}
