package visa

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hackgods/student-eservices/internal/medical"
)

func TestReadyForEmgsSubmission(t *testing.T) {
	docs := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		docs    *time.Time
		medical *medical.Examination
		want    bool
	}{
		{"nothing", nil, nil, false},
		{"documents only", &docs, nil, false},
		{"medical pending", &docs, &medical.Examination{Status: medical.StatusPending}, false},
		{"medical passed without documents", nil, &medical.Examination{Status: medical.StatusPassed}, false},
		{"documents and medical passed", &docs, &medical.Examination{Status: medical.StatusPassed}, true},
		{"medical forwarded to EMGS", &docs, &medical.Examination{Status: medical.StatusSubmittedToEmgs}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Application{DocumentsSubmittedAt: tt.docs, Medical: tt.medical}
			assert.Equal(t, tt.want, a.ReadyForEmgsSubmission())
		})
	}
}

func TestVisaTransitions(t *testing.T) {
	chain := []Status{
		StatusPending, StatusDocumentsSubmitted, StatusEmgsProcessing, StatusEmgsApproved,
		StatusValIssued, StatusImmigrationSubmitted, StatusImmigrationApproved, StatusPassCollected,
	}
	for i := 0; i < len(chain)-1; i++ {
		assert.True(t, chain[i].CanTransitionTo(chain[i+1]), "%s -> %s", chain[i], chain[i+1])
		assert.True(t, chain[i].CanTransitionTo(StatusRejected))
		assert.False(t, chain[i+1].CanTransitionTo(chain[i]))
	}
	assert.False(t, StatusPending.CanTransitionTo(StatusEmgsProcessing))
	assert.True(t, StatusPassCollected.Terminal())
	assert.True(t, StatusRejected.Terminal())
}

func TestProgressIsSumOfMilestones(t *testing.T) {
	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	full := Application{
		ApplicationAt:          &at,
		DocumentsSubmittedAt:   &at,
		Medical:                &medical.Examination{Status: medical.StatusPassed},
		EmgsSubmittedAt:        &at,
		EmgsApprovedAt:         &at,
		ValIssuedAt:            &at,
		ImmigrationSubmittedAt: &at,
		ImmigrationApprovedAt:  &at,
		PassCollectedAt:        &at,
	}
	assert.Equal(t, 100, full.Progress())
	assert.Zero(t, Application{}.Progress())
	assert.Equal(t, 10, Application{Medical: &medical.Examination{Status: medical.StatusPassed}}.Progress())
}
