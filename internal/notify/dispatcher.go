package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/student-eservices/internal/identity"
)

const sendTimeout = 10 * time.Second

// Dispatcher addresses messages to students and hands them to a Notifier.
// Call it only after the triggering change has committed.
type Dispatcher struct {
	notifier Notifier
	dir      identity.Directory
	log      *zap.Logger
}

func NewDispatcher(n Notifier, dir identity.Directory, log *zap.Logger) *Dispatcher {
	return &Dispatcher{notifier: n, dir: dir, log: log}
}

// Dispatch is best effort: failures are logged and dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, studentID, subject string, body func(name string) string) {
	if err := d.Send(ctx, studentID, subject, body); err != nil {
		d.log.Warn("notification not delivered",
			zap.String("student_id", studentID),
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}

// Send resolves the student's address, renders the body with the student's
// name and delivers it, returning any failure.
func (d *Dispatcher) Send(ctx context.Context, studentID, subject string, body func(name string) string) error {
	// the request that triggered this may already be finishing
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()

	student, err := d.dir.Lookup(ctx, studentID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}

	msg := Message{To: student.Email, Subject: subject, Body: body(student.FullName)}
	if err := d.notifier.Notify(ctx, msg); err != nil {
		return fmt.Errorf("notify %s: %w", student.Email, err)
	}
	return nil
}
