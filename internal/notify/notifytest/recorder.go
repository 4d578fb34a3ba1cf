// Package notifytest provides an in-memory notify.Notifier for tests.
package notifytest

import (
	"context"
	"sync"
	"time"

	"github.com/hackgods/student-eservices/internal/notify"
)

// Recorder keeps every message in memory. Setting Fail makes Notify return
// that error without recording. Delay holds each delivery back, like a slow
// relay; a cancelled ctx aborts the wait.
type Recorder struct {
	mu       sync.Mutex
	messages []notify.Message
	Fail     error
	Delay    time.Duration
}

func (r *Recorder) Notify(ctx context.Context, msg notify.Message) error {
	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail
	}
	r.messages = append(r.messages, msg)
	return nil
}

func (r *Recorder) SetFail(err error) {
	r.mu.Lock()
	r.Fail = err
	r.mu.Unlock()
}

func (r *Recorder) Messages() []notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Message(nil), r.messages...)
}

// Subjects lists the subjects sent so far, in order.
func (r *Recorder) Subjects() []string {
	var out []string
	for _, m := range r.Messages() {
		out = append(out, m.Subject)
	}
	return out
}
