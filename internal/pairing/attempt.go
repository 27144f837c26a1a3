package pairing

import (
	"context"
	"os"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
)

// State is the linking progress of one attempt.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateCodeIssued
	StateLinked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateCodeIssued:
		return "code-issued"
	case StateLinked:
		return "linked"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Attempt is one end-to-end run of the linking flow for a single
// requester. Each attempt owns its working directory, client and timer
// exclusively; nothing here is shared across attempts.
type Attempt struct {
	ID    string
	Owner string
	Phone string // empty for the QR flow

	workDir string

	mu     sync.Mutex
	state  State
	code   string
	err    error
	client *whatsmeow.Client
	timer  *time.Timer

	codeCh chan struct{} // closed when the first code/QR payload arrives
	doneCh chan struct{} // closed on a terminal state

	cleanupOnce sync.Once
	released    bool
	onCleanup   func() // set by the orchestrator to drop its references
}

func newAttempt(id, owner, phone, workDir string) *Attempt {
	return &Attempt{
		ID:      id,
		Owner:   owner,
		Phone:   phone,
		workDir: workDir,
		state:   StateIdle,
		codeCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// WorkDir is the attempt's private working directory. Its contents are
// only meaningful after the attempt reaches Linked.
func (a *Attempt) WorkDir() string { return a.workDir }

func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Code is the latest pairing code or QR payload issued for this attempt.
func (a *Attempt) Code() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.code
}

// Err is the terminal failure cause, nil while running or after success.
func (a *Attempt) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Terminal reports whether the attempt reached Linked or Failed.
func (a *Attempt) Terminal() bool {
	s := a.State()
	return s == StateLinked || s == StateFailed
}

// WaitCode blocks until a pairing code or QR payload is issued, the
// attempt terminates, or ctx is done. When the attempt links before a
// code is seen (e.g. an already-registered device) it returns the empty
// code with no error.
func (a *Attempt) WaitCode(ctx context.Context) (string, error) {
	select {
	case <-a.codeCh:
		return a.Code(), nil
	case <-a.doneCh:
		if err := a.Err(); err != nil {
			return "", err
		}
		return a.Code(), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// WaitDone blocks until the attempt reaches a terminal state and returns
// its failure cause, or nil on Linked.
func (a *Attempt) WaitDone(ctx context.Context) error {
	select {
	case <-a.doneCh:
		return a.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the attempt reaches a terminal state.
func (a *Attempt) Done() <-chan struct{} { return a.doneCh }

// Cancel tears the attempt down: the connection is closed, the working
// directory deleted and the timer stopped. A still-running attempt is
// marked Failed first. Cancelling an already-cancelled or completed
// attempt only releases resources once; repeated calls are no-ops.
func (a *Attempt) Cancel() {
	a.fail(ErrCancelled)
	a.cleanup()
}

func (a *Attempt) setClient(c *whatsmeow.Client) {
	a.mu.Lock()
	a.client = c
	a.mu.Unlock()
}

// Client is the attempt's linking client, nil before dialing starts.
func (a *Attempt) Client() *whatsmeow.Client {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.client
}

func (a *Attempt) setTimer(t *time.Timer) {
	a.mu.Lock()
	a.timer = t
	a.mu.Unlock()
}

func (a *Attempt) markRequesting() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateIdle {
		a.state = StateRequesting
	}
}

// markCodeIssued records a freshly issued pairing code or QR payload.
// The first code closes the wait channel; refreshed QR payloads only
// replace the stored code.
func (a *Attempt) markCodeIssued(code string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateLinked || a.state == StateFailed {
		return
	}
	a.code = code
	if a.state != StateCodeIssued {
		a.state = StateCodeIssued
		close(a.codeCh)
	}
}

// markLinked moves the attempt to its terminal success state. The
// working directory is kept for export until Cancel.
func (a *Attempt) markLinked() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateLinked || a.state == StateFailed {
		return
	}
	a.state = StateLinked
	if a.timer != nil {
		a.timer.Stop()
	}
	close(a.doneCh)
}

// fail moves the attempt to its terminal failure state and releases its
// resources. No-op once terminal.
func (a *Attempt) fail(cause error) {
	a.mu.Lock()
	if a.state == StateLinked || a.state == StateFailed {
		a.mu.Unlock()
		return
	}
	a.state = StateFailed
	a.err = cause
	if a.timer != nil {
		a.timer.Stop()
	}
	close(a.doneCh)
	a.mu.Unlock()

	a.cleanup()
}

// Released reports whether the attempt's resources (connection, working
// directory, timer) have been torn down. A linked attempt whose blob
// was already retrieved is Released but keeps its Linked state.
func (a *Attempt) Released() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.released
}

func (a *Attempt) cleanup() {
	a.cleanupOnce.Do(func() {
		a.mu.Lock()
		client := a.client
		timer := a.timer
		a.mu.Unlock()

		if timer != nil {
			timer.Stop()
		}
		if client != nil {
			client.Disconnect()
		}
		os.RemoveAll(a.workDir)

		a.mu.Lock()
		a.released = true
		a.mu.Unlock()

		if a.onCleanup != nil {
			a.onCleanup()
		}
	})
}
