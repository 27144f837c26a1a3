// Package pairing drives one-shot device linking attempts: request a
// pairing code or QR payload, wait for the connection to open, then hand
// the finished credentials to the session store and delivery layers.
package pairing

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"WhatsappLinker/internal/sessionstore"
)

const clientDisplayName = "Chrome (Linux)"

// Orchestrator starts and tracks linking attempts, at most one
// non-terminal attempt per requester.
type Orchestrator struct {
	baseDir string
	timeout time.Duration
	store   sessionstore.Store
	waLog   waLog.Logger

	mu      sync.Mutex
	byOwner map[string]*Attempt
	byID    map[string]*Attempt

	// dial connects an attempt to the linking library; replaced in tests.
	dial func(a *Attempt) error
}

// New returns an orchestrator storing per-attempt state under baseDir.
// Attempts that do not reach Linked within timeout are failed and torn
// down.
func New(baseDir string, timeout time.Duration, st sessionstore.Store, clientLog waLog.Logger) *Orchestrator {
	if clientLog == nil {
		clientLog = waLog.Noop
	}
	o := &Orchestrator{
		baseDir: baseDir,
		timeout: timeout,
		store:   st,
		waLog:   clientLog,
		byOwner: make(map[string]*Attempt),
		byID:    make(map[string]*Attempt),
	}
	o.dial = o.dialWhatsApp
	return o
}

// Begin starts a pairing-code attempt for the owner's phone number. The
// number is validated synchronously; an owner with a running attempt is
// rejected rather than raced.
func (o *Orchestrator) Begin(owner, phone string) (*Attempt, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	return o.start(owner, normalized)
}

// BeginQR starts a QR-based attempt for the owner.
func (o *Orchestrator) BeginQR(owner string) (*Attempt, error) {
	return o.start(owner, "")
}

func (o *Orchestrator) start(owner, phone string) (*Attempt, error) {
	o.mu.Lock()
	if existing := o.byOwner[owner]; existing != nil {
		if !existing.Terminal() {
			o.mu.Unlock()
			return nil, ErrAttemptInFlight
		}
		delete(o.byID, existing.ID)
	}
	id := uuid.NewString()
	a := newAttempt(id, owner, phone, filepath.Join(o.baseDir, id))
	if err := os.MkdirAll(a.workDir, 0o700); err != nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("create attempt workdir: %w", err)
	}
	a.onCleanup = func() { o.evict(a) }
	o.byOwner[owner] = a
	o.byID[id] = a
	o.mu.Unlock()

	a.markRequesting()
	a.setTimer(time.AfterFunc(o.timeout, func() {
		a.fail(ErrLinkingTimeout)
	}))

	go func() {
		if err := o.dial(a); err != nil {
			a.fail(fmt.Errorf("%w: %v", ErrLinkingClosed, err))
		}
	}()

	return a, nil
}

// Attempt returns the owner's most recent attempt, if any.
func (o *Orchestrator) Attempt(owner string) (*Attempt, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	a, ok := o.byOwner[owner]
	return a, ok
}

// AttemptByID looks an attempt up by its id.
func (o *Orchestrator) AttemptByID(id string) (*Attempt, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	a, ok := o.byID[id]
	return a, ok
}

// evict drops the orchestrator's references once the attempt's resources
// are released. Failed attempts disappear immediately; linked attempts
// stay addressable until their result is retrieved or they are cancelled.
func (o *Orchestrator) evict(a *Attempt) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.byID[a.ID] == a {
		delete(o.byID, a.ID)
	}
	if o.byOwner[a.Owner] == a {
		delete(o.byOwner, a.Owner)
	}
}

// dialWhatsApp runs the real linking flow: a fresh device container in
// the attempt's working directory, then either a phone pair-code request
// or the QR channel.
func (o *Orchestrator) dialWhatsApp(a *Attempt) error {
	dsn := "file:" + filepath.Join(a.WorkDir(), "session.db") + "?_foreign_keys=on"
	container, err := sqlstore.New("sqlite3", dsn, o.waLog)
	if err != nil {
		return fmt.Errorf("open attempt container: %w", err)
	}
	device := container.NewDevice()
	store.DeviceProps.Os = proto.String(clientDisplayName)

	client := whatsmeow.NewClient(device, o.waLog)
	a.setClient(client)
	client.AddEventHandler(func(evt interface{}) { o.handleEvent(a, evt) })

	if a.Phone == "" {
		return o.dialQR(a, client)
	}
	return o.dialPairCode(a, client)
}

func (o *Orchestrator) dialPairCode(a *Attempt, client *whatsmeow.Client) error {
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	code, err := client.PairPhone(a.Phone, true, whatsmeow.PairClientChrome, clientDisplayName)
	if err != nil {
		return fmt.Errorf("request pairing code: %w", err)
	}
	a.markCodeIssued(code)
	return nil
}

func (o *Orchestrator) dialQR(a *Attempt, client *whatsmeow.Client) error {
	qrChan, err := client.GetQRChannel(context.Background())
	if err != nil {
		return fmt.Errorf("open QR channel: %w", err)
	}
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	go func() {
		for item := range qrChan {
			switch item.Event {
			case "code":
				a.markCodeIssued(item.Code)
			case "success":
				a.markLinked()
			case "timeout":
				a.fail(ErrLinkingTimeout)
			default:
				a.fail(fmt.Errorf("%w: qr channel reported %s", ErrLinkingClosed, item.Event))
			}
		}
	}()
	return nil
}

// handleEvent maps library lifecycle events onto attempt transitions.
// Connected fires only after a completed login, so it is the Linked
// signal; a plain Disconnected is NOT fatal because the stream drops and
// reconnects between pair success and login.
func (o *Orchestrator) handleEvent(a *Attempt, evt interface{}) {
	switch e := evt.(type) {
	case *events.Connected:
		a.markLinked()
	case *events.PairSuccess:
		log.Printf("pairing: attempt %s paired as %s", a.ID, e.ID)
	case *events.PairError:
		a.fail(fmt.Errorf("%w: %v", ErrLinkingClosed, e.Error))
	case *events.LoggedOut:
		a.fail(ErrLinkingClosed)
	case *events.StreamReplaced:
		a.fail(ErrLinkingClosed)
	case *events.ClientOutdated:
		a.fail(fmt.Errorf("%w: client outdated", ErrLinkingClosed))
	case *events.TemporaryBan:
		a.fail(fmt.Errorf("%w: %s", ErrLinkingClosed, e.String()))
	case *events.ConnectFailure:
		a.fail(fmt.Errorf("%w: connect failure %d", ErrLinkingClosed, int(e.Reason)))
	}
}

// Export snapshots the linked device's credentials and key material into
// the session store. A store failure is recoverable: the session remains
// usable from the working directory, only its durability is deferred.
func (o *Orchestrator) Export(ctx context.Context, a *Attempt) error {
	client := a.Client()
	if a.State() != StateLinked || client == nil || client.Store == nil {
		return fmt.Errorf("pairing: attempt %s has no linked device to export", a.ID)
	}
	device := client.Store

	id := a.ID
	if device.ID != nil {
		id = device.ID.ToNonAD().String()
	}

	creds := snapshotCredentials(device)
	keys := snapshotKeys(device)

	existing, err := o.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("pairing: load session %s: %w", id, err)
	}
	if existing == nil {
		if err := o.store.Put(ctx, id, creds, keys); err != nil {
			return fmt.Errorf("pairing: save session %s: %w", id, err)
		}
		return nil
	}

	// Re-pairing an already-known account: replace the credentials but
	// merge key categories so earlier key material survives.
	if err := o.store.Put(ctx, id, creds, existing.Keys); err != nil {
		return fmt.Errorf("pairing: save session %s: %w", id, err)
	}
	for category, values := range keys {
		if err := o.store.MergeKeys(ctx, id, category, values); err != nil {
			return fmt.Errorf("pairing: merge %s keys for session %s: %w", category, id, err)
		}
	}
	return nil
}
