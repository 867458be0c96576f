package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretimiss/queuematic/internal/models"
	"github.com/aretimiss/queuematic/internal/notify"
	"github.com/aretimiss/queuematic/internal/poller"
	"github.com/aretimiss/queuematic/internal/remote"
)

type memStore struct {
	mu          sync.Mutex
	ticket      *models.Ticket
	pref        *models.NotificationPreference
	ticketSaves int
}

func (s *memStore) LoadTicket(ctx context.Context) (models.Ticket, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticket == nil {
		return models.Ticket{}, false, nil
	}
	return *s.ticket, true, nil
}

func (s *memStore) SaveTicket(ctx context.Context, ticket models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticket = &ticket
	s.ticketSaves++
	return nil
}

func (s *memStore) ClearTicket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticket = nil
	return nil
}

func (s *memStore) LoadPreference(ctx context.Context) (models.NotificationPreference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pref == nil {
		return models.DefaultPreference(), nil
	}
	return *s.pref, nil
}

func (s *memStore) SavePreference(ctx context.Context, pref models.NotificationPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pref = &pref
	return nil
}

func (s *memStore) Close() error { return nil }

type fakeAuthority struct {
	mu           sync.Mutex
	calls        int
	existing     *models.Ticket
	issued       models.Ticket
	registerErr  error
	status       models.QueueStatusSnapshot
	statusErr    error
	shouldNotify bool
}

func (a *fakeAuthority) bump() {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
}

func (a *fakeAuthority) networkCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *fakeAuthority) Register(ctx context.Context, idCardNumber string) (models.Ticket, error) {
	a.bump()
	if a.registerErr != nil {
		return models.Ticket{}, a.registerErr
	}
	ticket := a.issued
	ticket.IDCardNumber = idCardNumber
	return ticket, nil
}

func (a *fakeAuthority) GetStatus(ctx context.Context, queueNumber int) (models.QueueStatusSnapshot, error) {
	a.bump()
	if a.statusErr != nil {
		return models.QueueStatusSnapshot{}, a.statusErr
	}
	return a.status, nil
}

func (a *fakeAuthority) CheckNotification(ctx context.Context, queueNumber int) (bool, error) {
	a.bump()
	return a.shouldNotify, nil
}

func (a *fakeAuthority) FindByIDCard(ctx context.Context, idCardNumber string) (models.Ticket, bool, error) {
	a.bump()
	if a.existing == nil {
		return models.Ticket{}, false, nil
	}
	return *a.existing, true, nil
}

func (a *fakeAuthority) UpdateStatus(ctx context.Context, queueNumber int, status, nextDepartment string) (bool, error) {
	a.bump()
	return true, nil
}

type fakeScheduler struct {
	mu      sync.Mutex
	started []int
	stops   int
}

func (s *fakeScheduler) Start(queueNumber int, sink poller.Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, queueNumber)
}

func (s *fakeScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
}

func newTestController(st *memStore, authority remote.QueueAuthority) (*Controller, *fakeScheduler, *notify.BannerBoard) {
	scheduler := &fakeScheduler{}
	board := notify.NewBannerBoard(notify.DefaultAlertTTL, notify.DefaultCompactTTL, nil)
	dispatcher := notify.NewDispatcher(
		notify.NewProvider("push", notify.ProviderConfig{Kind: "noop"}),
		notify.NewProvider("sound", notify.ProviderConfig{Kind: "noop"}),
		board,
		nil,
	)
	return New(st, authority, scheduler, dispatcher, nil), scheduler, board
}

func TestRegisterValidatesWithoutNetwork(t *testing.T) {
	authority := &fakeAuthority{}
	c, _, _ := newTestController(&memStore{}, authority)

	_, err := c.Register(context.Background(), "123")
	if !errors.Is(err, remote.ErrInvalidIDCard) {
		t.Fatalf("expected ErrInvalidIDCard, got %v", err)
	}
	if authority.networkCalls() != 0 {
		t.Fatalf("malformed id reached the authority: %d calls", authority.networkCalls())
	}
}

func TestRegisterIssuesPersistsAndTracks(t *testing.T) {
	st := &memStore{}
	authority := &fakeAuthority{issued: models.Ticket{ID: "abc", QueueNumber: 42, Status: models.StatusWaiting}}
	c, scheduler, _ := newTestController(st, authority)

	ticket, err := c.Register(context.Background(), "1234567890123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if ticket.QueueNumber != 42 {
		t.Fatalf("unexpected ticket %+v", ticket)
	}

	if st.ticket == nil || st.ticket.QueueNumber != 42 {
		t.Fatal("ticket not persisted")
	}
	if len(scheduler.started) != 1 || scheduler.started[0] != 42 {
		t.Fatalf("scheduler not started for the ticket: %v", scheduler.started)
	}

	view := c.State()
	if view.Phase != PhaseTicketIssued || view.Mode != ModeTicket {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestRegisterRejectsSecondTicket(t *testing.T) {
	authority := &fakeAuthority{issued: models.Ticket{QueueNumber: 42, Status: models.StatusWaiting}}
	c, _, _ := newTestController(&memStore{}, authority)

	if _, err := c.Register(context.Background(), "1234567890123"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := c.Register(context.Background(), "9876543210987"); !errors.Is(err, ErrTicketActive) {
		t.Fatalf("expected ErrTicketActive, got %v", err)
	}
}

func TestRegisterAdoptsExistingActiveTicket(t *testing.T) {
	authority := &fakeAuthority{
		existing: &models.Ticket{ID: "old", QueueNumber: 17, Status: models.StatusProcessing},
		issued:   models.Ticket{ID: "new", QueueNumber: 99, Status: models.StatusWaiting},
	}
	c, scheduler, _ := newTestController(&memStore{}, authority)

	ticket, err := c.Register(context.Background(), "1234567890123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if ticket.QueueNumber != 17 {
		t.Fatalf("expected adoption of queue 17, got %+v", ticket)
	}
	if scheduler.started[0] != 17 {
		t.Fatalf("tracking wrong queue: %v", scheduler.started)
	}
}

func TestRegisterIgnoresTerminalExistingTicket(t *testing.T) {
	authority := &fakeAuthority{
		existing: &models.Ticket{ID: "old", QueueNumber: 17, Status: models.StatusCompleted},
		issued:   models.Ticket{ID: "new", QueueNumber: 99, Status: models.StatusWaiting},
	}
	c, _, _ := newTestController(&memStore{}, authority)

	ticket, err := c.Register(context.Background(), "1234567890123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if ticket.QueueNumber != 99 {
		t.Fatalf("terminal ticket must not be adopted, got %+v", ticket)
	}
}

func TestStartResumesActiveTicket(t *testing.T) {
	st := &memStore{ticket: &models.Ticket{QueueNumber: 8, Status: models.StatusWaiting}}
	c, scheduler, _ := newTestController(st, &fakeAuthority{})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	view := c.State()
	if view.Phase != PhaseTicketIssued || view.Mode != ModeStatus {
		t.Fatalf("resume landed in wrong state %+v", view)
	}
	if len(scheduler.started) != 1 || scheduler.started[0] != 8 {
		t.Fatalf("resume did not restart tracking: %v", scheduler.started)
	}
}

func TestStartDiscardsTerminalLeftover(t *testing.T) {
	st := &memStore{ticket: &models.Ticket{QueueNumber: 8, Status: models.StatusCancelled}}
	c, scheduler, _ := newTestController(st, &fakeAuthority{})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if c.State().Phase != PhaseForm {
		t.Fatal("terminal leftover must land back on the form")
	}
	if st.ticket != nil {
		t.Fatal("terminal leftover must be cleared from storage")
	}
	if len(scheduler.started) != 0 {
		t.Fatal("no tracking should start for a cleared ticket")
	}
}

func TestCancelRequiresConfirmation(t *testing.T) {
	st := &memStore{}
	authority := &fakeAuthority{issued: models.Ticket{QueueNumber: 42, Status: models.StatusWaiting}}
	c, scheduler, _ := newTestController(st, authority)

	if err := c.Cancel(context.Background(), true); !errors.Is(err, ErrNoActiveTicket) {
		t.Fatalf("expected ErrNoActiveTicket, got %v", err)
	}

	if _, err := c.Register(context.Background(), "1234567890123"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := c.Cancel(context.Background(), false); !errors.Is(err, ErrConfirmRequired) {
		t.Fatalf("expected ErrConfirmRequired, got %v", err)
	}
	if c.State().Phase != PhaseTicketIssued {
		t.Fatal("declined cancel must leave the ticket intact")
	}

	if err := c.Cancel(context.Background(), true); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	view := c.State()
	if view.Phase != PhaseForm || view.Ticket != nil || view.Snapshot != nil {
		t.Fatalf("cancel left residue %+v", view)
	}
	if st.ticket != nil {
		t.Fatal("cancel must clear storage")
	}
	if scheduler.stops == 0 {
		t.Fatal("cancel must stop the scheduler")
	}
}

func TestHandleSnapshotMergesAndPersistsRouting(t *testing.T) {
	st := &memStore{}
	authority := &fakeAuthority{issued: models.Ticket{QueueNumber: 42, Status: models.StatusWaiting}}
	c, _, _ := newTestController(st, authority)

	if _, err := c.Register(context.Background(), "1234567890123"); err != nil {
		t.Fatalf("register: %v", err)
	}
	savesAfterRegister := st.ticketSaves

	snap := models.QueueStatusSnapshot{
		Position:       models.Int(7),
		Department:     models.Text("ER"),
		NextDepartment: models.Text("X-ray"),
	}
	c.HandleSnapshot(context.Background(), snap)

	view := c.State()
	if view.Ticket.Department.Value != "ER" || view.Ticket.NextDepartment.Value != "X-ray" {
		t.Fatalf("routing not merged: %+v", view.Ticket)
	}
	if st.ticketSaves != savesAfterRegister+1 {
		t.Fatalf("routing change must persist once, saves=%d", st.ticketSaves)
	}
	if st.ticket.Department.Value != "ER" {
		t.Fatalf("persisted ticket missing routing %+v", st.ticket)
	}

	// Same snapshot again: nothing changed, nothing persisted.
	c.HandleSnapshot(context.Background(), snap)
	if st.ticketSaves != savesAfterRegister+1 {
		t.Fatalf("unchanged snapshot must not persist, saves=%d", st.ticketSaves)
	}
}

func TestHandleSnapshotClampsNegativePosition(t *testing.T) {
	authority := &fakeAuthority{issued: models.Ticket{QueueNumber: 42, Status: models.StatusWaiting}}
	c, _, _ := newTestController(&memStore{}, authority)

	if _, err := c.Register(context.Background(), "1234567890123"); err != nil {
		t.Fatalf("register: %v", err)
	}
	c.HandleSnapshot(context.Background(), models.QueueStatusSnapshot{Position: models.Int(-2)})

	view := c.State()
	if view.Snapshot == nil || view.Snapshot.Position.Value != 0 {
		t.Fatalf("negative position must clamp to zero: %+v", view.Snapshot)
	}
}

func TestHandleSnapshotDroppedAfterCancel(t *testing.T) {
	st := &memStore{}
	authority := &fakeAuthority{issued: models.Ticket{QueueNumber: 42, Status: models.StatusWaiting}}
	c, _, _ := newTestController(st, authority)

	if _, err := c.Register(context.Background(), "1234567890123"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := c.Cancel(context.Background(), true); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// A tick that raced the cancel delivers late; it must change nothing.
	c.HandleSnapshot(context.Background(), models.QueueStatusSnapshot{Position: models.Int(1)})
	view := c.State()
	if view.Phase != PhaseForm || view.Snapshot != nil {
		t.Fatalf("late snapshot mutated cancelled state %+v", view)
	}
}

func TestRefreshStatusSurfacesErrors(t *testing.T) {
	authority := &fakeAuthority{
		issued:    models.Ticket{QueueNumber: 42, Status: models.StatusWaiting},
		statusErr: errors.New("authority down"),
	}
	c, _, _ := newTestController(&memStore{}, authority)

	if _, err := c.RefreshStatus(context.Background()); !errors.Is(err, ErrNoActiveTicket) {
		t.Fatalf("expected ErrNoActiveTicket, got %v", err)
	}

	if _, err := c.Register(context.Background(), "1234567890123"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := c.RefreshStatus(context.Background()); err == nil {
		t.Fatal("manual refresh must surface authority failure")
	}
}

func TestRefreshStatusClampsNegativePosition(t *testing.T) {
	authority := &fakeAuthority{
		issued: models.Ticket{QueueNumber: 42, Status: models.StatusWaiting},
		status: models.QueueStatusSnapshot{Position: models.Int(-3)},
	}
	c, _, _ := newTestController(&memStore{}, authority)

	if _, err := c.Register(context.Background(), "1234567890123"); err != nil {
		t.Fatalf("register: %v", err)
	}
	snap, err := c.RefreshStatus(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !snap.Position.Known || snap.Position.Value != 0 {
		t.Fatalf("manual refresh must return the clamped position, got %+v", snap.Position)
	}
}

// racingAuthority lets a second registration run to completion while the
// first one is still waiting on the network.
type racingAuthority struct {
	fakeAuthority
	controller *Controller
	injected   bool
}

func (a *racingAuthority) Register(ctx context.Context, idCardNumber string) (models.Ticket, error) {
	if !a.injected {
		a.injected = true
		if _, err := a.controller.Register(ctx, "9876543210987"); err != nil {
			return models.Ticket{}, err
		}
		return models.Ticket{QueueNumber: 200, Status: models.StatusWaiting}, nil
	}
	return models.Ticket{QueueNumber: 100, Status: models.StatusWaiting}, nil
}

func TestConcurrentRegisterNeverOverwritesWinner(t *testing.T) {
	st := &memStore{}
	authority := &racingAuthority{}
	c, scheduler, _ := newTestController(st, authority)
	authority.controller = c

	// The outer registration loses: by the time its network call returns, the
	// inner one has committed queue 100.
	if _, err := c.Register(context.Background(), "1234567890123"); !errors.Is(err, ErrTicketActive) {
		t.Fatalf("expected ErrTicketActive, got %v", err)
	}

	if st.ticket == nil || st.ticket.QueueNumber != 100 {
		t.Fatalf("loser overwrote the committed ticket: %+v", st.ticket)
	}
	if st.ticketSaves != 1 {
		t.Fatalf("expected exactly one save, got %d", st.ticketSaves)
	}
	if len(scheduler.started) != 1 || scheduler.started[0] != 100 {
		t.Fatalf("tracking wrong queue: %v", scheduler.started)
	}
}

func TestPreferenceTogglesPersistAndGate(t *testing.T) {
	st := &memStore{}
	c, _, _ := newTestController(st, &fakeAuthority{})

	if c.NotificationsEnabled() {
		t.Fatal("notifications enabled without permission")
	}

	enabled, err := c.ToggleSound(context.Background())
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if enabled {
		t.Fatal("default sound on, first toggle should turn it off")
	}
	if st.pref == nil || st.pref.SoundEnabled {
		t.Fatalf("toggle not persisted %+v", st.pref)
	}

	if err := c.SetBrowserPermission(context.Background(), true); err != nil {
		t.Fatalf("set permission: %v", err)
	}
	if !c.NotificationsEnabled() {
		t.Fatal("granted permission must enable notification checks")
	}
	if st.pref == nil || !st.pref.BrowserPermissionGranted {
		t.Fatalf("permission not persisted %+v", st.pref)
	}
}

func TestSwitchDisplayMode(t *testing.T) {
	authority := &fakeAuthority{issued: models.Ticket{QueueNumber: 42, Status: models.StatusWaiting}}
	c, _, _ := newTestController(&memStore{}, authority)

	if err := c.SwitchDisplayMode(ModeStatus); !errors.Is(err, ErrNoActiveTicket) {
		t.Fatalf("expected ErrNoActiveTicket, got %v", err)
	}

	if _, err := c.Register(context.Background(), "1234567890123"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := c.SwitchDisplayMode("split"); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
	if err := c.SwitchDisplayMode(ModeStatus); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if c.State().Mode != ModeStatus {
		t.Fatal("mode did not switch")
	}
}
