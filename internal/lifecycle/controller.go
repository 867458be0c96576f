// Package lifecycle owns the visitor's journey: register for a queue number,
// hold the issued ticket across restarts, track it against the authority, and
// leave only through explicit cancellation. All entry points serialize on one
// mutex; nothing in here is reached from more than one logical flow at a time.
package lifecycle

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/aretimiss/queuematic/internal/models"
	"github.com/aretimiss/queuematic/internal/notify"
	"github.com/aretimiss/queuematic/internal/poller"
	"github.com/aretimiss/queuematic/internal/remote"
	"github.com/aretimiss/queuematic/internal/store"
)

type Phase string

const (
	PhaseForm         Phase = "form"
	PhaseTicketIssued Phase = "ticket_issued"
)

type DisplayMode string

const (
	ModeTicket DisplayMode = "ticket"
	ModeStatus DisplayMode = "status"
)

var (
	ErrTicketActive    = errors.New("a ticket is already active")
	ErrNoActiveTicket  = errors.New("no active ticket")
	ErrConfirmRequired = errors.New("cancelling the current queue requires confirmation")
	ErrInvalidMode     = errors.New("unknown display mode")
)

// Scheduler is what the controller needs from the polling scheduler.
type Scheduler interface {
	Start(queueNumber int, sink poller.Sink)
	Stop()
}

// Broadcaster pushes state changes to the presentation layer.
type Broadcaster func(eventType string, payload interface{})

type Controller struct {
	store      store.TicketStore
	client     remote.QueueAuthority
	scheduler  Scheduler
	dispatcher *notify.Dispatcher
	broadcast  Broadcaster

	mu       sync.Mutex
	phase    Phase
	mode     DisplayMode
	ticket   *models.Ticket
	snapshot *models.QueueStatusSnapshot
	pref     models.NotificationPreference
	dedup    notify.DedupState
}

// View is the immutable state handed to the presentation layer.
type View struct {
	Phase      Phase                         `json:"phase"`
	Mode       DisplayMode                   `json:"display_mode"`
	Ticket     *models.Ticket                `json:"ticket,omitempty"`
	Snapshot   *models.QueueStatusSnapshot   `json:"snapshot,omitempty"`
	Preference models.NotificationPreference `json:"preference"`
	Banners    notify.BannerView             `json:"banners"`
}

func New(st store.TicketStore, client remote.QueueAuthority, scheduler Scheduler, dispatcher *notify.Dispatcher, broadcast Broadcaster) *Controller {
	if broadcast == nil {
		broadcast = func(string, interface{}) {}
	}
	return &Controller{
		store:      st,
		client:     client,
		scheduler:  scheduler,
		dispatcher: dispatcher,
		broadcast:  broadcast,
		phase:      PhaseForm,
		mode:       ModeTicket,
		pref:       models.DefaultPreference(),
	}
}

// Start loads persisted state and resumes tracking a still-active ticket
// without re-registering. Corrupt storage reads as absence.
func (c *Controller) Start(ctx context.Context) error {
	pref, err := c.store.LoadPreference(ctx)
	if err != nil {
		log.Printf("load preference error: %v", err)
		pref = models.DefaultPreference()
	}

	ticket, ok, err := c.store.LoadTicket(ctx)
	if err != nil {
		return err
	}
	if ok && models.IsTerminalStatus(ticket.Status) {
		// Leftover from a finished visit; clear it instead of resuming.
		if err := c.store.ClearTicket(ctx); err != nil {
			log.Printf("clear stale ticket error: %v", err)
		}
		ok = false
	}

	c.mu.Lock()
	c.pref = pref
	if ok {
		c.ticket = &ticket
		c.phase = PhaseTicketIssued
		c.mode = ModeStatus
	}
	c.mu.Unlock()

	if ok {
		log.Printf("resuming queue %d from storage", ticket.QueueNumber)
		c.scheduler.Start(ticket.QueueNumber, c)
	}
	c.broadcastState()
	return nil
}

// Register issues a ticket for the given ID card. When the authority already
// holds an active registration for that card, the existing ticket is adopted
// instead of creating a duplicate.
func (c *Controller) Register(ctx context.Context, idCardNumber string) (models.Ticket, error) {
	if !remote.ValidIDCard(idCardNumber) {
		return models.Ticket{}, remote.ErrInvalidIDCard
	}

	c.mu.Lock()
	if c.phase == PhaseTicketIssued {
		c.mu.Unlock()
		return models.Ticket{}, ErrTicketActive
	}
	c.mu.Unlock()

	ticket, found, err := c.client.FindByIDCard(ctx, idCardNumber)
	if err != nil {
		// Lookup failure is not fatal: fall through and register fresh.
		log.Printf("find by id card error: %v", err)
		found = false
	}
	if found && models.IsActiveStatus(ticket.Status) {
		log.Printf("adopting existing queue %d", ticket.QueueNumber)
	} else {
		ticket, err = c.client.Register(ctx, idCardNumber)
		if err != nil {
			return models.Ticket{}, err
		}
	}

	c.mu.Lock()
	if c.phase == PhaseTicketIssued {
		// Lost the race to a concurrent registration; the committed ticket
		// stays, and nothing of this attempt reaches storage.
		c.mu.Unlock()
		return models.Ticket{}, ErrTicketActive
	}
	c.ticket = &ticket
	c.snapshot = nil
	c.dedup = notify.DedupState{}
	c.phase = PhaseTicketIssued
	c.mode = ModeTicket
	c.mu.Unlock()

	if err := c.store.SaveTicket(ctx, ticket); err != nil {
		log.Printf("save ticket error: %v", err)
	}
	c.scheduler.Start(ticket.QueueNumber, c)
	c.broadcastState()
	return ticket, nil
}

// Cancel leaves the ticket_issued phase. It is destructive, so the caller
// must pass confirmed=true after warning the visitor.
func (c *Controller) Cancel(ctx context.Context, confirmed bool) error {
	c.mu.Lock()
	if c.phase != PhaseTicketIssued {
		c.mu.Unlock()
		return ErrNoActiveTicket
	}
	if !confirmed {
		c.mu.Unlock()
		return ErrConfirmRequired
	}
	c.phase = PhaseForm
	c.mode = ModeTicket
	c.ticket = nil
	c.snapshot = nil
	c.dedup = notify.DedupState{}
	c.mu.Unlock()

	// Phase already left: a racing tick sees PhaseForm and drops its result.
	c.scheduler.Stop()
	c.dispatcher.Banners().Clear()
	if err := c.store.ClearTicket(ctx); err != nil {
		return err
	}
	c.broadcastState()
	return nil
}

// RefreshStatus is the manual refresh path. Unlike background ticks, its
// failure surfaces to the caller as a retryable error.
func (c *Controller) RefreshStatus(ctx context.Context) (models.QueueStatusSnapshot, error) {
	c.mu.Lock()
	if c.phase != PhaseTicketIssued || c.ticket == nil {
		c.mu.Unlock()
		return models.QueueStatusSnapshot{}, ErrNoActiveTicket
	}
	queueNumber := c.ticket.QueueNumber
	c.mu.Unlock()

	snap, err := c.client.GetStatus(ctx, queueNumber)
	if err != nil {
		return models.QueueStatusSnapshot{}, err
	}
	snap.Clamp()
	c.HandleSnapshot(ctx, snap)
	return snap, nil
}

// HandleSnapshot is the poller sink: clamp, merge authority-owned fields into
// the ticket, persist when routing changed, then decide and dispatch alerts.
func (c *Controller) HandleSnapshot(ctx context.Context, snap models.QueueStatusSnapshot) {
	snap.Clamp()

	c.mu.Lock()
	if c.phase != PhaseTicketIssued || c.ticket == nil {
		c.mu.Unlock()
		return
	}
	c.snapshot = &snap

	changed := false
	if snap.Department.Present() && c.ticket.Department.Value != snap.Department.Value {
		c.ticket.Department = models.Text(snap.Department.Value)
		changed = true
	}
	if snap.NextDepartment.Present() && c.ticket.NextDepartment.Value != snap.NextDepartment.Value {
		c.ticket.NextDepartment = models.Text(snap.NextDepartment.Value)
		changed = true
	}
	ticket := *c.ticket

	var event *models.AlertEvent
	c.dedup, event = notify.Decide(c.dedup, snap)
	pref := c.pref
	c.mu.Unlock()

	if changed {
		if err := c.store.SaveTicket(ctx, ticket); err != nil {
			log.Printf("persist ticket update error: %v", err)
		}
	}
	if event != nil {
		c.dispatcher.Dispatch(ctx, *event, pref)
		c.broadcast("alert", *event)
	}
	c.broadcastState()
}

// NotificationsEnabled gates the notification timer ticks.
func (c *Controller) NotificationsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pref.BrowserPermissionGranted
}

func (c *Controller) SwitchDisplayMode(mode DisplayMode) error {
	if mode != ModeTicket && mode != ModeStatus {
		return ErrInvalidMode
	}
	c.mu.Lock()
	if c.phase != PhaseTicketIssued {
		c.mu.Unlock()
		return ErrNoActiveTicket
	}
	c.mode = mode
	c.mu.Unlock()

	c.broadcastState()
	return nil
}

func (c *Controller) ToggleSound(ctx context.Context) (bool, error) {
	c.mu.Lock()
	c.pref.SoundEnabled = !c.pref.SoundEnabled
	pref := c.pref
	c.mu.Unlock()

	if err := c.store.SavePreference(ctx, pref); err != nil {
		return pref.SoundEnabled, err
	}
	c.broadcastState()
	return pref.SoundEnabled, nil
}

// SetBrowserPermission records the platform's notification permission state.
// The actual permission prompt happens in the presentation layer; the core
// only mirrors the outcome and never trusts a stale stored value over it.
func (c *Controller) SetBrowserPermission(ctx context.Context, granted bool) error {
	c.mu.Lock()
	c.pref.BrowserPermissionGranted = granted
	pref := c.pref
	c.mu.Unlock()

	if err := c.store.SavePreference(ctx, pref); err != nil {
		return err
	}
	c.broadcastState()
	return nil
}

func (c *Controller) State() View {
	c.mu.Lock()
	view := View{
		Phase:      c.phase,
		Mode:       c.mode,
		Preference: c.pref,
	}
	if c.ticket != nil {
		ticket := *c.ticket
		view.Ticket = &ticket
	}
	if c.snapshot != nil {
		snap := *c.snapshot
		view.Snapshot = &snap
	}
	c.mu.Unlock()

	view.Banners = c.dispatcher.Banners().View()
	return view
}

// Stop halts polling and banner timers for process shutdown. The persisted
// ticket stays put so the next start resumes it.
func (c *Controller) Stop() {
	c.scheduler.Stop()
	c.dispatcher.Stop()
}

func (c *Controller) broadcastState() {
	c.broadcast("state", c.State())
}
