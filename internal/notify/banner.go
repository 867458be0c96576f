package notify

import (
	"sync"
	"time"

	"github.com/aretimiss/queuematic/internal/models"
)

// Banner slots mirror the two in-app surfaces: the general alert card and the
// compact strip pinned to the top of the screen.
const (
	SlotAlert   = "alert"
	SlotCompact = "compact"
)

const (
	DefaultAlertTTL   = 10 * time.Second
	DefaultCompactTTL = 5 * time.Second
)

type BannerView map[string]*models.AlertEvent

// BannerBoard holds the currently visible banners and their auto-dismiss
// timers. A new event replaces a visible banner and restarts its timer.
type BannerBoard struct {
	mu       sync.Mutex
	ttl      map[string]time.Duration
	visible  map[string]*models.AlertEvent
	timers   map[string]*time.Timer
	onChange func(BannerView)
	stopped  bool
}

func NewBannerBoard(alertTTL, compactTTL time.Duration, onChange func(BannerView)) *BannerBoard {
	if alertTTL <= 0 {
		alertTTL = DefaultAlertTTL
	}
	if compactTTL <= 0 {
		compactTTL = DefaultCompactTTL
	}
	return &BannerBoard{
		ttl:      map[string]time.Duration{SlotAlert: alertTTL, SlotCompact: compactTTL},
		visible:  make(map[string]*models.AlertEvent),
		timers:   make(map[string]*time.Timer),
		onChange: onChange,
	}
}

func (b *BannerBoard) Show(event models.AlertEvent) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	for slot, ttl := range b.ttl {
		shown := event
		b.visible[slot] = &shown
		if timer, ok := b.timers[slot]; ok {
			timer.Stop()
		}
		slot := slot
		b.timers[slot] = time.AfterFunc(ttl, func() { b.dismiss(slot) })
	}
	view := b.view()
	b.mu.Unlock()

	b.notify(view)
}

func (b *BannerBoard) dismiss(slot string) {
	b.mu.Lock()
	if b.stopped || b.visible[slot] == nil {
		b.mu.Unlock()
		return
	}
	delete(b.visible, slot)
	delete(b.timers, slot)
	view := b.view()
	b.mu.Unlock()

	b.notify(view)
}

// View returns the banners currently on screen.
func (b *BannerBoard) View() BannerView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.view()
}

// Clear dismisses everything immediately, without firing change callbacks for
// each slot. Used when the ticket is cancelled.
func (b *BannerBoard) Clear() {
	b.mu.Lock()
	for slot, timer := range b.timers {
		timer.Stop()
		delete(b.timers, slot)
	}
	b.visible = make(map[string]*models.AlertEvent)
	view := b.view()
	b.mu.Unlock()

	b.notify(view)
}

// Stop cancels all pending dismiss timers and rejects further Show calls.
func (b *BannerBoard) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	for slot, timer := range b.timers {
		timer.Stop()
		delete(b.timers, slot)
	}
	b.visible = make(map[string]*models.AlertEvent)
}

func (b *BannerBoard) view() BannerView {
	view := make(BannerView, len(b.visible))
	for slot, event := range b.visible {
		copied := *event
		view[slot] = &copied
	}
	return view
}

func (b *BannerBoard) notify(view BannerView) {
	if b.onChange != nil {
		b.onChange(view)
	}
}
