package notify

import (
	"context"
	"log"

	"github.com/aretimiss/queuematic/internal/metrics"
	"github.com/aretimiss/queuematic/internal/models"
)

// SoundRef is the fixed notification sound the sound channel triggers.
const SoundRef = "notification-sound.mp3"

// Dispatcher fans one decided alert out to the push, sound, and banner
// channels. The legs are independent: a failing channel never blocks or
// cancels the others, and no channel failure reaches the visitor.
type Dispatcher struct {
	push    Provider
	sound   Provider
	banners *BannerBoard
	metrics *metrics.Metrics
}

func NewDispatcher(push, sound Provider, banners *BannerBoard, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{push: push, sound: sound, banners: banners, metrics: m}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event models.AlertEvent, pref models.NotificationPreference) {
	if d.metrics != nil {
		d.metrics.AlertsDispatched.WithLabelValues(event.Kind).Inc()
	}

	if pref.BrowserPermissionGranted {
		if err := d.push.Send(ctx, event.Title, event.Message); err != nil {
			d.channelFailed("push", err)
		}
	}

	if pref.SoundEnabled {
		if err := d.sound.Send(ctx, "play", SoundRef); err != nil {
			d.channelFailed("sound", err)
		}
	}

	// The in-app banner shows regardless of permission or sound settings.
	d.banners.Show(event)
}

func (d *Dispatcher) channelFailed(channel string, err error) {
	log.Printf("alert %s channel error: %v", channel, err)
	if d.metrics != nil {
		d.metrics.ChannelFailures.WithLabelValues(channel).Inc()
	}
}

func (d *Dispatcher) Banners() *BannerBoard {
	return d.banners
}

// Stop cancels any pending banner dismiss timers.
func (d *Dispatcher) Stop() {
	d.banners.Stop()
}
