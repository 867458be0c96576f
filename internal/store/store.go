// Package store is the durable slot for the visitor's active ticket and
// notification preferences. Corrupt stored data is discarded and reported as
// absence; the lifecycle controller never sees a parse failure.
package store

import (
	"context"

	"github.com/aretimiss/queuematic/internal/models"
)

type TicketStore interface {
	// LoadTicket returns the persisted ticket, or false when no ticket is
	// stored or the stored data cannot be parsed.
	LoadTicket(ctx context.Context) (models.Ticket, bool, error)
	SaveTicket(ctx context.Context, ticket models.Ticket) error
	ClearTicket(ctx context.Context) error

	// LoadPreference falls back to the default preference on absence or
	// corruption.
	LoadPreference(ctx context.Context) (models.NotificationPreference, error)
	SavePreference(ctx context.Context, pref models.NotificationPreference) error

	Close() error
}

const (
	TicketKey     = "queuematic:ticket"
	PreferenceKey = "queuematic:preference"
)
