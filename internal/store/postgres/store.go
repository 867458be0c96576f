// Package postgres keeps the ticket and preference slots in a single-row
// key/value table, upserted on save. The schema is created on open.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/aretimiss/queuematic/internal/models"
	"github.com/aretimiss/queuematic/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tracker_slots (
			slot_key   TEXT PRIMARY KEY,
			document   JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) LoadTicket(ctx context.Context) (models.Ticket, bool, error) {
	data, ok, err := s.read(ctx, store.TicketKey)
	if err != nil || !ok {
		return models.Ticket{}, false, err
	}

	var ticket models.Ticket
	if err := json.Unmarshal(data, &ticket); err != nil || ticket.QueueNumber <= 0 {
		log.Printf("store: discarding corrupt ticket slot: %v", err)
		_ = s.delete(ctx, store.TicketKey)
		return models.Ticket{}, false, nil
	}
	return ticket, true, nil
}

func (s *Store) SaveTicket(ctx context.Context, ticket models.Ticket) error {
	return s.write(ctx, store.TicketKey, ticket)
}

func (s *Store) ClearTicket(ctx context.Context) error {
	return s.delete(ctx, store.TicketKey)
}

func (s *Store) LoadPreference(ctx context.Context) (models.NotificationPreference, error) {
	data, ok, err := s.read(ctx, store.PreferenceKey)
	if err != nil || !ok {
		return models.DefaultPreference(), err
	}

	var pref models.NotificationPreference
	if err := json.Unmarshal(data, &pref); err != nil {
		log.Printf("store: discarding corrupt preference slot: %v", err)
		return models.DefaultPreference(), nil
	}
	return pref, nil
}

func (s *Store) SavePreference(ctx context.Context, pref models.NotificationPreference) error {
	return s.write(ctx, store.PreferenceKey, pref)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) read(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	row := s.pool.QueryRow(ctx, `SELECT document FROM tracker_slots WHERE slot_key = $1`, key)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (s *Store) write(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO tracker_slots (slot_key, document, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (slot_key) DO UPDATE SET document = EXCLUDED.document, updated_at = NOW()
	`, key, data)
	return err
}

func (s *Store) delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tracker_slots WHERE slot_key = $1`, key)
	return err
}
