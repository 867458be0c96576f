// Package redis keeps the ticket and preference slots in Redis, for kiosk
// deployments where several tracker instances share one visitor slot.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/aretimiss/queuematic/internal/models"
	"github.com/aretimiss/queuematic/internal/store"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	client *redis.Client
}

func NewStore(url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) LoadTicket(ctx context.Context) (models.Ticket, bool, error) {
	data, err := s.client.Get(ctx, store.TicketKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Ticket{}, false, nil
		}
		return models.Ticket{}, false, err
	}

	var ticket models.Ticket
	if err := json.Unmarshal(data, &ticket); err != nil || ticket.QueueNumber <= 0 {
		log.Printf("store: discarding corrupt ticket slot: %v", err)
		_ = s.client.Del(ctx, store.TicketKey).Err()
		return models.Ticket{}, false, nil
	}
	return ticket, true, nil
}

func (s *Store) SaveTicket(ctx context.Context, ticket models.Ticket) error {
	data, err := json.Marshal(ticket)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, store.TicketKey, data, 0).Err()
}

func (s *Store) ClearTicket(ctx context.Context) error {
	return s.client.Del(ctx, store.TicketKey).Err()
}

func (s *Store) LoadPreference(ctx context.Context) (models.NotificationPreference, error) {
	data, err := s.client.Get(ctx, store.PreferenceKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.DefaultPreference(), nil
		}
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
	data, err := json.Marshal(pref)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, store.PreferenceKey, data, 0).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
