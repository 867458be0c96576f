// Package file persists the ticket and preference slots as JSON documents
// under a state directory. Writes go through a temp file and rename so a
// crash mid-write leaves the previous document intact.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/aretimiss/queuematic/internal/models"
)

type Store struct {
	dir string
}

const (
	ticketFile     = "ticket.json"
	preferenceFile = "preference.json"
)

func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

func (s *Store) LoadTicket(ctx context.Context) (models.Ticket, bool, error) {
	var ticket models.Ticket
	ok, err := s.read(ticketFile, &ticket)
	if err != nil || !ok {
		return models.Ticket{}, false, err
	}
	if ticket.QueueNumber <= 0 {
		// Shape is valid JSON but not a ticket. Treat as corruption.
		log.Printf("store: discarding malformed ticket document")
		return models.Ticket{}, false, nil
	}
	return ticket, true, nil
}

func (s *Store) SaveTicket(ctx context.Context, ticket models.Ticket) error {
	return s.write(ticketFile, ticket)
}

func (s *Store) ClearTicket(ctx context.Context) error {
	err := os.Remove(filepath.Join(s.dir, ticketFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) LoadPreference(ctx context.Context) (models.NotificationPreference, error) {
	var pref models.NotificationPreference
	ok, err := s.read(preferenceFile, &pref)
	if err != nil {
		return models.DefaultPreference(), err
	}
	if !ok {
		return models.DefaultPreference(), nil
	}
	return pref, nil
}

func (s *Store) SavePreference(ctx context.Context, pref models.NotificationPreference) error {
	return s.write(preferenceFile, pref)
}

func (s *Store) Close() error {
	return nil
}

// read returns false on absence and on unparseable content; the corrupt file
// is removed so the next load starts clean.
func (s *Store) read(name string, out interface{}) (bool, error) {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		log.Printf("store: discarding corrupt %s: %v", name, err)
		_ = os.Remove(path)
		return false, nil
	}
	return true, nil
}

func (s *Store) write(name string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
