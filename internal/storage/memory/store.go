// Package memory provides an in-process UserDataStore for tests, local runs
// and the CLI.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bobmcallan/stacker/internal/interfaces"
	"github.com/bobmcallan/stacker/internal/models"
)

// Store keeps user records in a map guarded by a mutex.
type Store struct {
	mu      sync.RWMutex
	records map[string]models.UserRecord
}

func NewStore() *Store {
	return &Store{records: make(map[string]models.UserRecord)}
}

func recordKey(userID, subject, key string) string {
	return userID + "_" + subject + "_" + key
}

func (s *Store) Get(_ context.Context, userID, subject, key string) (*models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[recordKey(userID, subject, key)]
	if !ok {
		return nil, fmt.Errorf("%s '%s': %w", subject, key, interfaces.ErrNotFound)
	}
	return &rec, nil
}

func (s *Store) Put(_ context.Context, record *models.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[recordKey(record.UserID, record.Subject, record.Key)] = *record
	return nil
}

func (s *Store) Create(_ context.Context, record *models.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := recordKey(record.UserID, record.Subject, record.Key)
	if _, exists := s.records[k]; exists {
		return fmt.Errorf("%s '%s': %w", record.Subject, record.Key, interfaces.ErrAlreadyExists)
	}
	s.records[k] = *record
	return nil
}

func (s *Store) Delete(_ context.Context, userID, subject, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, recordKey(userID, subject, key))
	return nil
}

func (s *Store) List(_ context.Context, userID, subject string) ([]*models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.UserRecord
	for _, rec := range s.records {
		if rec.UserID == userID && rec.Subject == subject {
			r := rec
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) ListBySubject(_ context.Context, subject string) ([]*models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.UserRecord
	for _, rec := range s.records {
		if rec.Subject == subject {
			r := rec
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) Close() error {
	return nil
}

var _ interfaces.UserDataStore = (*Store)(nil)
