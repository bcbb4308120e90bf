package surrealdb

import (
	"context"
	"fmt"
	"sort"

	"github.com/bobmcallan/stacker/internal/common"
	"github.com/bobmcallan/stacker/internal/interfaces"
	"github.com/bobmcallan/stacker/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// UserStore implements interfaces.UserDataStore on the user_data table.
type UserStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewUserStore(db *surrealdb.DB, logger *common.Logger) *UserStore {
	return &UserStore{
		db:     db,
		logger: logger,
	}
}

func recordID(userID, subject, key string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID("user_data", userID+"_"+subject+"_"+key)
}

func (s *UserStore) Get(ctx context.Context, userID, subject, key string) (*models.UserRecord, error) {
	record, err := surrealdb.Select[models.UserRecord](ctx, s.db, recordID(userID, subject, key))
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("%s '%s': %w", subject, key, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to select user record: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("%s '%s': %w", subject, key, interfaces.ErrNotFound)
	}
	return record, nil
}

func (s *UserStore) Put(ctx context.Context, record *models.UserRecord) error {
	sql := "UPSERT $rid CONTENT $record"
	vars := map[string]any{"rid": recordID(record.UserID, record.Subject, record.Key), "record": record}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.UserRecord](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		lastErr = err
		s.logger.Debug().Err(err).Int("attempt", attempt).Str("subject", record.Subject).Msg("User record upsert retry")
	}
	return fmt.Errorf("failed to put user record after retries: %w", lastErr)
}

// Create relies on CREATE failing for an existing record id, which makes the
// write a single atomic put-if-absent on the server.
func (s *UserStore) Create(ctx context.Context, record *models.UserRecord) error {
	sql := "CREATE $rid CONTENT $record"
	vars := map[string]any{"rid": recordID(record.UserID, record.Subject, record.Key), "record": record}

	if _, err := surrealdb.Query[[]models.UserRecord](ctx, s.db, sql, vars); err != nil {
		if isAlreadyExistsError(err) {
			return fmt.Errorf("%s '%s': %w", record.Subject, record.Key, interfaces.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create user record: %w", err)
	}
	return nil
}

func (s *UserStore) Delete(ctx context.Context, userID, subject, key string) error {
	_, err := surrealdb.Delete[models.UserRecord](ctx, s.db, recordID(userID, subject, key))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete user record: %w", err)
	}
	return nil
}

func (s *UserStore) List(ctx context.Context, userID, subject string) ([]*models.UserRecord, error) {
	sql := "SELECT * FROM user_data WHERE user_id = $user_id AND subject = $subject ORDER BY key ASC"
	vars := map[string]any{
		"user_id": userID,
		"subject": subject,
	}
	return s.query(ctx, sql, vars)
}

func (s *UserStore) ListBySubject(ctx context.Context, subject string) ([]*models.UserRecord, error) {
	sql := "SELECT * FROM user_data WHERE subject = $subject"
	vars := map[string]any{"subject": subject}

	records, err := s.query(ctx, sql, vars)
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].UserID != records[j].UserID {
			return records[i].UserID < records[j].UserID
		}
		return records[i].Key < records[j].Key
	})
	return records, nil
}

func (s *UserStore) query(ctx context.Context, sql string, vars map[string]any) ([]*models.UserRecord, error) {
	results, err := surrealdb.Query[[]models.UserRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query user records: %w", err)
	}

	if results != nil && len(*results) > 0 {
		var mapped []*models.UserRecord
		for i := range (*results)[0].Result {
			mapped = append(mapped, &(*results)[0].Result[i])
		}
		return mapped, nil
	}
	return nil, nil
}

func (s *UserStore) Close() error {
	return nil
}

var _ interfaces.UserDataStore = (*UserStore)(nil)
