package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	apperr "github.com/docshield/redactor/internal/errors"
)

const jobKeyPrefix = "job:"

// JobRecord is the persisted trail of one redaction run.
type JobRecord struct {
	ID           string    `json:"id"`
	Stage        string    `json:"stage"`
	Status       string    `json:"status"`
	Message      string    `json:"message"`
	Errors       []string  `json:"errors,omitempty"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	TotalCost    float64   `json:"total_cost"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// JobStore persists job records in BadgerDB.
type JobStore struct {
	db *badger.DB
}

func OpenJobStore(path string) (*JobStore, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithNumVersionsToKeep(1).
		WithCompactL0OnClose(true).
		WithValueLogFileSize(16 << 20).
		WithMemTableSize(16 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, apperr.Wrap(fmt.Errorf("open job store: %w", err), apperr.ErrStorageFailure.Code, apperr.ErrStorageFailure.Message)
	}
	return &JobStore{db: db}, nil
}

func (s *JobStore) Close() error {
	return s.db.Close()
}

// Put creates or overwrites a record. UpdatedAt is stamped on every write;
// CreatedAt only when the caller left it zero.
func (s *JobStore) Put(rec *JobRecord) error {
	if rec.ID == "" {
		return apperr.ErrInvalidJobID
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	payload, err := json.Marshal(rec)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrStorageFailure.Code, apperr.ErrStorageFailure.Message)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(jobKeyPrefix+rec.ID), payload)
	})
	if err != nil {
		return apperr.Wrap(err, apperr.ErrStorageFailure.Code, apperr.ErrStorageFailure.Message)
	}
	return nil
}

func (s *JobStore) Get(id string) (*JobRecord, error) {
	var rec JobRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(jobKeyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, apperr.Wrap(fmt.Errorf("job %q", id), apperr.ErrJobNotFound.Code, apperr.ErrJobNotFound.Message)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrStorageFailure.Code, apperr.ErrStorageFailure.Message)
	}
	return &rec, nil
}

func (s *JobStore) List() ([]JobRecord, error) {
	var records []JobRecord
	prefix := []byte(jobKeyPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var rec JobRecord
				if err := json.Unmarshal(v, &rec); err != nil {
					return err
				}
				records = append(records, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrStorageFailure.Code, apperr.ErrStorageFailure.Message)
	}
	return records, nil
}
