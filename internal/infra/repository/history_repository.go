package repository

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/forgeloop/forgeloop/internal/domain/model/session"
	"github.com/forgeloop/forgeloop/internal/infra/persistence/file"
)

// HistoryRepository keeps the append-only session history as a JSON array.
// The whole array is rewritten on append; the file stays small enough that
// this is cheaper than maintaining an index.
type HistoryRepository struct {
	fs   afero.Fs
	path string
}

// NewHistoryRepository creates a repository for the given history path
func NewHistoryRepository(fs afero.Fs, path string) *HistoryRepository {
	return &HistoryRepository{fs: fs, path: path}
}

// Load returns all session records, oldest first
func (r *HistoryRepository) Load() ([]*session.Record, error) {
	data, err := afero.ReadFile(r.fs, r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*session.Record{}, nil
		}
		return nil, fmt.Errorf("read history: %w", err)
	}

	var records []*session.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}
	return records, nil
}

// Append adds a record to the history
func (r *HistoryRepository) Append(record *session.Record) error {
	records, err := r.Load()
	if err != nil {
		return err
	}
	records = append(records, record)
	return r.save(records)
}

// FindByFeature returns records for one feature, oldest first
func (r *HistoryRepository) FindByFeature(featureID string) ([]*session.Record, error) {
	records, err := r.Load()
	if err != nil {
		return nil, err
	}
	var matched []*session.Record
	for _, rec := range records {
		if rec.FeatureID == featureID {
			matched = append(matched, rec)
		}
	}
	return matched, nil
}

// UpdateRecord replaces an existing record by ID. History is otherwise
// append-only; this exists only for correcting an entry after the fact.
func (r *HistoryRepository) UpdateRecord(record *session.Record) error {
	records, err := r.Load()
	if err != nil {
		return err
	}
	for i, rec := range records {
		if rec.ID == record.ID {
			records[i] = record
			return r.save(records)
		}
	}
	return fmt.Errorf("record not found: %s", record.ID)
}

// Totals aggregates token and cost usage across all sessions
func (r *HistoryRepository) Totals() (inputTokens, outputTokens int, costUSD float64, err error) {
	records, err := r.Load()
	if err != nil {
		return 0, 0, 0, err
	}
	for _, rec := range records {
		inputTokens += rec.InputTokens
		outputTokens += rec.OutputTokens
		costUSD += rec.CostUSD
	}
	return inputTokens, outputTokens, costUSD, nil
}

func (r *HistoryRepository) save(records []*session.Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := file.WriteFileAtomic(r.fs, r.path, append(data, '\n')); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}
