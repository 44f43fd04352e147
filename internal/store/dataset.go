package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/PedroFenixia/aemet-temperaturas/internal/models"
	"github.com/PedroFenixia/aemet-temperaturas/pkg/observe"
)

// Store owns the accumulated dataset file. Writes replace the whole
// file; there is no atomic rename, which is accepted at this scale.
type Store struct {
	path string
	now  func() time.Time
	l    *observe.Logger
}

func New(path string, l *observe.Logger) *Store {
	return &Store{path: path, now: time.Now, l: l}
}

// MergeAndSave folds today's records into the persisted dataset:
// existing records for today are replaced (re-runs are idempotent),
// records older than the retention window are pruned, and the metadata
// is recomputed from the merged set.
func (s *Store) MergeAndSave(byProvince map[string][]models.Record, retentionDays int) (*models.Dataset, error) {
	now := s.now()
	today := now.Format("2006-01-02")
	cutoff := now.AddDate(0, 0, -retentionDays).Format("2006-01-02")

	var kept []models.Record
	for _, r := range s.loadRecords() {
		if r.Date == today || r.Date < cutoff {
			continue
		}
		kept = append(kept, r)
	}

	provinces := make([]string, 0, len(byProvince))
	for name := range byProvince {
		provinces = append(provinces, name)
	}
	sort.Strings(provinces)
	for _, name := range provinces {
		kept = append(kept, byProvince[name]...)
	}

	dates := make(map[string]struct{})
	codes := make(map[string]struct{})
	for _, r := range kept {
		dates[r.Date] = struct{}{}
		codes[r.Code] = struct{}{}
	}
	availableDates := make([]string, 0, len(dates))
	for d := range dates {
		availableDates = append(availableDates, d)
	}
	sort.Strings(availableDates)

	dataset := &models.Dataset{
		UpdatedAt:           now.Format("2006-01-02 15:04"),
		AvailableDates:      availableDates,
		TotalMunicipalities: len(codes),
		Records:             kept,
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating dataset dir: %w", err)
		}
	}
	data, err := json.Marshal(dataset)
	if err != nil {
		return nil, fmt.Errorf("encoding dataset: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing dataset %s: %w", s.path, err)
	}

	s.l.Info("dataset exported", map[string]any{
		"path":          s.path,
		"records":       len(dataset.Records),
		"today_records": len(dataset.FilterByDate(today)),
		"days":          len(dataset.AvailableDates),
	})

	return dataset, nil
}

// loadRecords reads the previous dataset; a missing or corrupt file
// starts the accumulation from scratch.
func (s *Store) loadRecords() []models.Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var dataset models.Dataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		s.l.Warning("existing dataset is corrupt, starting fresh", map[string]any{
			"path": s.path,
			"err":  err.Error(),
		})
		return nil
	}
	return dataset.Records
}
