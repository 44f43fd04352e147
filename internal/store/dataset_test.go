package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PedroFenixia/aemet-temperaturas/internal/models"
	"github.com/PedroFenixia/aemet-temperaturas/pkg/observe"
)

var testNow = time.Date(2026, 8, 30, 7, 15, 0, 0, time.UTC)

func testStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "data.json"), observe.NewZapLogger("test-app"))
	s.now = func() time.Time { return testNow }
	return s
}

func intPtr(n int) *int { return &n }

func recordsFor(code, date string, tMin, tMax *int) map[string][]models.Record {
	return map[string][]models.Record{
		"Madrid": {models.NewRecord(models.Municipality{
			Code:     code,
			Name:     "Municipio " + code,
			Province: "Madrid",
		}, date, tMin, tMax)},
	}
}

func daysAgo(n int) string {
	return testNow.AddDate(0, 0, -n).Format("2006-01-02")
}

func TestMergeAndSave_Idempotence(t *testing.T) {
	s := testStore(t)
	today := daysAgo(0)

	first, err := s.MergeAndSave(recordsFor("28079", today, intPtr(10), intPtr(20)), 7)
	require.NoError(t, err)
	require.Len(t, first.Records, 1)

	// A re-run for the same day replaces, never duplicates.
	second, err := s.MergeAndSave(recordsFor("28079", today, intPtr(12), intPtr(22)), 7)
	require.NoError(t, err)
	require.Len(t, second.Records, 1)
	assert.Equal(t, 12, *second.Records[0].Min)
	assert.Equal(t, 22, *second.Records[0].Max)
	assert.Equal(t, []string{today}, second.AvailableDates)
}

func TestMergeAndSave_Retention(t *testing.T) {
	s := testStore(t)

	seed := models.Dataset{Records: []models.Record{
		{Code: "28079", Date: daysAgo(10)},
		{Code: "28079", Date: daysAgo(8)},
		{Code: "28079", Date: daysAgo(6)},
		{Code: "28079", Date: daysAgo(3)},
		{Code: "28079", Date: daysAgo(1)},
	}}
	data, err := json.Marshal(seed)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.path, data, 0o644))

	merged, err := s.MergeAndSave(recordsFor("28079", daysAgo(0), intPtr(10), intPtr(20)), 7)
	require.NoError(t, err)

	assert.Equal(t, []string{daysAgo(6), daysAgo(3), daysAgo(1), daysAgo(0)}, merged.AvailableDates)
	assert.Len(t, merged.Records, 4)
	for _, r := range merged.Records {
		assert.GreaterOrEqual(t, r.Date, daysAgo(7))
	}
}

func TestMergeAndSave_AccumulatesAcrossDays(t *testing.T) {
	s := testStore(t)

	seed := models.Dataset{Records: []models.Record{
		{Code: "28079", Date: daysAgo(1), Min: intPtr(8), Max: intPtr(18)},
		{Code: "41091", Date: daysAgo(1), Min: intPtr(14), Max: intPtr(28)},
	}}
	data, err := json.Marshal(seed)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.path, data, 0o644))

	merged, err := s.MergeAndSave(recordsFor("28079", daysAgo(0), intPtr(10), intPtr(20)), 7)
	require.NoError(t, err)

	assert.Len(t, merged.Records, 3)
	assert.Equal(t, []string{daysAgo(1), daysAgo(0)}, merged.AvailableDates)
	assert.Equal(t, 2, merged.TotalMunicipalities)
	assert.Equal(t, "2026-08-30 07:15", merged.UpdatedAt)
}

func TestMergeAndSave_CorruptFileStartsFresh(t *testing.T) {
	s := testStore(t)
	require.NoError(t, os.WriteFile(s.path, []byte("{not json"), 0o644))

	merged, err := s.MergeAndSave(recordsFor("28079", daysAgo(0), intPtr(10), intPtr(20)), 7)
	require.NoError(t, err)
	assert.Len(t, merged.Records, 1)
}

func TestMergeAndSave_WritesFile(t *testing.T) {
	s := testStore(t)

	_, err := s.MergeAndSave(recordsFor("28079", daysAgo(0), intPtr(10), intPtr(20)), 7)
	require.NoError(t, err)

	data, err := os.ReadFile(s.path)
	require.NoError(t, err)

	var dataset models.Dataset
	require.NoError(t, json.Unmarshal(data, &dataset))
	require.Len(t, dataset.Records, 1)
	rec := dataset.Records[0]
	assert.Equal(t, "28079", rec.Code)
	require.NotNil(t, rec.Average)
	assert.Equal(t, 15.0, *rec.Average)
	assert.Equal(t, 1, dataset.TotalMunicipalities)
}

func TestMergeAndSave_AbsentTemperaturesKept(t *testing.T) {
	s := testStore(t)

	merged, err := s.MergeAndSave(recordsFor("28079", daysAgo(0), nil, intPtr(20)), 7)
	require.NoError(t, err)

	require.Len(t, merged.Records, 1)
	assert.Nil(t, merged.Records[0].Min)
	assert.NotNil(t, merged.Records[0].Max)
	assert.Nil(t, merged.Records[0].Average, "average requires both values")
}
