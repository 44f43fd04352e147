package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PedroFenixia/aemet-temperaturas/internal/models"
	"github.com/PedroFenixia/aemet-temperaturas/pkg/observe"
)

// Directory resolves the full municipality master list grouped by
// province, backed by a file cache that is only valid for the calendar
// day it was written. A stale cache is still used when a fresh download
// fails, as a degraded fallback.
type Directory struct {
	fetcher   Fetcher
	cachePath string
	catalog   *models.Catalog
	now       func() time.Time
	l         *observe.Logger
}

func NewDirectory(fetcher Fetcher, cachePath string, catalog *models.Catalog, l *observe.Logger) *Directory {
	return &Directory{
		fetcher:   fetcher,
		cachePath: cachePath,
		catalog:   catalog,
		now:       time.Now,
		l:         l,
	}
}

// masterEntry is one element of the AEMET master list. Numeric fields
// arrive as strings and are sometimes empty.
type masterEntry struct {
	ID         string `json:"id"`
	Name       string `json:"nombre"`
	Population string `json:"num_hab"`
	Altitude   string `json:"altitud"`
}

func (d *Directory) List(ctx context.Context) (map[string][]models.Municipality, error) {
	today := d.now().Format("2006-01-02")

	if cache, err := d.readCache(); err == nil && cache.Date == today {
		d.l.Info("using municipality cache", map[string]any{"total": cache.Total})
		return cache.Provinces, nil
	}

	d.l.Info("downloading municipality master list")
	provinces, err := d.download(ctx)
	if err != nil {
		d.l.Error(fmt.Errorf("could not download municipality list: %w", err))
		if cache, cerr := d.readCache(); cerr == nil {
			d.l.Warning("falling back to stale municipality cache", map[string]any{
				"cache_date": cache.Date,
				"total":      cache.Total,
			})
			return cache.Provinces, nil
		}
		return nil, err
	}

	total := 0
	for _, muns := range provinces {
		total += len(muns)
	}
	d.writeCache(models.MunicipalityCache{Date: today, Total: total, Provinces: provinces})
	d.l.Info("municipality list downloaded", map[string]any{
		"total":     total,
		"provinces": len(provinces),
	})

	return provinces, nil
}

func (d *Directory) download(ctx context.Context) (map[string][]models.Municipality, error) {
	payload, err := d.fetcher.Fetch(ctx, masterMunicipalitiesEndpoint)
	if err != nil {
		return nil, err
	}

	var entries []masterEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse municipality list: %w", err)
	}

	provinces := make(map[string][]models.Municipality)
	for _, e := range entries {
		// Ids come as "id28079"; anything else is not a municipality.
		if !strings.HasPrefix(e.ID, "id") || len(e.ID) < 4 {
			continue
		}
		code := e.ID[2:]
		province := d.catalog.ProvinceName(code[:2])

		provinces[province] = append(provinces[province], models.Municipality{
			Code:       code,
			Name:       e.Name,
			Province:   province,
			Population: atoiLenient(e.Population),
			Altitude:   atoiLenient(e.Altitude),
			IsCapital:  d.catalog.IsCapital(code),
		})
	}

	// Highest population first; ties keep master-list order.
	for _, muns := range provinces {
		sort.SliceStable(muns, func(i, j int) bool {
			return muns[i].Population > muns[j].Population
		})
	}

	return provinces, nil
}

func (d *Directory) readCache() (*models.MunicipalityCache, error) {
	data, err := os.ReadFile(d.cachePath)
	if err != nil {
		return nil, err
	}
	var cache models.MunicipalityCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("failed to parse municipality cache: %w", err)
	}
	if cache.Provinces == nil {
		return nil, fmt.Errorf("municipality cache has no provinces")
	}
	return &cache, nil
}

// writeCache is best effort: a cache that cannot be written only costs
// an extra download tomorrow.
func (d *Directory) writeCache(cache models.MunicipalityCache) {
	data, err := json.Marshal(cache)
	if err == nil {
		err = os.WriteFile(d.cachePath, data, 0o644)
	}
	if err != nil {
		d.l.Warning("could not write municipality cache", map[string]any{
			"path": d.cachePath,
			"err":  err.Error(),
		})
	}
}

func atoiLenient(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
