package collector

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/PedroFenixia/aemet-temperaturas/internal/models"
	"github.com/PedroFenixia/aemet-temperaturas/internal/repositories"
	"github.com/PedroFenixia/aemet-temperaturas/pkg/observe"
)

// DirectoryLister resolves the municipality set grouped by province.
type DirectoryLister interface {
	List(ctx context.Context) (map[string][]models.Municipality, error)
}

// Pacing holds the rate-limiting knobs of the collection loop. In full
// mode the driver pauses out the remainder of BatchWindow after every
// BatchSize municipalities; capitals mode uses a flat CapitalPause since
// the candidate set is at most one per province.
type Pacing struct {
	BatchSize     int
	BatchWindow   time.Duration
	RequestPause  time.Duration
	CapitalPause  time.Duration
	ProgressEvery int
}

// Collector iterates the municipality set, fetches each daily forecast
// and builds one Record per municipality. A failed fetch still produces
// a record with absent temperatures; only an unresolvable directory is
// fatal.
type Collector struct {
	directory DirectoryLister
	fetcher   repositories.Fetcher
	pacing    Pacing
	sleep     repositories.SleepFunc
	now       func() time.Time
	l         *observe.Logger
}

func New(directory DirectoryLister, fetcher repositories.Fetcher, pacing Pacing, l *observe.Logger) *Collector {
	return &Collector{
		directory: directory,
		fetcher:   fetcher,
		pacing:    pacing,
		sleep:     repositories.Sleep,
		now:       time.Now,
		l:         l,
	}
}

// CollectAll fetches every municipality, optionally restricted to
// provinces whose name contains the given substring (case-insensitive).
func (c *Collector) CollectAll(ctx context.Context, provinceFilter string) (map[string][]models.Record, error) {
	today := c.now().Format("2006-01-02")

	provinces, err := c.directory.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(provinces) == 0 {
		return nil, errors.New("no municipalities available")
	}

	if provinceFilter != "" {
		filtered := make(map[string][]models.Municipality)
		for name, muns := range provinces {
			if strings.Contains(strings.ToLower(name), strings.ToLower(provinceFilter)) {
				filtered[name] = muns
			}
		}
		if len(filtered) == 0 {
			return nil, errors.Errorf("province not found: %s", provinceFilter)
		}
		provinces = filtered
	}

	total := 0
	for _, muns := range provinces {
		total += len(muns)
	}
	c.l.Info("collecting temperatures", map[string]any{
		"date":           today,
		"municipalities": total,
		"provinces":      len(provinces),
	})

	results := make(map[string][]models.Record, len(provinces))
	processed, errored := 0, 0
	start := c.now()
	batchCount := 0
	batchStart := c.now()

	for _, name := range sortedKeys(provinces) {
		muns := provinces[name]
		c.l.Info("collecting province", map[string]any{
			"province":       name,
			"municipalities": len(muns),
		})

		records := make([]models.Record, 0, len(muns))
		for _, mun := range muns {
			batchCount++
			if batchCount >= c.pacing.BatchSize {
				elapsed := c.now().Sub(batchStart)
				if elapsed < c.pacing.BatchWindow {
					wait := c.pacing.BatchWindow - elapsed
					c.l.Info("rate limit pause", map[string]any{"wait": wait.String()})
					if err := c.sleep(ctx, wait); err != nil {
						return nil, err
					}
				}
				batchCount = 0
				batchStart = c.now()
			}

			c.l.Debug("fetching forecast", map[string]any{"code": mun.Code, "name": mun.Name})
			payload, ferr := c.fetcher.Fetch(ctx, repositories.DailyForecastEndpoint(mun.Code))
			if ferr != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				errored++
				records = append(records, models.NewRecord(mun, today, nil, nil))
				if err := c.sleep(ctx, c.pacing.RequestPause); err != nil {
					return nil, err
				}
				continue
			}

			tMin, tMax := ExtractDayTemps(payload, today)
			records = append(records, models.NewRecord(mun, today, tMin, tMax))
			processed++

			if c.pacing.ProgressEvery > 0 && processed%c.pacing.ProgressEvery == 0 {
				c.logProgress(processed, total, start)
			}

			if err := c.sleep(ctx, c.pacing.RequestPause); err != nil {
				return nil, err
			}
		}
		results[name] = records
	}

	c.l.Info("collection completed", map[string]any{
		"processed": processed,
		"errors":    errored,
		"minutes":   math.Round(c.now().Sub(start).Minutes()*10) / 10,
	})

	return results, nil
}

// CollectCapitals fetches only the provincial capitals. A province with
// no flagged capital is represented by its most populated municipality.
func (c *Collector) CollectCapitals(ctx context.Context) (map[string][]models.Record, error) {
	today := c.now().Format("2006-01-02")

	provinces, err := c.directory.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(provinces) == 0 {
		return nil, errors.New("no municipalities available")
	}

	results := make(map[string][]models.Record, len(provinces))
	total := 0

	for _, name := range sortedKeys(provinces) {
		muns := provinces[name]

		var capitals []models.Municipality
		for _, mun := range muns {
			if mun.IsCapital {
				capitals = append(capitals, mun)
			}
		}
		if len(capitals) == 0 && len(muns) > 0 {
			// The directory pre-sorts by population, so the first entry
			// stands in as the province's representative.
			capitals = muns[:1]
		}

		records := make([]models.Record, 0, len(capitals))
		for _, mun := range capitals {
			var tMin, tMax *int
			payload, ferr := c.fetcher.Fetch(ctx, repositories.DailyForecastEndpoint(mun.Code))
			if ferr != nil && ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if ferr == nil {
				tMin, tMax = ExtractDayTemps(payload, today)
			}

			rec := models.NewRecord(mun, today, tMin, tMax)
			rec.IsCapital = true
			records = append(records, rec)
			total++

			if total%10 == 0 {
				c.l.Info("capitals progress", map[string]any{"collected": total})
			}
			if err := c.sleep(ctx, c.pacing.CapitalPause); err != nil {
				return nil, err
			}
		}
		results[name] = records
	}

	c.l.Info("capitals completed", map[string]any{"collected": total})

	return results, nil
}

func (c *Collector) logProgress(processed, total int, start time.Time) {
	elapsed := c.now().Sub(start)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(processed) / elapsed.Minutes()
	}
	remaining := 0.0
	if rate > 0 {
		remaining = float64(total-processed) / rate
	}
	c.l.Info("collection progress", map[string]any{
		"processed":    processed,
		"total":        total,
		"per_minute":   math.Round(rate),
		"minutes_left": math.Round(remaining),
	})
}

func sortedKeys(provinces map[string][]models.Municipality) []string {
	names := make([]string, 0, len(provinces))
	for name := range provinces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
