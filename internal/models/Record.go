package models

import "math"

// Record holds one municipality's forecast temperatures for one calendar
// day. Min and Max are nil when the fetch or the extraction failed; the
// record is still kept so failures stay visible in the dataset.
type Record struct {
	Name       string   `json:"name" example:"Madrid"`
	Code       string   `json:"code" example:"28079"`
	Province   string   `json:"province" example:"Madrid"`
	Population int      `json:"population"`
	IsCapital  bool     `json:"is_capital"`
	Date       string   `json:"date" example:"2026-08-30"`
	Min        *int     `json:"min"`
	Max        *int     `json:"max"`
	Average    *float64 `json:"average"`
}

func NewRecord(mun Municipality, date string, tMin, tMax *int) Record {
	return Record{
		Name:       mun.Name,
		Code:       mun.Code,
		Province:   mun.Province,
		Population: mun.Population,
		IsCapital:  mun.IsCapital,
		Date:       date,
		Min:        tMin,
		Max:        tMax,
		Average:    AverageTemp(tMin, tMax),
	}
}

// AverageTemp returns round((min+max)/2, 1 decimal), or nil unless both
// values are present.
func AverageTemp(tMin, tMax *int) *float64 {
	if tMin == nil || tMax == nil {
		return nil
	}
	avg := math.Round(float64(*tMin+*tMax)/2*10) / 10
	return &avg
}
