package models

// Dataset is the accumulated rolling window persisted to the data file.
// Invariant: at most one record per (code, date) pair, no record older
// than the retention cutoff.
type Dataset struct {
	UpdatedAt           string   `json:"updated_at" example:"2026-08-30 07:15"`
	AvailableDates      []string `json:"available_dates"`
	TotalMunicipalities int      `json:"total_municipalities"`
	Records             []Record `json:"records"`
}

// FilterByDate returns the records matching the given ISO date.
func (d *Dataset) FilterByDate(date string) []Record {
	var out []Record
	for _, r := range d.Records {
		if r.Date == date {
			out = append(out, r)
		}
	}
	return out
}
