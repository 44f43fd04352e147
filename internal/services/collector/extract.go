package collector

import (
	"encoding/json"
	"strconv"
	"strings"
)

// forecastPayload mirrors the daily-forecast response: a single-element
// array whose prediction holds one entry per forecast day.
type forecastPayload []struct {
	Prediction struct {
		Days []forecastDay `json:"dia"`
	} `json:"prediccion"`
}

type forecastDay struct {
	Date        string           `json:"fecha"`
	Temperature temperatureBlock `json:"temperatura"`
}

// temperatureBlock normalizes the two shapes AEMET uses for the daily
// temperature: a plain {maxima, minima} object, or a list of period
// entries where "Máxima"/"Mínima" descriptions (or the full-day 00-24
// period) carry the values. Unknown shapes decode to absent values.
type temperatureBlock struct {
	Min *int
	Max *int
}

func (b *temperatureBlock) UnmarshalJSON(data []byte) error {
	var obj struct {
		Max flexValue `json:"maxima"`
		Min flexValue `json:"minima"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		b.Max = obj.Max.val
		b.Min = obj.Min.val
		return nil
	}

	var periods []struct {
		Value       flexValue `json:"valor"`
		AltValue    flexValue `json:"value"`
		Description string    `json:"descripcion"`
		Period      string    `json:"periodo"`
	}
	if err := json.Unmarshal(data, &periods); err == nil {
		for _, p := range periods {
			v := p.Value.val
			if v == nil {
				v = p.AltValue.val
			}
			if p.Description == "Máxima" || p.Period == "00-24" {
				b.Max = v
			}
			if p.Description == "Mínima" {
				b.Min = v
			}
		}
	}

	// Anything else yields absent temperatures, never an error.
	return nil
}

// flexValue coerces a JSON number or numeric string to an int; anything
// malformed stays absent.
type flexValue struct {
	val *int
}

func (f *flexValue) UnmarshalJSON(data []byte) error {
	// json.Unmarshal treats null as a no-op for numeric targets, which
	// would read as 0°C here. Null means no measurement.
	if string(data) == "null" {
		return nil
	}
	var fl float64
	if err := json.Unmarshal(data, &fl); err == nil {
		n := int(fl)
		f.val = &n
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if n, aerr := strconv.Atoi(strings.TrimSpace(s)); aerr == nil {
			f.val = &n
		}
	}
	return nil
}

// ExtractDayTemps pulls (min, max) for the target ISO date out of a
// daily-forecast payload. When the target date has no usable entry the
// first listed day is used instead. Structural problems of any kind
// yield absent values.
func ExtractDayTemps(payload json.RawMessage, targetDate string) (tMin, tMax *int) {
	var fp forecastPayload
	if err := json.Unmarshal(payload, &fp); err != nil || len(fp) == 0 {
		return nil, nil
	}

	days := fp[0].Prediction.Days
	for _, day := range days {
		date := day.Date
		if len(date) > 10 {
			date = date[:10]
		}
		if date == targetDate {
			tMin = day.Temperature.Min
			tMax = day.Temperature.Max
			break
		}
	}

	if tMin == nil && tMax == nil && len(days) > 0 {
		tMin = days[0].Temperature.Min
		tMax = days[0].Temperature.Max
	}

	return tMin, tMax
}
