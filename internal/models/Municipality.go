package models

// Municipality is one entry of the AEMET master list, identified by the
// 5-digit INE code (2-digit province prefix + 3-digit local id).
type Municipality struct {
	Code       string `json:"code" example:"28079"`
	Name       string `json:"name" example:"Madrid"`
	Province   string `json:"province" example:"Madrid"`
	Population int    `json:"population" example:"3223334"`
	Altitude   int    `json:"altitude" example:"657"`
	IsCapital  bool   `json:"is_capital"`
}

// MunicipalityCache is the on-disk directory cache, valid only for the
// calendar day it was written.
type MunicipalityCache struct {
	Date      string                    `json:"date" example:"2026-08-30"`
	Total     int                       `json:"total"`
	Provinces map[string][]Municipality `json:"provinces"`
}
