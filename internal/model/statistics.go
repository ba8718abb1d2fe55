package model

import "time"

// TopCountriesLimit is the number of countries reported in Statistics.TopCountries.
const TopCountriesLimit = 10

// CountryCount is the number of relays located in one country.
type CountryCount struct {
	// Code is the country code as reported upstream (usually lower case).
	Code string `json:"code"`

	// Name is the English country name, or the code when it cannot be resolved.
	Name string `json:"name"`

	// Count is the number of relays.
	Count int `json:"count"`
}

// Statistics aggregates the detailed relay set.
type Statistics struct {
	TotalNodes        int            `json:"total_nodes"`
	RunningNodes      int            `json:"running_nodes"`
	OfflineNodes      int            `json:"offline_nodes"`
	ExitNodes         int            `json:"exit_nodes"`
	TotalBandwidth    int64          `json:"total_bandwidth"`
	CountriesCount    int            `json:"countries_count"`
	TopCountries      []CountryCount `json:"top_countries"`
	FlagsDistribution map[string]int `json:"flags_distribution"`
	LastUpdated       *time.Time     `json:"last_updated"`
}
