package nodes

import (
	"context"
	"slices"
	"strings"

	"github.com/nao1215/tornodes/internal/model"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Statistics aggregates the detailed relay set, refreshing it first when stale.
func (s *Service) Statistics(ctx context.Context) (model.Statistics, error) {
	relays, err := s.DetailedRelays(ctx)
	if err != nil {
		return model.Statistics{}, err
	}
	stats := ComputeStatistics(relays)
	stats.LastUpdated = s.store.DetailedInfo().LastUpdate
	return stats, nil
}

// ComputeStatistics aggregates relays without touching any cache.
//
// TopCountries holds at most model.TopCountriesLimit entries ordered by
// count, highest first. Countries with equal counts keep the order in which
// they first appear in relays. Relays without a country are counted under
// model.Unknown.
func ComputeStatistics(relays []model.Relay) model.Statistics {
	stats := model.Statistics{
		TotalNodes:        len(relays),
		TopCountries:      []model.CountryCount{},
		FlagsDistribution: map[string]int{},
	}

	counts := map[string]int{}
	var order []string

	for _, r := range relays {
		if r.Running {
			stats.RunningNodes++
		}
		if r.IsExit {
			stats.ExitNodes++
		}
		stats.TotalBandwidth += r.Bandwidth

		country := r.Country
		if country == "" {
			country = model.Unknown
		}
		if _, seen := counts[country]; !seen {
			order = append(order, country)
		}
		counts[country]++

		for _, flag := range r.Flags {
			stats.FlagsDistribution[flag]++
		}
	}

	stats.OfflineNodes = stats.TotalNodes - stats.RunningNodes
	stats.CountriesCount = len(counts)

	slices.SortStableFunc(order, func(a, b string) int {
		return counts[b] - counts[a]
	})
	if len(order) > model.TopCountriesLimit {
		order = order[:model.TopCountriesLimit]
	}
	for _, code := range order {
		stats.TopCountries = append(stats.TopCountries, model.CountryCount{
			Code:  code,
			Name:  CountryName(code),
			Count: counts[code],
		})
	}
	return stats
}

// CountryName returns the English name of a two letter country code, or the
// code itself when it is not a known region.
func CountryName(code string) string {
	if !ValidCountryCode(code) {
		return code
	}
	region, err := language.ParseRegion(strings.ToUpper(code))
	if err != nil {
		return code
	}
	if name := display.English.Regions().Name(region); name != "" {
		return name
	}
	return code
}
