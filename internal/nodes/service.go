package nodes

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/nao1215/tornodes/internal/model"
	"github.com/nao1215/tornodes/internal/refresh"
	"github.com/nao1215/tornodes/internal/store"
)

// countryCodePattern accepts exactly two ASCII letters, in any case.
var countryCodePattern = regexp.MustCompile(`^[A-Za-z]{2}$`)

// Service answers queries over the two caches.
type Service struct {
	coord  *refresh.Coordinator
	store  *store.Store
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a Service reading through coord.
func NewService(coord *refresh.Coordinator, opts ...Option) *Service {
	s := &Service{
		coord:  coord,
		store:  coord.Store(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExitAddresses returns the exit list, refreshing it first when stale.
func (s *Service) ExitAddresses(ctx context.Context) ([]model.ExitAddress, error) {
	if err := s.ensureExit(ctx); err != nil {
		return nil, err
	}
	return s.store.ReadExit(), nil
}

// ExitIPs returns the bare IPs of the exit list in source order.
func (s *Service) ExitIPs(ctx context.Context) ([]string, error) {
	ips, _, err := s.ExitList(ctx)
	return ips, err
}

// ExitList returns the bare IPs of the exit list together with the save
// time of the snapshot they were read from. The time is nil when the
// snapshot was never saved.
func (s *Service) ExitList(ctx context.Context) ([]string, *time.Time, error) {
	if err := s.ensureExit(ctx); err != nil {
		return nil, nil, err
	}
	snap := s.store.ExitSnapshot()
	if !snap.Exists {
		return model.IPs(snap.Items), nil, nil
	}
	return model.IPs(snap.Items), &snap.LastUpdate, nil
}

// ensureExit refreshes a stale exit list. A failed refresh is only an
// error when there is no previous list to serve.
func (s *Service) ensureExit(ctx context.Context) error {
	if err := s.coord.EnsureExit(ctx); err != nil {
		if !s.store.ExitInfo().Exists {
			return fmt.Errorf("%w: exit addresses: %w", ErrNoData, err)
		}
		s.logger.Warn("serving stale exit addresses", "error", err)
	}
	return nil
}

// DetailedRelays returns every relay, refreshing the set first when stale.
func (s *Service) DetailedRelays(ctx context.Context) ([]model.Relay, error) {
	if err := s.coord.EnsureDetailed(ctx); err != nil {
		if !s.store.DetailedInfo().Exists {
			return nil, fmt.Errorf("%w: detailed relays: %w", ErrNoData, err)
		}
		s.logger.Warn("serving stale detailed relays", "error", err)
	}
	return s.store.ReadDetailed(), nil
}

// RunningRelays returns the relays that are currently running.
func (s *Service) RunningRelays(ctx context.Context) ([]model.Relay, error) {
	return s.filter(ctx, func(r model.Relay) bool { return r.Running })
}

// ExitRelays returns the relays that carry the Exit flag.
func (s *Service) ExitRelays(ctx context.Context) ([]model.Relay, error) {
	return s.filter(ctx, func(r model.Relay) bool { return r.IsExit })
}

// RelaysByCountry returns the relays located in the given country.
// The code must be two ASCII letters and is compared case-insensitively.
func (s *Service) RelaysByCountry(ctx context.Context, code string) ([]model.Relay, error) {
	if !ValidCountryCode(code) {
		return nil, fmt.Errorf("%w: country code %q must be two letters", ErrInvalidArgument, code)
	}
	return s.filter(ctx, func(r model.Relay) bool { return strings.EqualFold(r.Country, code) })
}

// ExitInfo returns the exit cache metadata without refreshing.
func (s *Service) ExitInfo() model.SnapshotInfo {
	return s.store.ExitInfo()
}

// DetailedInfo returns the detailed cache metadata without refreshing.
func (s *Service) DetailedInfo() model.SnapshotInfo {
	return s.store.DetailedInfo()
}

// ValidCountryCode reports whether code is two ASCII letters.
func ValidCountryCode(code string) bool {
	return countryCodePattern.MatchString(code)
}

func (s *Service) filter(ctx context.Context, keep func(model.Relay) bool) ([]model.Relay, error) {
	relays, err := s.DetailedRelays(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Relay, 0, len(relays))
	for _, r := range relays {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out, nil
}
