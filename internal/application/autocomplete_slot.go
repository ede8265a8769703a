package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/route"
	"github.com/bep/debounce"
	"go.uber.org/zap"
)

// ErrSuperseded is returned to a lookup that a newer lookup for the same field replaced.
var ErrSuperseded = errors.New("autocomplete lookup superseded by a newer request")

// PlaceLookup is the place resolution adapter.
type PlaceLookup interface {
	Autocomplete(ctx context.Context, query, sessionToken string) ([]route.Place, error)
	Details(ctx context.Context, placeID string) (*route.Place, error)
}

// AutocompleteSlot serializes lookups for one input field. A new lookup cancels the in-flight one,
// restarts the debounce window, and only the newest lookup's response is ever returned.
type AutocompleteSlot struct {
	lookup       PlaceLookup
	debounced    func(f func())
	sessionToken string
	logger       *zap.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// NewAutocompleteSlot creates a slot with its own debounce timer.
func NewAutocompleteSlot(lookup PlaceLookup, wait time.Duration, sessionToken string, logger *zap.Logger) *AutocompleteSlot {
	return &AutocompleteSlot{
		lookup:       lookup,
		debounced:    debounce.New(wait),
		sessionToken: sessionToken,
		logger:       logger,
	}
}

// Lookup waits out the debounce window and queries the adapter. It returns ErrSuperseded if a
// newer Lookup on the same slot started in the meantime, even if this one's response arrived.
func (s *AutocompleteSlot) Lookup(ctx context.Context, query string) ([]route.Place, error) {
	ctx, gen := s.begin(ctx)

	ready := make(chan struct{})
	s.debounced(func() { close(ready) })

	select {
	case <-ready:
	case <-ctx.Done():
		if !s.isCurrent(gen) {
			return nil, ErrSuperseded
		}
		return nil, ctx.Err()
	}

	places, err := s.lookup.Autocomplete(ctx, query, s.sessionToken)
	if !s.isCurrent(gen) {
		s.logger.Debug("discarding stale autocomplete response", zap.Uint64("generation", gen))
		return nil, ErrSuperseded
	}
	s.finish(gen)
	return places, err
}

// Close cancels any in-flight lookup.
func (s *AutocompleteSlot) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *AutocompleteSlot) begin(parent context.Context) (context.Context, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	s.gen++
	s.cancel = cancel
	return ctx, s.gen
}

func (s *AutocompleteSlot) finish(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *AutocompleteSlot) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}
