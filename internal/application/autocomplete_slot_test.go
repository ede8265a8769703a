package application

import (
	"context"
	"testing"
	"time"

	"github.com/Kilat-Pet-Delivery/service-mileage/internal/domain/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type lookupResult struct {
	places []route.Place
	err    error
}

func TestAutocompleteSlot_ReturnsPredictions(t *testing.T) {
	places := new(mockPlaces)
	places.On("Autocomplete", mock.Anything, "kuala", "token").
		Return([]route.Place{{PlaceID: "kl", Description: "Kuala Lumpur"}}, nil)

	slot := NewAutocompleteSlot(places, 10*time.Millisecond, "token", zap.NewNop())
	got, err := slot.Lookup(context.Background(), "kuala")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kl", got[0].PlaceID)
}

func TestAutocompleteSlot_NewerLookupSupersedesPendingOne(t *testing.T) {
	places := new(mockPlaces)
	places.On("Autocomplete", mock.Anything, "kuala l", "token").
		Return([]route.Place{{PlaceID: "kl"}}, nil)

	slot := NewAutocompleteSlot(places, 50*time.Millisecond, "token", zap.NewNop())

	first := make(chan lookupResult, 1)
	go func() {
		p, err := slot.Lookup(context.Background(), "kua")
		first <- lookupResult{p, err}
	}()
	time.Sleep(10 * time.Millisecond)

	got, err := slot.Lookup(context.Background(), "kuala l")
	require.NoError(t, err)
	assert.Equal(t, "kl", got[0].PlaceID)

	res := <-first
	assert.ErrorIs(t, res.err, ErrSuperseded)
	places.AssertNumberOfCalls(t, "Autocomplete", 1)
}

func TestAutocompleteSlot_StaleInFlightResponseIsDiscarded(t *testing.T) {
	places := new(mockPlaces)
	entered := make(chan struct{})
	release := make(chan struct{})
	places.On("Autocomplete", mock.Anything, "old", "token").
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return([]route.Place{{PlaceID: "stale"}}, nil)
	places.On("Autocomplete", mock.Anything, "new", "token").
		Return([]route.Place{{PlaceID: "fresh"}}, nil)

	slot := NewAutocompleteSlot(places, 5*time.Millisecond, "token", zap.NewNop())

	first := make(chan lookupResult, 1)
	go func() {
		p, err := slot.Lookup(context.Background(), "old")
		first <- lookupResult{p, err}
	}()
	<-entered

	got, err := slot.Lookup(context.Background(), "new")
	require.NoError(t, err)
	assert.Equal(t, "fresh", got[0].PlaceID)

	close(release)
	res := <-first
	assert.ErrorIs(t, res.err, ErrSuperseded)
	assert.Nil(t, res.places)
}

func TestAutocompleteSlot_CallerCancellation(t *testing.T) {
	places := new(mockPlaces)
	slot := NewAutocompleteSlot(places, time.Second, "token", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := slot.Lookup(ctx, "kuala")
	assert.ErrorIs(t, err, context.Canceled)
	places.AssertNotCalled(t, "Autocomplete", mock.Anything, mock.Anything, mock.Anything)
}

func TestAutocompleteSlot_CloseSupersedesPending(t *testing.T) {
	places := new(mockPlaces)
	slot := NewAutocompleteSlot(places, time.Second, "token", zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := slot.Lookup(context.Background(), "kuala")
		done <- err
	}()

	require.Eventually(t, func() bool { return !slot.isCurrent(0) }, time.Second, 5*time.Millisecond)
	slot.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(time.Second):
		t.Fatal("lookup did not return after Close")
	}
}
