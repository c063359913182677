package bank

import (
	"path/filepath"
	"testing"
	"time"

	"brotherowl/internal/common"
	"brotherowl/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*Service, *common.ManualClock) {
	t.Helper()
	repo, err := storage.OpenJSONFile[Request](filepath.Join(t.TempDir(), "bank_requests.json"))
	require.NoError(t, err)
	clock := common.NewManualClock(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	return NewService(repo, clock), clock
}

func TestRequestTransitionsOnce(t *testing.T) {
	service, _ := newService(t)

	request, err := service.Create("g", "u", 123, 5_000_000)
	require.NoError(t, err)
	assert.Equal(t, Pending, request.Status)

	fulfilled, err := service.Fulfill(request.ID, "banker")
	require.NoError(t, err)
	assert.Equal(t, Fulfilled, fulfilled.Status)
	assert.Equal(t, "banker", fulfilled.FulfilledBy)

	_, err = service.Fulfill(request.ID, "banker")
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	_, err = service.Cancel(request.ID, "u", false)
	assert.ErrorIs(t, err, ErrAlreadyResolved)

	_, err = service.Fulfill("missing", "banker")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelRules(t *testing.T) {
	service, _ := newService(t)
	request, err := service.Create("g", "u", 123, 100)
	require.NoError(t, err)

	_, err = service.Cancel(request.ID, "other", false)
	assert.ErrorIs(t, err, ErrNotRequester)

	cancelled, err := service.Cancel(request.ID, "other", true)
	require.NoError(t, err)
	assert.Equal(t, Cancelled, cancelled.Status)

	_, err = service.Create("g", "u", 123, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPendingAndGarbageCollection(t *testing.T) {
	service, clock := newService(t)

	first, err := service.Create("g", "u", 1, 100)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, err := service.Create("g", "u", 1, 200)
	require.NoError(t, err)
	_, err = service.Create("other", "u", 1, 300)
	require.NoError(t, err)

	pending, err := service.Pending("g")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)

	require.NoError(t, service.MarkNotified(second.ID, "msg"))
	notified, err := service.Get(second.ID)
	require.NoError(t, err)
	assert.True(t, notified.Notified)

	_, err = service.Fulfill(first.ID, "banker")
	require.NoError(t, err)

	clock.Advance(6 * 24 * time.Hour)
	removed, err := service.CollectGarbage()
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	clock.Advance(24 * time.Hour)
	removed, err = service.CollectGarbage()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = service.Get(first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = service.Get(second.ID)
	assert.NoError(t, err)
}
