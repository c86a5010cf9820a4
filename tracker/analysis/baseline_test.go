package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bench-track/bench-track/tracker/types"
)

func TestBaselineManagerSet(t *testing.T) {
	store := new(MockMetricStore)
	store.On("SetBaseline", mock.Anything, "core", "insert", int64(1000), "abc123").Return(nil)

	manager := NewBaselineManager(store, testLogger())
	err := manager.Set(context.Background(), "core", "insert", 1000, "abc123")

	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestBaselineManagerRejectsZeroDuration(t *testing.T) {
	store := new(MockMetricStore)
	manager := NewBaselineManager(store, testLogger())

	err := manager.Set(context.Background(), "core", "insert", 0, "abc123")

	var invalid *types.InvalidRecordError
	require.ErrorAs(t, err, &invalid)
	store.AssertNotCalled(t, "SetBaseline", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBaselineManagerRejectsMissingNames(t *testing.T) {
	manager := NewBaselineManager(new(MockMetricStore), testLogger())

	var invalid *types.InvalidRecordError
	assert.ErrorAs(t, manager.Set(context.Background(), "", "insert", 1000, ""), &invalid)
	assert.ErrorAs(t, manager.Set(context.Background(), "core", "", 1000, ""), &invalid)
}

func TestBaselineManagerGet(t *testing.T) {
	store := new(MockMetricStore)
	want := baseline("core", "insert", 1000)
	store.On("ActiveBaseline", mock.Anything, "core", "insert").Return(want, nil)

	manager := NewBaselineManager(store, testLogger())
	got, err := manager.Get(context.Background(), "core", "insert")

	require.NoError(t, err)
	assert.Equal(t, want, got)
}
