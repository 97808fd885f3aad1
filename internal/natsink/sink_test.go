package natsink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	serrors "git.home.luguber.info/inful/syncd/internal/errors"
	"git.home.luguber.info/inful/syncd/internal/reporter"
)

type mockKV struct{ mock.Mock }

func (m *mockKV) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	args := m.Called(ctx, key, value)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockKV) Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error) {
	args := m.Called(ctx, key)
	entry, _ := args.Get(0).(jetstream.KeyValueEntry)
	return entry, args.Error(1)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(subject string, data []byte) error {
	return m.Called(subject, data).Error(0)
}

// kvEntry overrides Value on an otherwise empty entry.
type kvEntry struct {
	jetstream.KeyValueEntry
	value []byte
}

func (e kvEntry) Value() []byte { return e.value }

func idle() reporter.Snapshot {
	return reporter.Snapshot{Status: reporter.StatusIdle, Repos: []reporter.RepoOutcome{}}
}

func TestKVSinkPutsDocument(t *testing.T) {
	kv := &mockKV{}
	isDocument := mock.MatchedBy(func(b []byte) bool {
		var doc map[string]any
		return json.Unmarshal(b, &doc) == nil && len(doc) == 4 && doc["status"] == "idle"
	})
	kv.On("Put", mock.Anything, "status", isDocument).Return(uint64(1), nil).Once()

	sink := NewKVSink(kv, "status")
	require.NoError(t, sink.Write(idle()))
	kv.AssertExpectations(t)
}

func TestKVSinkNotifies(t *testing.T) {
	kv := &mockKV{}
	pub := &mockPublisher{}
	kv.On("Put", mock.Anything, "status", mock.Anything).Return(uint64(2), nil)
	pub.On("Publish", "syncd.status", mock.Anything).Return(nil).Once()

	sink := NewKVSink(kv, "status", WithNotify(pub, "syncd.status"))
	require.NoError(t, sink.Write(idle()))
	pub.AssertExpectations(t)
}

func TestKVSinkErrorsAreEventCategory(t *testing.T) {
	kv := &mockKV{}
	kv.On("Put", mock.Anything, "status", mock.Anything).Return(uint64(0), errors.New("no responders"))
	pub := &mockPublisher{}

	sink := NewKVSink(kv, "status", WithNotify(pub, "syncd.status"))
	err := sink.Write(idle())
	require.Error(t, err)
	assert.True(t, serrors.IsCategory(err, serrors.CategoryEvent))
	assert.True(t, serrors.IsRetryable(err))
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestKVSinkLatest(t *testing.T) {
	want := reporter.Snapshot{
		Status:      reporter.StatusUpdating,
		CurrentRepo: &reporter.RepoOutcome{Name: "api", HumanName: "Api", Status: reporter.RepoUpdating},
		Repos:       []reporter.RepoOutcome{},
	}
	data, err := json.Marshal(want)
	require.NoError(t, err)

	kv := &mockKV{}
	kv.On("Get", mock.Anything, "status").Return(kvEntry{value: data}, nil).Once()
	sink := NewKVSink(kv, "status")

	got, ok, err := sink.Latest(t.Context())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestKVSinkLatestMissingKey(t *testing.T) {
	kv := &mockKV{}
	kv.On("Get", mock.Anything, "status").Return(nil, jetstream.ErrKeyNotFound)

	_, ok, err := NewKVSink(kv, "status").Latest(t.Context())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKVSinkGuards(t *testing.T) {
	assert.Panics(t, func() { NewKVSink(nil, "status") })

	kv := &mockKV{}
	sink := NewKVSink(kv, "status")
	assert.Panics(t, func() { _ = sink.Write(reporter.Snapshot{Status: "bogus", Repos: []reporter.RepoOutcome{}}) })
	kv.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
}
