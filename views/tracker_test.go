package views

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/plutoid/plutoid/docstore"
	"github.com/plutoid/plutoid/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ViewRecorder = (*feed.Aggregator)(nil)

// persistentBus replays messages published before the tracker subscribed.
func persistentBus() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})
}

func TestTrackerRecordsViews(t *testing.T) {
	store := docstore.NewMemoryStore()
	_, err := store.Insert(context.Background(), feed.PostsCollection, &docstore.Document{
		Id: "p1", CreatedAt: time.Now(), Fields: map[string]interface{}{"uid": "u1"},
	})
	require.NoError(t, err)
	agg := feed.NewAggregator(store, feed.Config{})

	bus := persistentBus()
	tracker := NewTracker(TrackerConfig{Name: "view_tracker"}, bus, bus, agg, nil)
	engine := NewEngine([]Module{tracker}, context.Background(), bus)

	require.NoError(t, tracker.Publish("u2", "p1"))
	require.NoError(t, tracker.Publish("u2", "p1"))
	require.NoError(t, tracker.Publish("", "p1"))
	engine.Start()
	defer engine.Shutdown()

	assert.Eventually(t, func() bool {
		n, err := store.Count(context.Background(), feed.ViewsCollection, docstore.Eq("post_id", "p1"))
		return err == nil && n == 2
	}, 5*time.Second, 10*time.Millisecond)
}

func TestTrackerKeepsPublishTime(t *testing.T) {
	store := docstore.NewMemoryStore()
	agg := feed.NewAggregator(store, feed.Config{})

	bus := persistentBus()
	tracker := NewTracker(TrackerConfig{Name: "view_tracker"}, bus, bus, agg, nil)
	published := time.Now()
	require.NoError(t, tracker.Publish("u2", "p1"))
	// Consume well after publishing.
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tracker.RunModule(ctx)

	var docs []*docstore.Document
	require.Eventually(t, func() bool {
		var err error
		docs, err = store.Query(context.Background(), docstore.Query{Collection: feed.ViewsCollection})
		return err == nil && len(docs) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.WithinDuration(t, published, docs[0].CreatedAt, 40*time.Millisecond)
}

type flakyRecorder struct {
	m     sync.Mutex
	calls int
}

func (r *flakyRecorder) RecordViewAt(ctx context.Context, viewerID string, postID string, viewedAt time.Time) error {
	r.m.Lock()
	defer r.m.Unlock()
	r.calls++
	if r.calls == 1 {
		return errors.New("store unavailable")
	}
	return nil
}

func (r *flakyRecorder) count() int {
	r.m.Lock()
	defer r.m.Unlock()
	return r.calls
}

func TestTrackerDropsFailedViews(t *testing.T) {
	bus := persistentBus()
	recorder := &flakyRecorder{}
	tracker := NewTracker(TrackerConfig{Name: "view_tracker"}, bus, bus, recorder, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- tracker.RunModule(ctx) }()

	require.NoError(t, tracker.Publish("u1", "p1"))
	require.NoError(t, tracker.Publish("u1", "p2"))
	assert.Eventually(t, func() bool { return recorder.count() == 2 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 2, recorder.count())
}

type moduleFunc struct {
	runs int
	fail int
}

func (m *moduleFunc) RunModule(ctx context.Context) error {
	m.runs++
	if m.runs <= m.fail {
		return errors.New("boom")
	}
	return nil
}

func (m *moduleFunc) Name() string { return "func" }

func (m *moduleFunc) Shutdown() {}

func TestRunModuleStopsOnCancelledContext(t *testing.T) {
	m := &moduleFunc{fail: 100}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	RunModuleWithGracefulRestart(ctx, m)
	assert.Equal(t, 1, m.runs)
}

func TestRunModuleReturnsOnSuccess(t *testing.T) {
	m := &moduleFunc{}
	RunModuleWithGracefulRestart(context.Background(), m)
	assert.Equal(t, 1, m.runs)
}
