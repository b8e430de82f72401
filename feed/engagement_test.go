package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/plutoid/plutoid/docstore"
	"github.com/plutoid/plutoid/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countOf(t *testing.T, s docstore.Store, collection string, filters ...docstore.Filter) int64 {
	n, err := s.Count(context.Background(), collection, filters...)
	require.NoError(t, err)
	return n
}

func TestToggleLikeTwice(t *testing.T) {
	f := newFixture(t)
	f.post("p1", "u1", 0, "hello")
	f.relation(LikesCollection, "someone", "p1")
	a := f.aggregator()
	ctx := context.Background()

	state, err := a.ToggleLike(ctx, "u2", "p1")
	require.NoError(t, err)
	assert.Equal(t, model.ToggleState{PostID: "p1", Active: true, Count: 2}, state)
	assert.Equal(t, int64(1), countOf(t, f.store, LikesCollection, docstore.Eq("uid", "u2")))

	page, err := a.FetchFeedPage(ctx, "u2", 10, "")
	require.NoError(t, err)
	assert.True(t, page.Items[0].IsLiked)

	state, err = a.ToggleLike(ctx, "u2", "p1")
	require.NoError(t, err)
	assert.Equal(t, model.ToggleState{PostID: "p1", Active: false, Count: 1}, state)
	assert.Zero(t, countOf(t, f.store, LikesCollection, docstore.Eq("uid", "u2")))

	page, err = a.FetchFeedPage(ctx, "u2", 10, "")
	require.NoError(t, err)
	assert.False(t, page.Items[0].IsLiked)
}

func TestToggleLikeRemovesLegacyDuplicates(t *testing.T) {
	f := newFixture(t)
	f.post("p1", "u1", 0, "hello")
	f.relation(LikesCollection, "u2", "p1")
	f.relation(LikesCollection, "u2", "p1")

	state, err := f.aggregator().ToggleLike(context.Background(), "u2", "p1")
	require.NoError(t, err)
	assert.False(t, state.Active)
	assert.Zero(t, countOf(t, f.store, LikesCollection))
}

func TestToggleLikeConcurrentNeverDuplicates(t *testing.T) {
	f := newFixture(t)
	f.post("p1", "u1", 0, "hello")
	a := f.aggregator()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.ToggleLike(context.Background(), "u2", "p1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, countOf(t, f.store, LikesCollection), int64(1))
}

func TestToggleSaveRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.insert(PostsCollection, "p1", base, map[string]interface{}{"uid": "u1", "imageURL": "https://img/p1.png"})
	f.relation(SavedItemsCollection, "u3", "p1")
	a := f.aggregator()
	ctx := context.Background()

	before, err := f.store.Query(ctx, docstore.Query{Collection: SavedItemsCollection})
	require.NoError(t, err)

	state, err := a.ToggleSave(ctx, "u2", "p1")
	require.NoError(t, err)
	assert.True(t, state.Active)
	assert.Equal(t, int64(2), state.Count)

	saved, err := a.ListSavedItems(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "p1", saved[0].PostID)
	assert.Equal(t, "https://img/p1.png", saved[0].ImageURL)

	state, err = a.ToggleSave(ctx, "u2", "p1")
	require.NoError(t, err)
	assert.False(t, state.Active)

	after, err := f.store.Query(ctx, docstore.Query{Collection: SavedItemsCollection})
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestToggleErrors(t *testing.T) {
	f := newFixture(t)
	f.post("p1", "u1", 0, "hello")
	a := f.aggregator()
	ctx := context.Background()

	_, err := a.ToggleLike(ctx, "", "p1")
	assert.Equal(t, ErrNoViewer, err)

	_, err = a.ToggleSave(ctx, "u1", "missing")
	assert.Equal(t, ErrPostNotFound, err)
}

func TestCreateAndListComments(t *testing.T) {
	f := newFixture(t)
	f.user("u1", "Ada", "Lovelace", "ada")
	f.post("p1", "u1", 0, "hello")
	now := base
	a := f.aggregator(WithClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	}))
	ctx := context.Background()

	c, err := a.CreateComment(ctx, "u1", "p1", "  first  ")
	require.NoError(t, err)
	assert.Equal(t, "first", c.TextComment)
	assert.Equal(t, "ada@plutoid.app", c.Email)
	assert.NotEmpty(t, c.Id)

	_, err = a.CreateComment(ctx, "ghost", "p1", "second")
	require.NoError(t, err)

	_, err = a.CreateComment(ctx, "u1", "p1", "   ")
	assert.Equal(t, ErrEmptyComment, err)
	_, err = a.CreateComment(ctx, "", "p1", "hi")
	assert.Equal(t, ErrNoViewer, err)
	_, err = a.CreateComment(ctx, "u1", "missing", "hi")
	assert.Equal(t, ErrPostNotFound, err)

	comments, err := a.ListComments(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "second", comments[0].TextComment)
	assert.True(t, comments[0].User.Synthesized)
	assert.Equal(t, "ghost", comments[0].User.UserName)
	assert.Equal(t, "first", comments[1].TextComment)
	assert.Equal(t, "ada", comments[1].User.UserName)

	page, err := a.FetchFeedPage(ctx, "", 10, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Items[0].CommentsCount)
}

func TestRecordView(t *testing.T) {
	f := newFixture(t)
	f.post("p1", "u1", 0, "hello")
	ctx := context.Background()

	a := f.aggregator()
	require.NoError(t, a.RecordView(ctx, "u2", "p1"))
	require.NoError(t, a.RecordView(ctx, "u2", "p1"))
	assert.Equal(t, int64(2), countOf(t, f.store, ViewsCollection))

	deduped := NewAggregator(f.store, Config{DedupeViews: true})
	require.NoError(t, deduped.RecordView(ctx, "u3", "p1"))
	require.NoError(t, deduped.RecordView(ctx, "u3", "p1"))
	assert.Equal(t, int64(3), countOf(t, f.store, ViewsCollection))

	assert.Equal(t, ErrNoViewer, a.RecordView(ctx, "", "p1"))

	viewedAt := base.Add(time.Hour)
	require.NoError(t, a.RecordViewAt(ctx, "u4", "p1", viewedAt))
	docs, err := f.store.Query(ctx, docstore.Query{Collection: ViewsCollection, Filters: []docstore.Filter{docstore.Eq("uid", "u4")}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.True(t, viewedAt.Equal(docs[0].CreatedAt))
}
