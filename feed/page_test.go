package feed

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/plutoid/plutoid/docstore"
	"github.com/plutoid/plutoid/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(items []*model.FeedItem) []string {
	res := []string{}
	for _, item := range items {
		res = append(res, item.Id)
	}
	return res
}

func TestFetchFeedPagePagination(t *testing.T) {
	f := newFixture(t)
	f.user("u1", "Ada", "Lovelace", "ada")
	for i, id := range []string{"P1", "P2", "P3", "P4", "P5"} {
		f.post(id, "u1", i, "post "+id)
	}
	a := f.aggregator()
	ctx := context.Background()

	first, err := a.FetchFeedPage(ctx, "", 2, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"P5", "P4"}, ids(first.Items))
	require.NotEmpty(t, first.NextCursor)

	second, err := a.FetchFeedPage(ctx, "", 2, first.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, []string{"P3", "P2"}, ids(second.Items))
	require.NotEmpty(t, second.NextCursor)

	third, err := a.FetchFeedPage(ctx, "", 2, second.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, []string{"P1"}, ids(third.Items))
	assert.Empty(t, third.NextCursor)
}

func TestFetchFeedPageJoins(t *testing.T) {
	f := newFixture(t)
	f.user("u1", "Ada", "Lovelace", "ada")
	f.user("u2", "Grace", "Hopper", "grace")
	f.post("p1", "u1", 0, "hello")
	f.insert(PostsCollection, "p2", base.Add(time.Minute), map[string]interface{}{
		"uid":          "u2",
		"textCaption":  "shared",
		"re_post":      "true",
		"post_made_by": "u1",
	})
	f.relation(LikesCollection, "u2", "p1")
	f.relation(LikesCollection, "u1", "p1")
	f.relation(SavedItemsCollection, "u2", "p1")
	f.relation(ViewsCollection, "u2", "p1")
	f.relation(ViewsCollection, "u2", "p1")
	f.relation(ViewsCollection, "u1", "p1")
	f.insert(CommentsCollection, "", base, map[string]interface{}{"uid": "u2", "post_id": "p1", "textComment": "nice"})

	page, err := f.aggregator().FetchFeedPage(context.Background(), "u2", 10, "")
	require.NoError(t, err)
	require.Equal(t, []string{"p2", "p1"}, ids(page.Items))

	repost := page.Items[0]
	assert.True(t, repost.RePost)
	assert.Equal(t, "grace", repost.User.UserName)
	require.NotNil(t, repost.OriginalPoster)
	assert.Equal(t, "ada", repost.OriginalPoster.UserName)
	assert.Zero(t, repost.LikeCount)
	assert.False(t, repost.IsLiked)

	p1 := page.Items[1]
	assert.Nil(t, p1.OriginalPoster)
	assert.Equal(t, "Ada", p1.User.FirstName)
	assert.False(t, p1.User.Synthesized)
	assert.Equal(t, int64(1), p1.CommentsCount)
	assert.Equal(t, int64(2), p1.LikeCount)
	assert.Equal(t, int64(3), p1.ViewCount)
	assert.Equal(t, int64(1), p1.BookmarkCount)
	assert.True(t, p1.IsLiked)
	assert.True(t, p1.IsSaved)

	anonymous, err := f.aggregator().FetchFeedPage(context.Background(), "", 10, "")
	require.NoError(t, err)
	assert.False(t, anonymous.Items[1].IsLiked)
	assert.False(t, anonymous.Items[1].IsSaved)
	assert.Equal(t, int64(2), anonymous.Items[1].LikeCount)
}

func TestFetchFeedPageRepostWithMissingOriginal(t *testing.T) {
	f := newFixture(t)
	f.user("u1", "Ada", "Lovelace", "ada")
	f.insert(PostsCollection, "p1", base, map[string]interface{}{
		"uid":          "u1",
		"re_post":      true,
		"post_made_by": "ghost",
	})

	page, err := f.aggregator().FetchFeedPage(context.Background(), "", 10, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.True(t, page.Items[0].RePost)
	assert.Nil(t, page.Items[0].OriginalPoster)
}

func TestFetchFeedPageIsDeterministic(t *testing.T) {
	f := newFixture(t)
	f.user("u1", "Ada", "Lovelace", "ada")
	// Same timestamp for all posts, order falls back to the id.
	for _, id := range []string{"a", "c", "b", "e", "d"} {
		f.post(id, "u1", 0, "same time")
		f.relation(LikesCollection, "u1", id)
	}
	a := f.aggregator()

	first, err := a.FetchFeedPage(context.Background(), "u1", 3, "")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := a.FetchFeedPage(context.Background(), "u1", 3, "")
		require.NoError(t, err)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("page changed between fetches (-first +again):\n%s", diff)
		}
	}
	assert.Equal(t, []string{"e", "d", "c"}, ids(first.Items))
}

func TestFetchFeedPageLooksUpEachAuthorOnce(t *testing.T) {
	f := newFixture(t)
	f.user("u1", "Ada", "Lovelace", "ada")
	f.user("u2", "Grace", "Hopper", "grace")
	f.post("p1", "u1", 0, "one")
	f.post("p2", "u2", 1, "two")
	f.post("p3", "u1", 2, "three")
	f.post("p4", "ghost", 3, "four")
	f.post("p5", "ghost", 4, "five")
	f.insert(PostsCollection, "p6", base.Add(5*time.Minute), map[string]interface{}{
		"uid": "u2", "re_post": true, "post_made_by": "u1",
	})

	counting := newCountingStore(f.store)
	a := NewAggregator(counting, Config{})

	page, err := a.FetchFeedPage(context.Background(), "", 10, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 6)
	// u1, u2 and the missing ghost author.
	assert.Equal(t, 3, counting.queriesOf(UsersCollection))

	// The cache does not outlive the call.
	_, err = a.FetchFeedPage(context.Background(), "", 10, "")
	require.NoError(t, err)
	assert.Equal(t, 6, counting.queriesOf(UsersCollection))
}

func TestFetchFeedPageDropsPostsWithoutAuthor(t *testing.T) {
	f := newFixture(t)
	f.user("u1", "Ada", "Lovelace", "ada")
	f.post("p1", "u1", 0, "kept")
	f.insert(PostsCollection, "orphan", base.Add(time.Minute), map[string]interface{}{"textCaption": "no author"})
	f.insert(PostsCollection, "legacy", base.Add(2*time.Minute), map[string]interface{}{"uuid": "u1", "textCaption": "legacy"})
	f.insert(PostsCollection, "undated", time.Time{}, map[string]interface{}{"uid": "u1"})

	for _, size := range []int{1, 2, 3, 10} {
		var (
			seen   []string
			cursor string
		)
		for i := 0; i < 10; i++ {
			page, err := f.aggregator().FetchFeedPage(context.Background(), "", size, cursor)
			require.NoError(t, err)
			seen = append(seen, ids(page.Items)...)
			if page.NextCursor == "" {
				break
			}
			cursor = page.NextCursor
		}
		assert.Equal(t, []string{"legacy", "p1"}, seen, "page size %d", size)
	}
}

func TestFetchFeedPageSynthesizesMissingAuthor(t *testing.T) {
	f := newFixture(t)
	f.user("u1", "Ada", "Lovelace", "ada")
	f.post("p1", "u1", 0, "first")
	f.insert(PostsCollection, "p2", base.Add(time.Minute), map[string]interface{}{
		"uid":         "x",
		"email":       "bot@x.com",
		"firstName":   "Bot",
		"textCaption": "beep",
	})
	f.post("p3", "u1", 2, "third")

	page, err := f.aggregator().FetchFeedPage(context.Background(), "", 3, "")
	require.NoError(t, err)
	require.Equal(t, []string{"p3", "p2", "p1"}, ids(page.Items))

	bot := page.Items[1].User
	assert.Equal(t, "Bot", bot.FirstName)
	assert.Equal(t, "bot", bot.UserName)
	assert.Equal(t, "x", bot.Uid)
	assert.True(t, bot.Synthesized)
}

func TestFetchFeedPageSynthesizesFromEmbeddedUser(t *testing.T) {
	f := newFixture(t)
	f.insert(PostsCollection, "p1", base, map[string]interface{}{
		"uid": "x",
		"user": map[string]interface{}{
			"userName":  "embedded",
			"firstName": "Em",
			"imageURL":  "https://img/em.png",
		},
	})
	f.insert(PostsCollection, "p2", base.Add(time.Minute), map[string]interface{}{"uid": "nameless"})

	page, err := f.aggregator().FetchFeedPage(context.Background(), "", 10, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	assert.Equal(t, model.AuthorSummary{Uid: "nameless", FirstName: "Unknown", LastName: "User", UserName: "nameless", Synthesized: true}, page.Items[0].User)
	assert.Equal(t, model.AuthorSummary{Uid: "x", FirstName: "Em", UserName: "embedded", ImageURL: "https://img/em.png", Synthesized: true}, page.Items[1].User)
}

func TestFetchFeedPageKeepsPostsWithMalformedOptionalFields(t *testing.T) {
	f := newFixture(t)
	f.user("u1", "Ada", "Lovelace", "ada")
	f.post("p1", "u1", 0, "clean")
	f.insert(PostsCollection, "p2", base.Add(time.Minute), map[string]interface{}{
		"uid":         "u1",
		"textCaption": "legacy author",
		"user":        "u1",
	})
	f.insert(PostsCollection, "p3", base.Add(2*time.Minute), map[string]interface{}{
		"uid":         "u1",
		"textCaption": "odd image",
		"imageURL":    map[string]interface{}{"url": "https://img/p3.png"},
	})

	page, err := f.aggregator().FetchFeedPage(context.Background(), "", 10, "")
	require.NoError(t, err)
	require.Equal(t, []string{"p3", "p2", "p1"}, ids(page.Items))

	assert.Equal(t, "odd image", page.Items[0].TextCaption)
	assert.Empty(t, page.Items[0].ImageURL)
	assert.Equal(t, "legacy author", page.Items[1].TextCaption)
	for _, item := range page.Items {
		assert.Equal(t, "ada", item.User.UserName)
		assert.False(t, item.User.Synthesized)
	}
}

// blockingStore never answers a count of one collection until the caller
// gives up.
type blockingStore struct {
	docstore.Store
	collection string
}

func (s *blockingStore) Count(ctx context.Context, collection string, filters ...docstore.Filter) (int64, error) {
	if collection == s.collection {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return s.Store.Count(ctx, collection, filters...)
}

func TestFetchFeedPageJoinTimeoutUsesDefault(t *testing.T) {
	f := newFixture(t)
	f.user("u1", "Ada", "Lovelace", "ada")
	f.post("p1", "u1", 0, "hello")
	f.relation(LikesCollection, "u1", "p1")
	f.relation(ViewsCollection, "u1", "p1")

	a := NewAggregator(&blockingStore{Store: f.store, collection: ViewsCollection}, Config{JoinTimeout: 50 * time.Millisecond})
	start := time.Now()
	page, err := a.FetchFeedPage(context.Background(), "u1", 10, "")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	require.Len(t, page.Items, 1)
	item := page.Items[0]
	assert.Zero(t, item.ViewCount)
	assert.Equal(t, int64(1), item.LikeCount)
	assert.True(t, item.IsLiked)
	assert.Equal(t, "ada", item.User.UserName)
}

func TestFetchFeedPageJoinFailureUsesDefaults(t *testing.T) {
	f := newFixture(t)
	f.user("u1", "Ada", "Lovelace", "ada")
	f.post("p1", "u1", 0, "hello")
	f.relation(LikesCollection, "u1", "p1")
	f.relation(ViewsCollection, "u1", "p1")

	a := NewAggregator(newFailingStore(f.store, LikesCollection), Config{})
	page, err := a.FetchFeedPage(context.Background(), "u1", 10, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Zero(t, page.Items[0].LikeCount)
	assert.False(t, page.Items[0].IsLiked)
	assert.Equal(t, int64(1), page.Items[0].ViewCount)
}

func TestFetchFeedPageAuthorFailureSynthesizes(t *testing.T) {
	f := newFixture(t)
	f.user("u1", "Ada", "Lovelace", "ada")
	f.insert(PostsCollection, "p1", base, map[string]interface{}{"uid": "u1", "email": "ada@plutoid.app"})

	a := NewAggregator(newFailingStore(f.store, UsersCollection), Config{})
	page, err := a.FetchFeedPage(context.Background(), "", 10, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.True(t, page.Items[0].User.Synthesized)
	assert.Equal(t, "ada", page.Items[0].User.UserName)
}

func TestFetchFeedPageStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.post("p1", "u1", 0, "hello")

	a := NewAggregator(newFailingStore(f.store, PostsCollection), Config{})
	page, err := a.FetchFeedPage(context.Background(), "", 10, "")
	require.Error(t, err)
	assert.Nil(t, page)

	var pageErr *PageError
	require.True(t, errors.As(err, &pageErr))
	assert.True(t, pageErr.Retryable())
	assert.True(t, errors.Is(err, errUnavailable))
}

func TestFetchFeedPageCancelled(t *testing.T) {
	f := newFixture(t)
	f.post("p1", "u1", 0, "hello")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	page, err := f.aggregator().FetchFeedPage(ctx, "", 10, "")
	require.Error(t, err)
	assert.Nil(t, page)

	var pageErr *PageError
	require.True(t, errors.As(err, &pageErr))
	assert.False(t, pageErr.Retryable())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFetchFeedPageArguments(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 40; i++ {
		f.post(docID(i), "u1", i, "")
	}
	a := f.aggregator()

	_, err := a.FetchFeedPage(context.Background(), "", 0, "")
	assert.Equal(t, ErrInvalidPageSize, err)

	_, err = a.FetchFeedPage(context.Background(), "", 10, "%%%")
	assert.Equal(t, ErrInvalidCursor, err)

	page, err := a.FetchFeedPage(context.Background(), "", 1000, "")
	require.NoError(t, err)
	assert.Len(t, page.Items, DefaultPageLimit)
	assert.NotEmpty(t, page.NextCursor)
}

func docID(i int) string {
	return string(rune('A'+i/26)) + string(rune('a'+i%26))
}

func TestGetUserPostsAndSearchPosts(t *testing.T) {
	f := newFixture(t)
	f.user("u1", "Ada", "Lovelace", "ada")
	f.user("u2", "Grace", "Hopper", "grace")
	f.post("p1", "u1", 0, "Engines are fun")
	f.post("p2", "u2", 1, "compilers and engines")
	f.post("p3", "u1", 2, "notes")
	a := f.aggregator()
	ctx := context.Background()

	page, err := a.GetUserPosts(ctx, "", "u1", 10, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"p3", "p1"}, ids(page.Items))

	page, err = a.SearchPosts(ctx, "", "ENGINES", 10, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, ids(page.Items))

	_, err = a.SearchPosts(ctx, "", "", 10, "")
	assert.Equal(t, ErrEmptyQuery, err)
}

func TestGetUserPostsIncludesLegacyAuthorField(t *testing.T) {
	f := newFixture(t)
	f.user("u1", "Ada", "Lovelace", "ada")
	f.post("p1", "u1", 0, "new")
	f.insert(PostsCollection, "p2", base.Add(time.Minute), map[string]interface{}{"uuid": "u1", "textCaption": "legacy"})
	f.insert(PostsCollection, "p3", base.Add(2*time.Minute), map[string]interface{}{"uid": "u2", "uuid": "u1"})
	f.insert(PostsCollection, "p4", base.Add(3*time.Minute), map[string]interface{}{"uid": "u1", "uuid": "u1"})
	f.post("p5", "u2", 4, "other")
	a := f.aggregator()
	ctx := context.Background()

	page, err := a.GetUserPosts(ctx, "", "u1", 2, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"p4"}, ids(page.Items))
	require.NotEmpty(t, page.NextCursor)

	page, err = a.GetUserPosts(ctx, "", "u1", 2, page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, ids(page.Items))
	require.NotEmpty(t, page.NextCursor)

	page, err = a.GetUserPosts(ctx, "", "u1", 2, page.NextCursor)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Empty(t, page.NextCursor)
}

func TestCursorRoundTrip(t *testing.T) {
	pos := docstore.Position{CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 678, time.UTC), Id: "post-1"}
	decoded, err := DecodeCursor(EncodeCursor(pos))
	require.NoError(t, err)
	assert.True(t, pos.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, pos.Id, decoded.Id)

	decoded, err = DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, decoded)

	for _, bad := range []string{"not base64!", "bm90IGpzb24", "e30"} {
		_, err := DecodeCursor(bad)
		assert.Equal(t, ErrInvalidCursor, err, bad)
	}
}
