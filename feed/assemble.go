package feed

import (
	"context"
	"sync"

	"github.com/jinzhu/copier"
	"github.com/plutoid/plutoid/docstore"
	"github.com/plutoid/plutoid/model"
	. "github.com/plutoid/plutoid/utils/log"
	"github.com/sirupsen/logrus"
)

// joins holds the six engagement lookups of one post.
type joins struct {
	comments int64
	likes    int64
	views    int64
	saves    int64
	liked    bool
	saved    bool
}

// assemble builds a FeedItem out of a post and its resolved joins. It does not
// touch its inputs.
func assemble(p *model.Post, author model.AuthorSummary, original *model.AuthorSummary, j joins) *model.FeedItem {
	item := &model.FeedItem{}
	if err := copier.Copy(item, p); err != nil {
		// copier only fails on invalid destinations.
		panic(err)
	}
	item.Uid = p.AuthorID()
	item.User = author
	if original != nil {
		o := *original
		item.OriginalPoster = &o
	}
	item.CommentsCount = j.comments
	item.LikeCount = j.likes
	item.ViewCount = j.views
	item.BookmarkCount = j.saves
	item.IsLiked = j.liked
	item.IsSaved = j.saved
	return item
}

func (a *Aggregator) count(ctx context.Context, collection string, filters ...docstore.Filter) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.JoinTimeout)
	defer cancel()
	return a.store.Count(ctx, collection, filters...)
}

func (a *Aggregator) exists(ctx context.Context, collection string, filters ...docstore.Filter) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.JoinTimeout)
	defer cancel()
	docs, err := a.store.Query(ctx, docstore.Query{Collection: collection, Filters: filters, Limit: 1})
	if err != nil {
		return false, err
	}
	return len(docs) > 0, nil
}

// fetchJoins issues the engagement lookups of a post concurrently and waits
// for all of them. A failed lookup leaves its zero value in place.
func (a *Aggregator) fetchJoins(ctx context.Context, postID string, viewerID string) joins {
	var (
		j  joins
		wg sync.WaitGroup
	)
	byPost := docstore.Eq("post_id", postID)

	warn := func(lookup string, err error) {
		Log.WithError(err).WithFields(logrus.Fields{"post_id": postID, "lookup": lookup}).Warn("join lookup failed, using default")
		a.incr("join.failure", "lookup:"+lookup)
	}
	counter := func(lookup string, collection string, dst *int64) {
		defer wg.Done()
		n, err := a.count(ctx, collection, byPost)
		if err != nil {
			warn(lookup, err)
			return
		}
		*dst = n
	}
	viewerState := func(lookup string, collection string, dst *bool) {
		defer wg.Done()
		ok, err := a.exists(ctx, collection, docstore.Eq("uid", viewerID), byPost)
		if err != nil {
			warn(lookup, err)
			return
		}
		*dst = ok
	}

	wg.Add(4)
	go counter("comments", CommentsCollection, &j.comments)
	go counter("likes", LikesCollection, &j.likes)
	go counter("views", ViewsCollection, &j.views)
	go counter("saves", SavedItemsCollection, &j.saves)
	if viewerID != "" {
		wg.Add(2)
		go viewerState("is_liked", LikesCollection, &j.liked)
		go viewerState("is_saved", SavedItemsCollection, &j.saved)
	}
	wg.Wait()
	return j
}

type pendingItem struct {
	post     *model.Post
	author   model.AuthorSummary
	original *model.AuthorSummary
}

// compose turns valid posts into feed items, keeping their order. Authors are
// resolved one post at a time through a cache owned by this call, then the
// engagement joins of every post run in parallel.
func (a *Aggregator) compose(ctx context.Context, viewerID string, posts []*model.Post) ([]*model.FeedItem, error) {
	cache := newAuthorCache()

	pending := make([]pendingItem, 0, len(posts))
	for _, p := range posts {
		item := pendingItem{post: p, author: a.resolveAuthor(ctx, cache, p)}
		if p.IsRepost() {
			if u := a.lookupAuthor(ctx, cache, p.PostMadeBy); u != nil {
				s := u.Summary()
				item.original = &s
			}
		}
		pending = append(pending, item)
	}

	results := make([]joins, len(pending))
	var wg sync.WaitGroup
	for i := range pending {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = a.fetchJoins(ctx, pending[i].post.Id, viewerID)
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items := make([]*model.FeedItem, 0, len(pending))
	for i, p := range pending {
		items = append(items, assemble(p.post, p.author, p.original, results[i]))
	}
	return items, nil
}
