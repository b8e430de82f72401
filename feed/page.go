package feed

import (
	"context"

	"github.com/plutoid/plutoid/docstore"
	"github.com/plutoid/plutoid/model"
	"github.com/plutoid/plutoid/utils"
	. "github.com/plutoid/plutoid/utils/log"
	"github.com/sirupsen/logrus"
)

// FetchFeedPage returns the next pageSize posts of the global feed, newest
// first, each joined into a FeedItem for viewerID. viewerID may be empty for
// anonymous viewers. cursor is the NextCursor of a previous page, or empty for
// the first page.
//
// Posts lacking an author id or a creation time are left out, so a page may
// hold fewer than pageSize items while NextCursor still points past them.
func (a *Aggregator) FetchFeedPage(ctx context.Context, viewerID string, pageSize int, cursor string) (*model.FeedPage, error) {
	return a.fetchPage(ctx, "fetch feed page", viewerID, pageSize, cursor, nil, nil)
}

// GetUserPosts is the feed restricted to one author. Legacy posts that only
// carry uuid count as the author's too.
func (a *Aggregator) GetUserPosts(ctx context.Context, viewerID string, uid string, pageSize int, cursor string) (*model.FeedPage, error) {
	return a.fetchPage(ctx, "fetch user posts", viewerID, pageSize, cursor,
		[][]docstore.Filter{{docstore.Eq("uid", uid)}, {docstore.Eq("uuid", uid)}},
		func(p *model.Post) bool { return p.AuthorID() == uid })
}

// SearchPosts is the feed restricted to captions containing q.
func (a *Aggregator) SearchPosts(ctx context.Context, viewerID string, q string, pageSize int, cursor string) (*model.FeedPage, error) {
	if q == "" {
		return nil, ErrEmptyQuery
	}
	return a.fetchPage(ctx, "search posts", viewerID, pageSize, cursor,
		[][]docstore.Filter{{docstore.Contains("textCaption", q)}}, nil)
}

func (a *Aggregator) sanitizePageSize(pageSize int) (int, error) {
	if pageSize <= 0 {
		return 0, ErrInvalidPageSize
	}
	return utils.Min(pageSize, a.config.PageLimit), nil
}

// fetchPage reads one raw page of posts matching any of the filter sets and
// composes it. No filter sets means the whole collection. keep, when set,
// drops posts the store filter could only approximate.
func (a *Aggregator) fetchPage(
	ctx context.Context,
	op string,
	viewerID string,
	pageSize int,
	cursor string,
	alternatives [][]docstore.Filter,
	keep func(*model.Post) bool,
) (*model.FeedPage, error) {
	pageSize, err := a.sanitizePageSize(pageSize)
	if err != nil {
		return nil, err
	}
	after, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	q := docstore.Query{Collection: PostsCollection, StartAfter: after, Limit: pageSize}
	var docs []*docstore.Document
	if len(alternatives) > 1 {
		docs, err = docstore.QueryAny(ctx, a.store, q, alternatives...)
	} else {
		if len(alternatives) == 1 {
			q.Filters = alternatives[0]
		}
		docs, err = a.store.Query(ctx, q)
	}
	if err != nil {
		a.incr("page.failure")
		return nil, &PageError{Op: op, Err: err}
	}

	posts := make([]*model.Post, 0, len(docs))
	for _, d := range docs {
		p := decodePost(d)
		if !validPost(p) {
			Log.WithFields(logrus.Fields{"post_id": d.Id}).Debug("post missing author or timestamp dropped")
			a.incr("post.dropped")
			continue
		}
		if keep != nil && !keep(p) {
			continue
		}
		posts = append(posts, p)
	}

	items, err := a.compose(ctx, viewerID, posts)
	if err != nil {
		return nil, &PageError{Op: op, Err: err}
	}

	page := &model.FeedPage{Items: items}
	// A short raw page means the collection is exhausted.
	if len(docs) == pageSize {
		page.NextCursor = EncodeCursor(docstore.PositionOf(docs[len(docs)-1]))
	}
	return page, nil
}
