package feed

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/plutoid/plutoid/docstore"
	"github.com/plutoid/plutoid/model"
)

// CreatePost stores a new post authored by viewerID. Setting PostMadeBy marks
// it as a repost of that user's content.
func (a *Aggregator) CreatePost(ctx context.Context, viewerID string, input model.NewPostInput) (*model.Post, error) {
	if viewerID == "" {
		return nil, ErrNoViewer
	}
	input.TextCaption = strings.TrimSpace(input.TextCaption)
	if input.TextCaption == "" && input.ImageURL == "" {
		return nil, ErrEmptyPost
	}

	p := &model.Post{
		Uid:         viewerID,
		Email:       input.Email,
		TextCaption: input.TextCaption,
		ImageURL:    input.ImageURL,
		Country:     input.Country,
		RePost:      input.PostMadeBy != "",
		PostMadeBy:  input.PostMadeBy,
		DateCreated: a.now(),
	}
	fields := map[string]interface{}{
		"uid":         p.Uid,
		"email":       p.Email,
		"textCaption": p.TextCaption,
		"imageURL":    p.ImageURL,
		"country":     p.Country,
		"re_post":     p.RePost,
	}
	if p.RePost {
		fields["post_made_by"] = p.PostMadeBy
	}

	id, err := a.store.Insert(ctx, PostsCollection, &docstore.Document{
		CreatedAt: p.DateCreated,
		Fields:    fields,
	})
	if err != nil {
		return nil, errors.Wrap(err, "insert post")
	}
	p.Id = id
	a.incr("post.created")
	return p, nil
}

func (a *Aggregator) getPost(ctx context.Context, postID string) (*model.Post, error) {
	if postID == "" {
		return nil, ErrPostNotFound
	}
	d, err := a.store.Get(ctx, PostsCollection, postID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get post %s", postID)
	}
	return decodePost(d), nil
}

// GetPost returns a single post joined the same way feed pages are.
func (a *Aggregator) GetPost(ctx context.Context, viewerID string, postID string) (*model.FeedItem, error) {
	p, err := a.getPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !validPost(p) {
		return nil, ErrPostNotFound
	}
	items, err := a.compose(ctx, viewerID, []*model.Post{p})
	if err != nil {
		return nil, err
	}
	return items[0], nil
}
