package feed

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/plutoid/plutoid/docstore"
	"github.com/plutoid/plutoid/model"
	. "github.com/plutoid/plutoid/utils/log"
	"github.com/sirupsen/logrus"
)

// relationNamespace seeds the deterministic ids of like, save and deduplicated
// view records.
var relationNamespace = uuid.MustParse("6f1c2f0e-8d1b-4a43-9a55-3c1d6b1e7a10")

func relationID(kind string, viewerID string, postID string) string {
	return uuid.NewSHA1(relationNamespace, []byte(kind+"\x00"+viewerID+"\x00"+postID)).String()
}

// ToggleLike likes the post if the viewer has not, and unlikes it otherwise.
func (a *Aggregator) ToggleLike(ctx context.Context, viewerID string, postID string) (model.ToggleState, error) {
	return a.toggle(ctx, "like", LikesCollection, viewerID, postID)
}

// ToggleSave bookmarks the post if the viewer has not, and removes the
// bookmark otherwise.
func (a *Aggregator) ToggleSave(ctx context.Context, viewerID string, postID string) (model.ToggleState, error) {
	return a.toggle(ctx, "save", SavedItemsCollection, viewerID, postID)
}

// toggle flips a (viewer, post) relation. Records created here get an id
// derived from the pair, so two racing creations collide in the store instead
// of leaving two records, and the loser simply reports the relation as set.
// Records written by older clients have random ids and are found by query.
func (a *Aggregator) toggle(ctx context.Context, kind string, collection string, viewerID string, postID string) (model.ToggleState, error) {
	state := model.ToggleState{PostID: postID}
	if viewerID == "" {
		return state, ErrNoViewer
	}
	post, err := a.getPost(ctx, postID)
	if err != nil {
		return state, err
	}

	existing, err := a.store.Query(ctx, docstore.Query{
		Collection: collection,
		Filters:    []docstore.Filter{docstore.Eq("uid", viewerID), docstore.Eq("post_id", postID)},
	})
	if err != nil {
		return state, errors.Wrapf(err, "look up %s of %s", kind, postID)
	}

	if len(existing) > 0 {
		// Removing every match also heals duplicates left by older clients.
		for _, d := range existing {
			if err := a.store.Delete(ctx, collection, d.Id); err != nil && !errors.Is(err, docstore.ErrNotFound) {
				return state, errors.Wrapf(err, "delete %s %s", kind, d.Id)
			}
		}
		state.Active = false
	} else {
		fields := map[string]interface{}{"uid": viewerID, "post_id": postID}
		if collection == SavedItemsCollection {
			fields["imageURL"] = post.ImageURL
		}
		_, err := a.store.Insert(ctx, collection, &docstore.Document{
			Id:        relationID(kind, viewerID, postID),
			CreatedAt: a.now(),
			Fields:    fields,
		})
		if err != nil && !errors.Is(err, docstore.ErrAlreadyExists) {
			return state, errors.Wrapf(err, "insert %s of %s", kind, postID)
		}
		state.Active = true
	}

	n, err := a.store.Count(ctx, collection, docstore.Eq("post_id", postID))
	if err != nil {
		return state, errors.Wrapf(err, "count %s of %s", kind, postID)
	}
	state.Count = n

	Log.WithFields(logrus.Fields{"post_id": postID, "viewer": viewerID, "kind": kind, "active": state.Active}).Info("toggled")
	a.incr("toggle", "kind:"+kind)
	return state, nil
}

// CreateComment appends a comment by viewerID to the post.
func (a *Aggregator) CreateComment(ctx context.Context, viewerID string, postID string, text string) (*model.Comment, error) {
	if viewerID == "" {
		return nil, ErrNoViewer
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}
	if _, err := a.getPost(ctx, postID); err != nil {
		return nil, err
	}

	c := &model.Comment{
		Uid:         viewerID,
		PostID:      postID,
		TextComment: text,
		DateCreated: a.now(),
	}
	if u, err := a.GetUser(ctx, viewerID); err == nil {
		c.Email = u.Email
	}

	id, err := a.store.Insert(ctx, CommentsCollection, &docstore.Document{
		CreatedAt: c.DateCreated,
		Fields: map[string]interface{}{
			"uid":         c.Uid,
			"post_id":     c.PostID,
			"email":       c.Email,
			"textComment": c.TextComment,
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "insert comment on %s", postID)
	}
	c.Id = id
	a.incr("comment.created")
	return c, nil
}

// ListComments returns the comments of a post, newest first, each with its
// commenter.
func (a *Aggregator) ListComments(ctx context.Context, postID string) ([]*model.CommentWithAuthor, error) {
	docs, err := a.store.Query(ctx, docstore.Query{
		Collection: CommentsCollection,
		Filters:    []docstore.Filter{docstore.Eq("post_id", postID)},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list comments of %s", postID)
	}

	cache := newAuthorCache()
	res := make([]*model.CommentWithAuthor, 0, len(docs))
	for _, d := range docs {
		c := decodeComment(d)
		if c.Uid == "" {
			Log.WithField("comment_id", d.Id).Warn("malformed comment dropped")
			continue
		}
		item := &model.CommentWithAuthor{Comment: c}
		if u := a.lookupAuthor(ctx, cache, c.Uid); u != nil {
			item.User = u.Summary()
		} else {
			item.User = synthesizeAuthor(authorHints{uid: c.Uid, email: c.Email})
		}
		res = append(res, item)
	}
	return res, nil
}

// RecordView appends a view of the post by viewerID. With Config.DedupeViews
// repeated views by the same viewer are recorded once.
func (a *Aggregator) RecordView(ctx context.Context, viewerID string, postID string) error {
	return a.RecordViewAt(ctx, viewerID, postID, time.Time{})
}

// RecordViewAt is RecordView for a view that happened at viewedAt, typically
// one consumed from the view queue. A zero viewedAt means now.
func (a *Aggregator) RecordViewAt(ctx context.Context, viewerID string, postID string, viewedAt time.Time) error {
	if viewerID == "" {
		return ErrNoViewer
	}
	if viewedAt.IsZero() {
		viewedAt = a.now()
	}
	doc := &docstore.Document{
		CreatedAt: viewedAt,
		Fields:    map[string]interface{}{"uid": viewerID, "post_id": postID},
	}
	if a.config.DedupeViews {
		doc.Id = relationID("view", viewerID, postID)
	}
	_, err := a.store.Insert(ctx, ViewsCollection, doc)
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "record view of %s", postID)
	}
	return nil
}

// ListSavedItems returns the viewer's bookmarks, newest first.
func (a *Aggregator) ListSavedItems(ctx context.Context, viewerID string) ([]*model.SavedItem, error) {
	if viewerID == "" {
		return nil, ErrNoViewer
	}
	docs, err := a.store.Query(ctx, docstore.Query{
		Collection: SavedItemsCollection,
		Filters:    []docstore.Filter{docstore.Eq("uid", viewerID)},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list saved items of %s", viewerID)
	}
	res := make([]*model.SavedItem, 0, len(docs))
	for _, d := range docs {
		res = append(res, decodeSavedItem(d))
	}
	return res, nil
}
