package feed

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/plutoid/plutoid/docstore"
	"github.com/plutoid/plutoid/model"
	. "github.com/plutoid/plutoid/utils/log"
	"github.com/sirupsen/logrus"
)

const (
	unknownFirstName = "Unknown"
	unknownLastName  = "User"
)

// authorCache memoizes user lookups for the duration of one call. It is built
// at the top of the call, used from a single goroutine and dropped on return.
// A nil entry records a lookup that found nothing.
type authorCache struct {
	users map[string]*model.User
}

func newAuthorCache() *authorCache {
	return &authorCache{users: make(map[string]*model.User)}
}

// lookupAuthor returns the stored user with this uid, or nil when it is
// missing or the lookup failed. The store is asked at most once per uid per
// cache.
func (a *Aggregator) lookupAuthor(ctx context.Context, cache *authorCache, uid string) *model.User {
	if uid == "" {
		return nil
	}
	if u, ok := cache.users[uid]; ok {
		return u
	}

	u, err := a.findUser(ctx, docstore.Eq("uid", uid))
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		Log.WithError(err).WithFields(logrus.Fields{"uid": uid, "lookup": "author"}).Warn("author lookup failed")
		a.incr("join.failure", "lookup:author")
	}
	cache.users[uid] = u
	return u
}

func (a *Aggregator) findUser(ctx context.Context, filter docstore.Filter) (*model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.JoinTimeout)
	defer cancel()

	docs, err := a.store.Query(ctx, docstore.Query{
		Collection: UsersCollection,
		Filters:    []docstore.Filter{filter},
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrUserNotFound
	}
	return decodeUser(docs[0]), nil
}

// resolveAuthor never fails: an author missing from the users collection is
// rebuilt from whatever the post carries.
func (a *Aggregator) resolveAuthor(ctx context.Context, cache *authorCache, p *model.Post) model.AuthorSummary {
	if u := a.lookupAuthor(ctx, cache, p.AuthorID()); u != nil {
		return u.Summary()
	}
	a.incr("author.synthesized")
	return synthesizeAuthor(authorHints{
		uid:       p.AuthorID(),
		email:     p.Email,
		firstName: p.FirstName,
		lastName:  p.LastName,
		userName:  p.UserName,
		embedded:  p.EmbeddedUser,
	})
}

type authorHints struct {
	uid       string
	email     string
	firstName string
	lastName  string
	userName  string
	embedded  *model.EmbeddedUser
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// handleFromEmail derives a handle from the local part of an email address.
func handleFromEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return ""
	}
	return strings.ToLower(email[:at])
}

func synthesizeAuthor(h authorHints) model.AuthorSummary {
	e := h.embedded
	if e == nil {
		e = &model.EmbeddedUser{}
	}
	s := model.AuthorSummary{
		Uid:         firstNonEmpty(h.uid, e.Uid),
		FirstName:   firstNonEmpty(e.FirstName, h.firstName),
		LastName:    firstNonEmpty(e.LastName, h.lastName),
		UserName:    firstNonEmpty(e.UserName, h.userName, handleFromEmail(h.email)),
		ImageURL:    e.ImageURL,
		Country:     e.CountryOrigin,
		Synthesized: true,
	}
	if s.UserName == "" {
		s.UserName = s.Uid
	}
	if s.FirstName == "" && s.LastName == "" {
		s.FirstName, s.LastName = unknownFirstName, unknownLastName
	}
	return s
}
