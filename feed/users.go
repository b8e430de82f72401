package feed

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/plutoid/plutoid/docstore"
	"github.com/plutoid/plutoid/model"
)

// CreateUser registers a profile for an identity the provider already knows.
// The document id is the uid so a second registration collides in the store.
func (a *Aggregator) CreateUser(ctx context.Context, u model.User) (*model.User, error) {
	if u.Uid == "" {
		return nil, ErrNoViewer
	}
	u.UserName = strings.TrimSpace(u.UserName)
	if u.UserName == "" {
		u.UserName = handleFromEmail(u.Email)
	}
	if u.UserName != "" {
		if _, err := a.GetUserByUserName(ctx, u.UserName); err == nil {
			return nil, ErrUserNameTaken
		} else if !errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
	}
	if _, err := a.GetUser(ctx, u.Uid); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	u.DateCreated = a.now()
	id, err := a.store.Insert(ctx, UsersCollection, &docstore.Document{
		Id:        u.Uid,
		CreatedAt: u.DateCreated,
		Fields: map[string]interface{}{
			"uid":       u.Uid,
			"firstName": u.FirstName,
			"lastName":  u.LastName,
			"email":     u.Email,
			"userName":  u.UserName,
			"imageURL":  u.ImageURL,
			"bio":       u.Bio,
			"country":   u.Country,
		},
	})
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return nil, ErrUserExists
	}
	if err != nil {
		return nil, errors.Wrapf(err, "insert user %s", u.Uid)
	}
	u.Id = id
	return &u, nil
}

// GetUser finds a user by uid.
func (a *Aggregator) GetUser(ctx context.Context, uid string) (*model.User, error) {
	if uid == "" {
		return nil, ErrUserNotFound
	}
	return a.findUser(ctx, docstore.Eq("uid", uid))
}

// GetUserByUserName finds a user by handle.
func (a *Aggregator) GetUserByUserName(ctx context.Context, userName string) (*model.User, error) {
	if userName == "" {
		return nil, ErrUserNotFound
	}
	return a.findUser(ctx, docstore.Eq("userName", userName))
}

// SearchUsers matches q against handles and first names, handles first.
func (a *Aggregator) SearchUsers(ctx context.Context, q string, limit int) ([]*model.User, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = defaultSearchUserSize
	}

	var (
		res  []*model.User
		seen = map[string]bool{}
	)
	for _, field := range []string{"userName", "firstName"} {
		docs, err := a.store.Query(ctx, docstore.Query{
			Collection: UsersCollection,
			Filters:    []docstore.Filter{docstore.Contains(field, q)},
			Limit:      limit,
		})
		if err != nil {
			return nil, errors.Wrap(err, "search users")
		}
		for _, d := range docs {
			u := decodeUser(d)
			if seen[u.Uid] {
				continue
			}
			seen[u.Uid] = true
			res = append(res, u)
			if len(res) == limit {
				return res, nil
			}
		}
	}
	return res, nil
}
