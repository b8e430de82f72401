package feed

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/plutoid/plutoid/docstore"
	"github.com/plutoid/plutoid/model"
	. "github.com/plutoid/plutoid/utils/log"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var hashtagPattern = regexp.MustCompile(`#\w+`)

// RankBy selects how trending hashtags are ordered.
type RankBy string

const (
	// RankByEngagement orders by occurrences plus views plus likes.
	RankByEngagement RankBy = "engagement"
	// RankByCount orders by occurrences only.
	RankByCount RankBy = "count"
)

// TrendingCache stores computed trending lists for a while. A miss is
// reported as ok == false with a nil error.
type TrendingCache interface {
	Get(ctx context.Context, key string) ([]*model.TrendingHashtag, bool, error)
	Set(ctx context.Context, key string, tags []*model.TrendingHashtag, ttl time.Duration) error
}

// ExtractHashtags returns every hashtag in text, lower-cased, in order of
// appearance. Repeated tags are repeated in the result.
func ExtractHashtags(text string) []string {
	tags := hashtagPattern.FindAllString(text, -1)
	for i := range tags {
		tags[i] = strings.ToLower(tags[i])
	}
	return tags
}

// normalizeHashtag accepts a tag with or without its leading '#'.
func normalizeHashtag(tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	if !strings.HasPrefix(tag, "#") {
		tag = "#" + tag
	}
	tag = strings.ToLower(tag)
	if hashtagPattern.FindString(tag) != tag {
		return "", ErrInvalidHashtag
	}
	return tag, nil
}

func trendingKey(n int, rank RankBy) string {
	return fmt.Sprintf("trending:%s:%d", rank, n)
}

type postEngagement struct {
	comments int64
	views    int64
	likes    int64
}

// TrendingHashtags recomputes tag usage over the whole posts collection and
// returns the top n. Results are served from the trending cache when one is
// configured.
func (a *Aggregator) TrendingHashtags(ctx context.Context, n int, rank RankBy) ([]*model.TrendingHashtag, error) {
	if n <= 0 {
		n = DefaultTrendingLimit
	}
	if rank != RankByCount {
		rank = RankByEngagement
	}

	key := trendingKey(n, rank)
	if a.trending != nil {
		tags, ok, err := a.trending.Get(ctx, key)
		if err != nil {
			Log.WithError(err).WithField("key", key).Warn("trending cache read failed")
		} else if ok {
			a.incr("trending.cache_hit")
			return tags, nil
		}
	}

	posts, err := a.scanTaggedPosts(ctx)
	if err != nil {
		return nil, err
	}
	engagement, err := a.engagementOf(ctx, posts)
	if err != nil {
		return nil, err
	}

	byTag := map[string]*model.TrendingHashtag{}
	for i, p := range posts {
		for _, tag := range ExtractHashtags(p.TextCaption) {
			t, ok := byTag[tag]
			if !ok {
				t = &model.TrendingHashtag{Hashtag: tag}
				byTag[tag] = t
			}
			t.Count++
			t.Comments += engagement[i].comments
			t.Views += engagement[i].views
			t.Likes += engagement[i].likes
		}
	}

	res := make([]*model.TrendingHashtag, 0, len(byTag))
	for _, t := range byTag {
		t.Score = t.Count
		if rank == RankByEngagement {
			t.Score += t.Views + t.Likes
		}
		res = append(res, t)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Score != res[j].Score {
			return res[i].Score > res[j].Score
		}
		return res[i].Hashtag < res[j].Hashtag
	})
	if len(res) > n {
		res = res[:n]
	}

	if a.trending != nil {
		if err := a.trending.Set(ctx, key, res, a.config.TrendingTTL); err != nil {
			Log.WithError(err).WithField("key", key).Warn("trending cache write failed")
		}
	}
	return res, nil
}

// scanTaggedPosts pages through every post and keeps those carrying at least
// one hashtag.
func (a *Aggregator) scanTaggedPosts(ctx context.Context) ([]*model.Post, error) {
	var (
		posts []*model.Post
		after *docstore.Position
	)
	for {
		docs, err := a.store.Query(ctx, docstore.Query{
			Collection: PostsCollection,
			StartAfter: after,
			Limit:      a.config.ScanBatchSize,
		})
		if err != nil {
			return nil, &PageError{Op: "scan posts", Err: err}
		}
		for _, d := range docs {
			p := decodePost(d)
			if !hashtagPattern.MatchString(p.TextCaption) {
				continue
			}
			posts = append(posts, p)
		}
		if len(docs) < a.config.ScanBatchSize {
			return posts, nil
		}
		pos := docstore.PositionOf(docs[len(docs)-1])
		after = &pos
	}
}

// engagementOf counts comments, views and likes of every post, a bounded
// number of posts at a time. Failed counts stay at zero.
func (a *Aggregator) engagementOf(ctx context.Context, posts []*model.Post) ([]postEngagement, error) {
	res := make([]postEngagement, len(posts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(trendingConcurrency)
	for i := range posts {
		i := i
		g.Go(func() error {
			byPost := docstore.Eq("post_id", posts[i].Id)
			for _, c := range []struct {
				collection string
				dst        *int64
			}{
				{CommentsCollection, &res[i].comments},
				{ViewsCollection, &res[i].views},
				{LikesCollection, &res[i].likes},
			} {
				n, err := a.count(gctx, c.collection, byPost)
				if err != nil {
					Log.WithError(err).WithFields(logrus.Fields{"post_id": posts[i].Id, "lookup": c.collection}).Warn("trending count failed, using default")
					a.incr("join.failure", "lookup:"+c.collection)
					continue
				}
				*c.dst = n
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "trending hashtags")
	}
	return res, nil
}

// GetPostsByHashtag is the feed restricted to posts tagged with tag. The tag
// may be given with or without its leading '#'.
func (a *Aggregator) GetPostsByHashtag(ctx context.Context, viewerID string, tag string, pageSize int, cursor string) (*model.FeedPage, error) {
	tag, err := normalizeHashtag(tag)
	if err != nil {
		return nil, err
	}
	// The store filter is a substring match, so #go also matches #golang.
	keep := func(p *model.Post) bool {
		for _, t := range ExtractHashtags(p.TextCaption) {
			if t == tag {
				return true
			}
		}
		return false
	}
	return a.fetchPage(ctx, "fetch posts by hashtag", viewerID, pageSize, cursor,
		[][]docstore.Filter{{docstore.Contains("textCaption", tag)}}, keep)
}
