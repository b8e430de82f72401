// Package feed composes raw posts into denormalized feed items and owns every
// read and write the presentation layer performs against the document store.
//
// Nothing in this package keeps state between calls except the optional
// trending hashtag cache. Every operation receives the viewer explicitly.
package feed

import (
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/pkg/errors"
	"github.com/plutoid/plutoid/docstore"
)

// Collection names, kept identical to the ones the mobile client writes.
const (
	UsersCollection      = "users"
	PostsCollection      = "posts"
	LikesCollection      = "likes_collection"
	SavedItemsCollection = "saved_items"
	CommentsCollection   = "comments"
	ViewsCollection      = "view_analytics"
)

// Collections lists every collection the aggregator touches.
var Collections = []string{
	UsersCollection,
	PostsCollection,
	LikesCollection,
	SavedItemsCollection,
	CommentsCollection,
	ViewsCollection,
}

const (
	DefaultPageLimit      = 30
	DefaultJoinTimeout    = 2 * time.Second
	DefaultTrendingTTL    = time.Minute
	DefaultTrendingLimit  = 20
	DefaultScanBatchSize  = 200
	trendingConcurrency   = 8
	defaultSearchUserSize = 20
)

var (
	ErrNoViewer        = errors.New("a signed-in viewer is required")
	ErrInvalidPageSize = errors.New("page size must be positive")
	ErrInvalidCursor   = errors.New("malformed cursor")
	ErrPostNotFound    = errors.New("post not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrUserNameTaken   = errors.New("user name already taken")
	ErrEmptyComment    = errors.New("comment text is empty")
	ErrEmptyPost       = errors.New("post needs a caption or an image")
	ErrEmptyQuery      = errors.New("search query is empty")
	ErrInvalidHashtag  = errors.New("not a hashtag")
)

// Config holds the aggregator tunables. Zero values fall back to defaults.
type Config struct {
	// Largest page a caller may ask for, bigger requests are capped.
	PageLimit int
	// Deadline of every individual join lookup.
	JoinTimeout time.Duration
	// How long a trending result may be served from cache.
	TrendingTTL time.Duration
	// Record at most one view per (viewer, post).
	DedupeViews bool
	// Page size used when scanning the whole posts collection.
	ScanBatchSize int
}

func (c Config) withDefaults() Config {
	if c.PageLimit <= 0 {
		c.PageLimit = DefaultPageLimit
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = DefaultJoinTimeout
	}
	if c.TrendingTTL <= 0 {
		c.TrendingTTL = DefaultTrendingTTL
	}
	if c.ScanBatchSize <= 0 {
		c.ScanBatchSize = DefaultScanBatchSize
	}
	return c
}

// Aggregator is safe for concurrent use.
type Aggregator struct {
	store    docstore.Store
	config   Config
	trending TrendingCache
	statsd   statsd.ClientInterface
	now      func() time.Time
}

type Option func(*Aggregator)

// WithTrendingCache serves trending hashtags from c for Config.TrendingTTL.
func WithTrendingCache(c TrendingCache) Option {
	return func(a *Aggregator) { a.trending = c }
}

func WithStatsd(c statsd.ClientInterface) Option {
	return func(a *Aggregator) { a.statsd = c }
}

// WithClock overrides the time source used to stamp new records.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func NewAggregator(store docstore.Store, config Config, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:  store,
		config: config.withDefaults(),
		statsd: &statsd.NoOpClient{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) incr(name string, tags ...string) {
	a.statsd.Incr(name, tags, 1)
}
