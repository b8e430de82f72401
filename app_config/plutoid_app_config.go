package app_config

import (
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
	"github.com/plutoid/plutoid/feed"
	"gopkg.in/yaml.v2"
)

// PlutoidAppConfig holds the tunables of the api server and the view tracker.
// Connection strings and secrets live in dotenv files instead.
type PlutoidAppConfig struct {
	// Largest feed page a client may request.
	FEED_PAGE_LIMIT int `yaml:"FEED_PAGE_LIMIT"`
	// Deadline of each individual join lookup while composing a page.
	JOIN_TIMEOUT_MS int64 `yaml:"JOIN_TIMEOUT_MS"`
	// How long trending hashtags are served from cache.
	TRENDING_TTL_SECOND int64 `yaml:"TRENDING_TTL_SECOND"`
	// Record at most one view per viewer and post.
	DEDUPE_VIEWS bool `yaml:"DEDUPE_VIEWS"`
	// Page size of full collection scans.
	SCAN_BATCH_SIZE int `yaml:"SCAN_BATCH_SIZE"`
	// Backend of the document store: memory, postgres or mongo.
	STORE_DRIVER string `yaml:"STORE_DRIVER"`
	// Address the api server listens on.
	LISTEN_ADDR string `yaml:"LISTEN_ADDR"`
}

func ParsePlutoidAppConfig(path string) (PlutoidAppConfig, error) {
	c := PlutoidAppConfig{}
	yamlFile, err := ioutil.ReadFile(path)
	if err != nil {
		return c, errors.Wrapf(err, "read app config %s", path)
	}
	if err := yaml.UnmarshalStrict(yamlFile, &c); err != nil {
		return c, errors.Wrapf(err, "parse app config %s", path)
	}
	if c.STORE_DRIVER == "" {
		c.STORE_DRIVER = "memory"
	}
	if c.LISTEN_ADDR == "" {
		c.LISTEN_ADDR = ":8080"
	}
	return c, nil
}

// FeedConfig converts the file settings into aggregator settings. Unset
// values keep the aggregator defaults.
func (c PlutoidAppConfig) FeedConfig() feed.Config {
	return feed.Config{
		PageLimit:     c.FEED_PAGE_LIMIT,
		JoinTimeout:   time.Duration(c.JOIN_TIMEOUT_MS) * time.Millisecond,
		TrendingTTL:   time.Duration(c.TRENDING_TTL_SECOND) * time.Second,
		DedupeViews:   c.DEDUPE_VIEWS,
		ScanBatchSize: c.SCAN_BATCH_SIZE,
	}
}
