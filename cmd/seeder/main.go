// seeder fills the configured document store with a small demo community so
// the api server has something to serve in development.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/plutoid/plutoid/app_config"
	"github.com/plutoid/plutoid/docstore"
	"github.com/plutoid/plutoid/feed"
	"github.com/plutoid/plutoid/model"
	"github.com/plutoid/plutoid/utils/dotenv"
	. "github.com/plutoid/plutoid/utils/flag"
	. "github.com/plutoid/plutoid/utils/log"
)

var (
	numPosts = flag.Int("posts", 20, "number of posts to create")
)

var captions = []string{
	"sunrise over the bay #nature #morning",
	"new recipe turned out great #food",
	"weekend hike #nature",
	"reading list for the summer #books",
	"late night coding #golang",
}

func main() {
	flag.Parse()
	ServiceName = Seeder
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
	InitLogger()

	appConfig, err := app_config.ParsePlutoidAppConfig(AppConfigPath)
	if err != nil {
		Log.Fatal(err)
	}
	ctx := context.Background()
	store, err := docstore.Open(ctx, appConfig.STORE_DRIVER, feed.Collections...)
	if err != nil {
		Log.Fatal(err)
	}
	defer store.Close(ctx)

	tick := time.Now().Add(-time.Duration(*numPosts) * time.Minute)
	agg := feed.NewAggregator(store, appConfig.FeedConfig(), feed.WithClock(func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}))

	uids := []string{}
	for i, name := range []string{"ada", "grace", "linus"} {
		uid := fmt.Sprintf("seed-user-%d", i)
		_, err := agg.CreateUser(ctx, model.User{Uid: uid, FirstName: name, UserName: name, Email: name + "@plutoid.app"})
		if err != nil && !errors.Is(err, feed.ErrUserExists) && !errors.Is(err, feed.ErrUserNameTaken) {
			Log.Fatal(err)
		}
		uids = append(uids, uid)
	}

	for i := 0; i < *numPosts; i++ {
		author := uids[i%len(uids)]
		post, err := agg.CreatePost(ctx, author, model.NewPostInput{TextCaption: captions[i%len(captions)]})
		if err != nil {
			Log.Fatal(err)
		}
		fan := uids[(i+1)%len(uids)]
		if _, err := agg.ToggleLike(ctx, fan, post.Id); err != nil {
			Log.Fatal(err)
		}
		if _, err := agg.CreateComment(ctx, fan, post.Id, "nice one"); err != nil {
			Log.Fatal(err)
		}
		if err := agg.RecordView(ctx, fan, post.Id); err != nil {
			Log.Fatal(err)
		}
	}
	Log.Infof("seeded %d users and %d posts", len(uids), *numPosts)
}
