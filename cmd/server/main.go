package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/plutoid/plutoid/app_config"
	"github.com/plutoid/plutoid/cache"
	"github.com/plutoid/plutoid/docstore"
	"github.com/plutoid/plutoid/feed"
	"github.com/plutoid/plutoid/server"
	"github.com/plutoid/plutoid/server/middlewares"
	"github.com/plutoid/plutoid/utils"
	"github.com/plutoid/plutoid/utils/dotenv"
	. "github.com/plutoid/plutoid/utils/flag"
	. "github.com/plutoid/plutoid/utils/log"
	"github.com/plutoid/plutoid/views"
	gintrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gin-gonic/gin"
)

func cleanup() {
	utils.CloseProfiler()
	utils.CloseTracer()
	Log.Info("api server shutdown")
}

func trendingCache(ctx context.Context) feed.TrendingCache {
	if os.Getenv("REDIS_HOST") == "" {
		return cache.NewMemoryTrendingCache()
	}
	c, err := cache.GetRedisTrendingCache(ctx)
	if err != nil {
		Log.WithError(err).Warn("redis unavailable, caching trending hashtags in memory")
		return cache.NewMemoryTrendingCache()
	}
	return c
}

func main() {
	flag.Parse()
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
	InitLogger()
	utils.StartTracer()
	utils.StartProfiler()
	defer cleanup()

	appConfig, err := app_config.ParsePlutoidAppConfig(AppConfigPath)
	if err != nil {
		Log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := docstore.Open(ctx, appConfig.STORE_DRIVER, feed.Collections...)
	if err != nil {
		Log.Fatal(err)
	}
	defer store.Close(context.Background())

	metrics := utils.NewDogStatsdClient()
	agg := feed.NewAggregator(store, appConfig.FeedConfig(),
		feed.WithTrendingCache(trendingCache(ctx)),
		feed.WithStatsd(metrics),
	)

	eventbus := views.NewEventBus()
	tracker := views.NewTracker(views.TrackerConfig{Name: ViewTracker}, eventbus, eventbus, agg, metrics)
	engine := views.NewEngine([]views.Module{tracker}, ctx, eventbus)
	engine.Start()
	defer engine.Shutdown()

	// Default With the Logger and Recovery middleware already attached
	router := gin.Default()
	router.Use(cors.Default())
	router.Use(gintrace.Middleware(ServiceName))
	if ByPassAuth {
		router.Use(middlewares.DevViewer())
	} else {
		verifier, err := middlewares.Setup(ctx)
		if err != nil {
			Log.Fatalf("fail to setup token verification: %s", err.Error())
		}
		router.Use(middlewares.Viewer(verifier))
	}
	server.NewHandler(agg, tracker).Register(router)

	srv := &http.Server{Addr: appConfig.LISTEN_ADDR, Handler: router}
	go func() {
		Log.Infof("api server starts up on %s", appConfig.LISTEN_ADDR)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			Log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		Log.WithError(err).Warn("http server shutdown")
	}
}
