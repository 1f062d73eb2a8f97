package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"

	"github.com/vulnwatch/kevsync/config"
	"github.com/vulnwatch/kevsync/kevsync"
	"github.com/vulnwatch/kevsync/store/arango"
	"github.com/vulnwatch/kevsync/utils"
)

var (
	configPath  = flag.String("config", "kevsync.yaml", "path to the configuration file")
	feedURL     = flag.String("feed-url", "", "override the KEV feed URL")
	schemaURL   = flag.String("schema-url", "", "override the KEV schema URL or local schema path")
	concurrency = flag.Int("concurrency", 0, "override the number of concurrent store writes")
)

// Exit status: 0 on a clean run, 2 when the run completed but some
// documents failed to apply, 1 on a stage-fatal failure.
func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	cfg, err := config.Load(afero.NewOsFs(), *configPath)
	if err != nil {
		log.Printf("config error: %v", err)
		return 1
	}
	if *feedURL != "" {
		cfg.FeedURL = *feedURL
	}
	if *schemaURL != "" {
		cfg.SchemaURL = *schemaURL
	}
	if *concurrency > 0 {
		cfg.Concurrency = *concurrency
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("connecting to document store at %s", utils.RedactURL(cfg.Store.URL))
	st, err := arango.New(ctx, arango.Config{
		URL:        cfg.Store.URL,
		User:       cfg.Store.User,
		Password:   cfg.Store.Password,
		Database:   cfg.Store.Database,
		Collection: cfg.Store.Collection,
	})
	if err != nil {
		log.Printf("store error: %v", err)
		return 1
	}
	defer st.Close()

	syncer := kevsync.New(st,
		kevsync.WithFeedURL(cfg.FeedURL),
		kevsync.WithSchemaURL(cfg.SchemaURL),
		kevsync.WithRetry(cfg.Retry),
		kevsync.WithConcurrency(cfg.Concurrency),
	)

	result, err := syncer.Do(ctx)
	if err != nil {
		log.Printf("sync error: %v", err)
		return 1
	}
	if len(result.Failures) > 0 {
		log.Printf("sync completed with %d apply failures", len(result.Failures))
		return 2
	}
	return 0
}
