package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/tnicklin/dreamshop/clock"
	"github.com/tnicklin/dreamshop/config"
	"github.com/tnicklin/dreamshop/discord"
	"github.com/tnicklin/dreamshop/fal"
	"github.com/tnicklin/dreamshop/listingsync"
	"github.com/tnicklin/dreamshop/logger"
	"github.com/tnicklin/dreamshop/objectstore"
	"github.com/tnicklin/dreamshop/pipeline"
	"github.com/tnicklin/dreamshop/shopify"
	"github.com/tnicklin/dreamshop/store"
	"github.com/tnicklin/dreamshop/vision"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	params, err := build()
	if err != nil {
		log.Fatal(err)
	}

	if err = run(params); err != nil {
		log.Fatal(err)
	}
}

func build() (runParams, error) {
	cfg, err := config.LoadEnvironment(".env", "config/config.yaml", "config/secrets.yaml")
	if err != nil {
		return runParams{}, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return runParams{}, fmt.Errorf("initialize logger: %w", err)
	}

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return runParams{}, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent

	var (
		clk     clock.Clock = clock.System()
		ntpSync *clock.NTPClock
	)
	if cfg.Clock.Server != "" {
		ntpSync = clock.NewNTP(cfg.Clock, appLogger.With("component", "clock"))
		clk = ntpSync
	}

	st := store.NewSQLiteStore(store.Params{
		Config: cfg.Store,
		Clock:  clk,
		Logger: appLogger.With("component", "store"),
	})

	generator := fal.New(fal.Params{
		Config: cfg.FAL,
		Logger: appLogger.With("component", "fal"),
	})

	uploader, err := objectstore.New(objectstore.Params{
		Config: cfg.Storage,
		Clock:  clk,
		Logger: appLogger.With("component", "objectstore"),
	})
	if err != nil {
		return runParams{}, fmt.Errorf("create object store client: %w", err)
	}

	catalog := shopify.New(shopify.Params{
		Config: cfg.Shopify,
		Logger: appLogger.With("component", "shopify"),
	})

	// A nil Tagger disables tagging; keep it an untyped nil.
	var tagger vision.Tagger
	if cfg.Vision.Enabled() {
		gemini, err := vision.NewGemini(context.Background(), vision.Params{
			Config: cfg.Vision,
			Logger: appLogger.With("component", "vision"),
		})
		if err != nil {
			return runParams{}, fmt.Errorf("create gemini tagger: %w", err)
		}
		tagger = gemini
	}

	dreams := pipeline.New(pipeline.Params{
		Config:    cfg.Pipeline,
		Generator: generator,
		Uploader:  uploader,
		Catalog:   catalog,
		Tagger:    tagger,
		Recorder:  st,
		Clock:     clk,
		Logger:    appLogger.With("component", "pipeline"),
	})

	poller := listingsync.New(listingsync.Params{
		Config:  cfg.Sync,
		Ledger:  st,
		Catalog: catalog,
		Logger:  appLogger.With("component", "listingsync"),
	})

	discordClient, err := discord.New(discord.Params{
		Config:   cfg.Discord,
		Session:  session,
		Pipeline: dreams,
		Ledger:   st,
		Catalog:  catalog,
		Syncer:   poller,
		Logger:   appLogger.With("component", "discord"),
	})
	if err != nil {
		return runParams{}, fmt.Errorf("create discord client: %w", err)
	}

	return runParams{
		Config:        cfg,
		Logger:        appLogger,
		Session:       session,
		Store:         st,
		Clock:         ntpSync,
		Sync:          poller,
		DiscordClient: discordClient,
	}, nil
}

type runParams struct {
	Config        *config.AppConfig
	Logger        logger.Logger
	Session       *discordgo.Session
	Store         *store.SQLiteStore
	Clock         *clock.NTPClock
	Sync          listingsync.Syncer
	DiscordClient discord.Discord
}

// run starts all components and runs the application until shutdown.
func run(p runParams) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer p.Logger.Sync()

	if err := p.Store.Open(ctx); err != nil {
		return fmt.Errorf("open listing store: %w", err)
	}

	if err := p.Store.RestoreFromDisk(ctx, p.Config.Store.Path); err != nil {
		p.Logger.WarnW("restore from disk", "error", err)
	}

	if err := p.Session.Open(); err != nil {
		return fmt.Errorf("open discord connection: %w", err)
	}
	defer p.Session.Close()

	if err := p.DiscordClient.Start(ctx); err != nil {
		return fmt.Errorf("start discord client: %w", err)
	}
	p.Logger.InfoW("dreamshop started", "guild_id", p.Config.Discord.GuildID)

	g, gctx := errgroup.WithContext(ctx)

	if p.Clock != nil {
		g.Go(func() error { return p.Clock.Run(gctx) })
	}

	if !p.Config.Sync.Disabled {
		if err := p.Sync.Start(gctx); err != nil {
			return fmt.Errorf("start listing sync: %w", err)
		}
		g.Go(func() error {
			<-gctx.Done()
			p.Sync.Stop()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err := g.Wait()
	p.Logger.InfoW("shutting down")

	if stopErr := p.DiscordClient.Stop(); stopErr != nil {
		p.Logger.ErrorW("stop discord client", "error", stopErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if shutdownErr := p.Store.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	return err
}
