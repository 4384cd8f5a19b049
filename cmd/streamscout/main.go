package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/robfig/cron/v3"

	"github.com/voyagen/streamscout/internal/cache"
	"github.com/voyagen/streamscout/internal/checker"
	"github.com/voyagen/streamscout/internal/config"
	"github.com/voyagen/streamscout/internal/fetcher"
	"github.com/voyagen/streamscout/internal/server"
	"github.com/voyagen/streamscout/internal/service"
	"github.com/voyagen/streamscout/internal/session"
	"github.com/voyagen/streamscout/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Optional config file path (YAML); else use env")
	scan := flag.String("scan", "", "Parse a playlist URL or file, print it and exit")
	check := flag.Bool("check", false, "With -scan: check every channel before printing")
	onlineOnly := flag.Bool("online-only", false, "With -scan: print only online channels")
	asJSON := flag.Bool("json", false, "With -scan: print the structured export instead of M3U")
	out := flag.String("out", "", "With -scan: write to this file instead of stdout")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if cfg.LogFile != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     7, // days
			Compress:   true,
		}))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f := fetcher.New(cfg.Timeout, cfg.UserAgent, cfg.Proxies)
	chk, err := newChecker(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "checker: %v\n", err)
		os.Exit(1)
	}

	if *scan != "" {
		opts := scanOptions{check: *check, onlineOnly: *onlineOnly, asJSON: *asJSON, out: *out}
		if err := runScan(ctx, f, chk, *scan, opts); err != nil {
			fmt.Fprintf(os.Stderr, "scan: %v\n", err)
			os.Exit(1)
		}
		return
	}

	deps := server.Deps{
		Config:   cfg,
		Sessions: session.NewRegistry(cfg.SessionTTL),
		Fetcher:  f,
		Checker:  chk,
	}

	if cfg.HasDatabase() {
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "db: %v\n", err)
			os.Exit(1)
		}
		defer pg.Close()

		// Connect to Redis if REDIS_URL is configured.
		var rds *cache.Redis
		var appStore store.Store = pg
		if cfg.RedisURL != "" {
			rds, err = cache.New(cfg.RedisURL)
			if err != nil {
				fmt.Fprintf(os.Stderr, "redis: %v\n", err)
				os.Exit(1)
			}
			defer rds.Close()

			if err := rds.Ping(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "redis ping: %v\n", err)
				os.Exit(1)
			}
			appStore = store.NewCachedStore(pg, rds)
			fmt.Fprintln(os.Stderr, "redis connected (caching and check queue enabled)")
		} else {
			fmt.Fprintln(os.Stderr, "redis disabled (REDIS_URL not set); source checks run inline")
		}

		d := &service.Dispatcher{Store: appStore, Fetcher: f, Checker: chk, Redis: rds}
		go d.RunWorker(ctx)

		if cfg.CheckSchedule != "" {
			c := cron.New()
			if _, err := c.AddFunc(cfg.CheckSchedule, func() { d.CheckEnabledSources(ctx) }); err != nil {
				fmt.Fprintf(os.Stderr, "schedule: %v\n", err)
				os.Exit(1)
			}
			c.Start()
			defer c.Stop()
			log.Printf("scheduled source checks: %s", cfg.CheckSchedule)
		}

		deps.Store = appStore
		deps.Dispatcher = d
	} else {
		fmt.Fprintln(os.Stderr, "sources disabled (DATABASE_URL not set); sessions only")
	}

	srv := server.New(deps)
	if err := srv.ListenAndServe(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func newChecker(cfg *config.Config) (*checker.Checker, error) {
	strategy, err := checker.StrategyByName(cfg.CheckMode)
	if err != nil {
		return nil, err
	}
	var prober checker.Prober = checker.NewHTTPProber(cfg.UserAgent)
	if cfg.CheckVerifyHLS {
		prober = checker.NewManifestProber(checker.NewHTTPProber(cfg.UserAgent))
	}
	return checker.New(
		checker.WithBatchSize(cfg.CheckBatchSize),
		checker.WithTimeout(cfg.CheckTimeout),
		checker.WithStrategy(strategy),
		checker.WithProber(prober),
	), nil
}

type scanOptions struct {
	check      bool
	onlineOnly bool
	asJSON     bool
	out        string
}

// runScan loads one playlist into a throwaway session and prints it.
func runScan(ctx context.Context, f *fetcher.Fetcher, chk *checker.Checker, target string, opts scanOptions) error {
	sess := session.New("cli", target)
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		if err := sess.LoadURL(ctx, f, target); err != nil {
			return err
		}
	} else {
		raw, err := os.ReadFile(target)
		if err != nil {
			return fmt.Errorf("read playlist: %w", err)
		}
		if err := sess.LoadBytes(raw); err != nil {
			return err
		}
	}

	if opts.check {
		sum, err := sess.Check(ctx, chk)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "checked %d channels in %s: %d online, %d offline\n",
			sum.Total, sum.Duration.Round(time.Millisecond), sum.Online, sum.Offline)
	} else {
		info := sess.Summary()
		fmt.Fprintf(os.Stderr, "parsed %d channels in %d groups\n", info.Total, info.Groups)
	}

	w := io.Writer(os.Stdout)
	if opts.out != "" {
		file, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer file.Close()
		w = file
	}

	if opts.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sess.Export(time.Now()))
	}
	_, err := io.WriteString(w, sess.ExportM3U(opts.onlineOnly))
	return err
}
