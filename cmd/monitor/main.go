package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/auth"
	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/browser"
	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/config"
	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/db"
	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/domain"
	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/monitor"
	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/notifier"
	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/scraper"
	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/translator"
)

// Opts with all CLI options
type Opts struct {
	Config    string `short:"c" long:"config" env:"CONFIG" default:"config.yml" description:"config file"`
	Mode      string `short:"m" long:"mode" env:"MODE" default:"daemon" choice:"once" choice:"daemon" description:"run one cycle or loop forever"`
	Stats     bool   `long:"stats" description:"print monitoring statistics and exit"`
	Days      int    `long:"days" default:"7" description:"statistics window in days"`
	TestEmail bool   `long:"test-email" description:"send a test notification and exit"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", opts.Config, err)
		os.Exit(1)
	}

	setupLog(opts.Debug, opts.NoColor, cfg.Auth.Password, cfg.Email.Password, cfg.Translation.APIKey)
	log.Printf("[INFO] starting news monitor version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, cfg, opts); err != nil {
		log.Printf("[ERROR] %v", err)
		cancel()
		os.Exit(1)
	}
	cancel()
	log.Print("[INFO] shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, opts Opts) error {
	store, err := db.New(db.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	dispatcher := notifier.New(cfg.Email, notifier.NewSMTPSender(cfg.Email))

	switch {
	case opts.Stats:
		return printStats(ctx, store, opts.Days)
	case opts.TestEmail:
		log.Printf("[INFO] sending test email to %v", cfg.Email.Recipients)
		return dispatcher.SendTestEmail(ctx)
	}

	var trans monitor.Translator
	if cfg.Translation.Enabled {
		trans = translator.New(translator.NewOpenAIService(cfg.Translation), cfg.Translation)
	}

	scr := scraper.New(cfg.Site, cfg.Scraping, browser.NewHTTPFactory(cfg.Monitoring.RequestTimeout))
	authFactory := func(br browser.Browser) monitor.Authenticator {
		return auth.New(cfg.Auth, cfg.Site, br)
	}

	m := monitor.New(*cfg, store, scr, trans, dispatcher, authFactory)

	if opts.Mode == "once" {
		stats := m.RunOnce(ctx)
		if stats.Status == domain.RunError {
			return fmt.Errorf("cycle failed: %s", stats.ErrorMessage)
		}
		return nil
	}
	return m.RunDaemon(ctx)
}

func printStats(ctx context.Context, store *db.DB, days int) error {
	stats, err := store.Stats(ctx, days)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}
	total, pending, err := store.ArticleCounts(ctx)
	if err != nil {
		return fmt.Errorf("count articles: %w", err)
	}

	fmt.Printf("monitoring statistics, last %d days:\n", days)
	fmt.Printf("  runs:            %d (%d successful, %.1f%%)\n", stats.TotalRuns, stats.SuccessfulRuns, stats.SuccessRate*100)
	fmt.Printf("  new articles:    %d\n", stats.TotalNewArticles)
	fmt.Printf("  avg cycle time:  %.1fs\n", stats.AvgExecutionTime)
	if !stats.LastCheck.IsZero() {
		fmt.Printf("  last check:      %s\n", stats.LastCheck.Format(time.RFC1123))
	}
	fmt.Printf("  articles stored: %d (%d pending notification)\n", total, pending)
	return nil
}

func setupLog(dbg, noColor bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	if !noColor {
		colorizer := lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	}

	secrets := make([]string, 0, len(secs))
	for _, s := range secs {
		if s != "" {
			secrets = append(secrets, s)
		}
	}
	if len(secrets) > 0 {
		logOpts = append(logOpts, lgr.Secret(secrets...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
