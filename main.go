package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/skyward-data/quality.report/internal/db"
	"github.com/skyward-data/quality.report/internal/ingestion"
	"github.com/skyward-data/quality.report/internal/quality"
	"github.com/skyward-data/quality.report/internal/quality/pipeline"
	"github.com/skyward-data/quality.report/internal/version"
)

var (
	devMode    = flag.Bool("dev", false, "Run in dev mode (process fixtures instead of live input)")
	listen     = flag.String("listen", ":8080", "Listen address")
	dbPath     = flag.String("db", "quality_data.db", "Path to the sqlite database")
	configPath = flag.String("config", "", "Path to an engine config JSON file (defaults apply when empty)")
	fixtures   = flag.String("fixtures", "fixtures.json", "States payload processed in dev mode")
	sourceURL  = flag.String("source", "", "States feed URL to poll (empty disables polling)")
	pollEvery  = flag.Duration("poll", 10*time.Second, "Feed polling / fixtures processing interval")
)

// envOverrides are process-level settings that can be set from the
// environment instead of flags. Flags win when both are present.
type envOverrides struct {
	Listen     string `env:"QUALITY_LISTEN"`
	DBPath     string `env:"QUALITY_DB"`
	ConfigPath string `env:"QUALITY_CONFIG"`
	SourceURL  string `env:"QUALITY_SOURCE"`
}

func main() {
	flag.Parse()

	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		log.Fatalf("parsing environment: %v", err)
	}
	applyEnvDefault(listen, overrides.Listen, "listen")
	applyEnvDefault(dbPath, overrides.DBPath, "db")
	applyEnvDefault(configPath, overrides.ConfigPath, "config")
	applyEnvDefault(sourceURL, overrides.SourceURL, "source")

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	log.Printf("quality.report %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	// Invalid configuration is fatal here; the engine never degrades
	// silently on a bad config.
	cfg := quality.DefaultEngineConfig()
	if *configPath != "" {
		var err error
		cfg, err = quality.LoadEngineConfig(*configPath)
		if err != nil {
			log.Fatalf("loading engine config: %v", err)
		}
	} else if err := cfg.Validate(); err != nil {
		log.Fatalf("default engine config invalid: %v", err)
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	if err := database.MigrateUp(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	metricsStore := db.NewMetricsStore(database)
	quarantineStore := db.NewQuarantineStore(database)

	orch, err := pipeline.NewOrchestrator(cfg,
		pipeline.WithSinks(db.NewAcceptedStore(database), quarantineStore, metricsStore),
		pipeline.WithAlertFunc(func(reason string, m quality.BatchQualityMetrics) {
			log.Printf("ALERT batch %s: %s", m.BatchID, reason)
		}),
	)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	parser := ingestion.NewParser()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Periodically evict idle entries from the previous-position map so it
	// stays bounded over long uptimes.
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				if removed := orch.Positions().Evict(now); removed > 0 {
					log.Printf("evicted %d idle position entries", removed)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Live polling against an upstream states feed.
	if *sourceURL != "" {
		fetcher := ingestion.NewFetcher(*sourceURL, nil, parser)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fetcher.Poll(ctx, *pollEvery, func(ctx context.Context, batch []quality.RawStateVector) {
				result, err := orch.ProcessBatch(ctx, batch)
				if err != nil {
					log.Printf("failed to process feed batch: %v", err)
					return
				}
				log.Printf("processed feed batch %s: %d accepted, %d quarantined",
					result.BatchID, len(result.Accepted), len(result.Quarantined))
			})
			log.Print("feed poller terminated")
		}()
	}

	// Dev mode replays the fixtures payload on a timer in place of a live
	// ingestion collaborator.
	if *devMode {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(*pollEvery)
			defer ticker.Stop()
			for {
				batch, err := parser.ReadBatchFile(*fixtures)
				if err != nil {
					log.Printf("failed to read fixtures: %v", err)
				} else {
					result, err := orch.ProcessBatch(ctx, batch)
					if err != nil {
						log.Printf("failed to process fixtures batch: %v", err)
					} else {
						log.Printf("processed fixtures batch %s: %d accepted, %d quarantined",
							result.BatchID, len(result.Accepted), len(result.Quarantined))
					}
				}
				select {
				case <-ticker.C:
				case <-ctx.Done():
					log.Print("fixtures routine terminated")
					return
				}
			}
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (accessible only in dev mode or
		// over Tailscale)
		database.AttachAdminRoutes(mux)

		apiMux := NewServer(orch, parser, quarantineStore, metricsStore).ServeMux()
		mux.Handle("/api/", http.StripPrefix("/api", apiMux))
		mux.Handle("/", http.HandlerFunc(homeHandler))

		server := &http.Server{
			Addr:    *listen,
			Handler: mux,
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

func applyEnvDefault(dst *string, value, name string) {
	if value == "" {
		return
	}
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	if !set {
		*dst = value
	}
}
