// Package app wires configuration, storage, the classifier and the HTTP
// transport into a running service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/slack-go/slack"
	"golang.org/x/sync/errgroup"

	"dmvagent/internal/catalog"
	"dmvagent/internal/config"
	"dmvagent/internal/digest"
	"dmvagent/internal/extract"
	"dmvagent/internal/httpx"
	"dmvagent/internal/integrations/llm"
	"dmvagent/internal/intent"
	"dmvagent/internal/ledger"
	"dmvagent/internal/metrics"
	"dmvagent/internal/notify"
	"dmvagent/internal/storage"
	"dmvagent/internal/storage/postgres"
	"dmvagent/internal/storage/sqlite"
	httptransport "dmvagent/internal/transport/http"
	"dmvagent/internal/workflow"
)

const shutdownTimeout = 15 * time.Second

func Main() {
	cfg := config.LoadConfig()
	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	log.Printf(
		"Config loaded. Listen=%s DBDriver=%s LLMProvider=%s LLMModel=%s ClassifyRetries=%d MaxUploadBytes=%d Slack=%t Kafka=%t Timezone=%s ExternalHTTPTimeout=%s",
		cfg.ListenAddr,
		cfg.DBDriver,
		cfg.LLMProvider,
		cfg.LLMModel,
		cfg.ClassifyRetries,
		cfg.MaxUploadBytes,
		cfg.SlackConfigured(),
		cfg.KafkaConfigured(),
		cfg.Timezone,
		appliedHTTPTimeout,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx, cfg); err != nil {
		log.Fatalf("Service error: %v", err)
	}
	log.Println("Service stopped")
}

// Run serves until ctx is cancelled or the listener fails.
func Run(ctx context.Context, cfg config.Config) error {
	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}
	if dups := cat.Duplicates(); len(dups) > 0 {
		log.Printf("Catalog services listed under more than one ticket type, first wins: %v", dups)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	provider, err := llm.NewProvider(llm.ProviderConfig{
		Provider:      cfg.LLMProvider,
		Model:         cfg.LLMModel,
		AnthropicKey:  cfg.AnthropicAPIKey,
		OpenAIKey:     cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	})
	if err != nil {
		return err
	}
	log.Printf("Classifier provider=%s model=%s", provider.Name(), provider.Model())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var slackAPI *slack.Client
	var notifiers notify.Multi
	if cfg.SlackConfigured() {
		slackAPI = slack.New(cfg.SlackBotToken, slack.OptionHTTPClient(httpx.ExternalHTTPClient()))
		notifiers = append(notifiers, notify.NewSlackNotifier(slackAPI, cfg.SlackChannelID))
	}
	if cfg.KafkaConfigured() {
		publisher := notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer publisher.Close()
		notifiers = append(notifiers, publisher)
	}

	intents := intent.NewStore(store)
	wf := workflow.New(workflow.Deps{
		Catalog:         cat,
		Intents:         intents,
		Extractor:       extract.New(cfg.MaxExtractedChars),
		Classifier:      llm.NewClassifier(provider, cfg.LLMMaxTokens, cfg.Temperature()),
		Ledger:          ledger.New(store),
		Notifier:        notifiers,
		Metrics:         m,
		ClassifyRetries: cfg.ClassifyRetries,
		RetryInterval:   cfg.ClassifyRetryInterval(),
	})

	router := httptransport.NewRouter(httptransport.NewHandler(wf, cfg.MaxUploadBytes), reg)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if slackAPI != nil {
		if err := digest.StartScheduler(gctx, cfg.DigestSchedule, cfg.Location, store, slackAPI, cfg.SlackChannelID); err != nil {
			return err
		}
	}
	g.Go(func() error {
		log.Printf("Listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Println("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		cat, err := catalog.Default()
		if err != nil {
			return nil, fmt.Errorf("load built-in catalog: %w", err)
		}
		log.Printf("Catalog loaded (built-in) jurisdictions=%v", cat.Jurisdictions())
		return cat, nil
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	log.Printf("Catalog loaded from %s jurisdictions=%v", path, cat.Jurisdictions())
	return cat, nil
}

func openStore(ctx context.Context, cfg config.Config) (storage.SessionStore, error) {
	switch cfg.DBDriver {
	case "postgres":
		store, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to init postgres: %w", err)
		}
		log.Println("Database initialized (postgres)")
		return store, nil
	default:
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to init database: %w", err)
		}
		log.Printf("Database initialized at %s", cfg.DBPath)
		return store, nil
	}
}
