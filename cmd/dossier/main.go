package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/snarg/call-dossier/internal/aggregate"
	"github.com/snarg/call-dossier/internal/alert"
	"github.com/snarg/call-dossier/internal/audit"
	"github.com/snarg/call-dossier/internal/broker"
	"github.com/snarg/call-dossier/internal/config"
	"github.com/snarg/call-dossier/internal/correlate"
	"github.com/snarg/call-dossier/internal/event"
	"github.com/snarg/call-dossier/internal/httpapi"
	"github.com/snarg/call-dossier/internal/ingestion"
	"github.com/snarg/call-dossier/internal/metrics"
	"github.com/snarg/call-dossier/internal/sentiment"
	"github.com/snarg/call-dossier/internal/sentimentproj"
	"github.com/snarg/call-dossier/internal/storage"
	"github.com/snarg/call-dossier/internal/store"
	"github.com/snarg/call-dossier/internal/transcriptproj"
	"github.com/snarg/call-dossier/internal/voc"
	"github.com/snarg/call-dossier/internal/vocproj"
)

// version, commit, and buildTime are injected at build time via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// runner is anything this process keeps alive until shutdown: a broker
// consumer loop wrapped in the same Run/Stop shape.
type runner struct {
	name string
	run  func(ctx context.Context) error
	stop func(ctx context.Context) error
}

func main() {
	var overrides config.Overrides
	var stages string
	var showVersion bool
	flag.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default: .env)")
	flag.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address (overrides HTTP_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "PostgreSQL connection URL (overrides DATABASE_URL)")
	flag.StringVar(&overrides.KafkaBrokers, "kafka-brokers", "", "Comma-separated Kafka broker list (overrides KAFKA_BROKERS)")
	flag.StringVar(&stages, "stages", "all", "Comma-separated stage set to run: ingestion,sentiment,voc,transcriptproj,sentimentproj,vocproj,audit,aggregate,alert,all")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s (commit=%s, built=%s)\n", version, commit, buildTime)
		os.Exit(0)
	}

	startTime := time.Now()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("invalid config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().
		Str("version", version).
		Str("commit", commit).
		Str("built", buildTime).
		Str("stages", stages).
		Msg("call-dossier starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wantStage := stageSelector(stages)

	// Database
	dbLog := log.With().Str("component", "store").Logger()
	st, err := store.Connect(ctx, cfg.DatabaseURL, dbLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer st.Pool.Close()

	if err := runMigrations(cfg.DatabaseURL, cfg.MigrationsDir, log); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}

	if err := audit.SeedRulesFromFile(ctx, st, cfg.RuleFile); err != nil {
		log.Warn().Err(err).Str("file", cfg.RuleFile).Msg("failed to seed compliance rules from file")
	}

	brokers := strings.Split(cfg.KafkaBrokers, ",")
	dlqProducer := broker.NewProducer(brokers, log.With().Str("component", "dlq-producer").Logger())
	defer dlqProducer.Close()
	producer := broker.NewProducer(brokers, log.With().Str("component", "producer").Logger())
	defer producer.Close()

	// Shared redis client: the metrics aggregator always needs one, and the
	// correlation engine needs one too when CORRELATOR_BACKEND=redis. The
	// client connects lazily, so building it unconditionally costs nothing
	// when a stage set doesn't exercise it.
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer redisClient.Close()

	var runners []runner
	var background []func()

	// Ingestion (C8): audio storage + HTTP upload entrypoint, wired into
	// its own admin-plane mux rather than a consumer loop since it's the
	// pipeline's one synchronous, request-driven stage.
	if wantStage("ingestion") {
		audioStore, err := storage.New(cfg, log.With().Str("component", "storage").Logger())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize audio storage")
		}
		log.Info().Str("type", audioStore.Type()).Msg("audio storage initialized")

		ingestor := ingestion.NewIngestor(audioStore, st, producer, log.With().Str("component", "ingestion").Logger())
		srv := httpapi.NewServer(cfg.HTTPAddr, ingestor, st, log.With().Str("component", "http").Logger())
		runners = append(runners, runner{
			name: "ingestion-http",
			run: func(ctx context.Context) error {
				err := srv.ListenAndServe()
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			},
			stop: func(ctx context.Context) error { return srv.Shutdown(ctx) },
		})
	} else {
		// Still expose /healthz and /metrics even when this process only
		// runs background stages.
		adminSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: metrics.Mux(st)}
		runners = append(runners, runner{
			name: "admin-http",
			run: func(ctx context.Context) error {
				err := adminSrv.ListenAndServe()
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			},
			stop: func(ctx context.Context) error { return adminSrv.Shutdown(ctx) },
		})
	}

	// Analyzer collaborators (stubbed per spec, swappable behind the
	// Analyzer interface for a real model-backed implementation later).
	if wantStage("sentiment") {
		stage := sentiment.NewStage(sentiment.NewStubAnalyzer(), producer, log.With().Str("component", "sentiment").Logger())
		runners = append(runners, consumerRunner("sentiment", broker.ConsumerOptions{
			Brokers: brokers, GroupID: cfg.GroupSentimentProjector + "-analyzer", Topic: event.TopicCallsTranscribed,
			MaxRetries: cfg.ConsumerMaxRetries, RetryBase: cfg.ConsumerRetryBase, DrainPeriod: cfg.ConsumerDrainPeriod,
			Log: log,
		}, dlqProducer, stage.Handler()))
	}
	if wantStage("voc") {
		stage := voc.NewStage(voc.NewStubAnalyzer(), producer, log.With().Str("component", "voc").Logger())
		runners = append(runners, consumerRunner("voc", broker.ConsumerOptions{
			Brokers: brokers, GroupID: cfg.GroupVocProjector + "-analyzer", Topic: event.TopicCallsTranscribed,
			MaxRetries: cfg.ConsumerMaxRetries, RetryBase: cfg.ConsumerRetryBase, DrainPeriod: cfg.ConsumerDrainPeriod,
			Log: log,
		}, dlqProducer, stage.Handler()))
	}

	// Read-model projectors (C3).
	if wantStage("transcriptproj") {
		p := transcriptproj.NewProjector(st, log.With().Str("component", "transcriptproj").Logger())
		runners = append(runners, consumerRunner("transcriptproj", broker.ConsumerOptions{
			Brokers: brokers, GroupID: cfg.GroupTranscriptProjector, Topic: event.TopicCallsTranscribed,
			MaxRetries: cfg.ConsumerMaxRetries, RetryBase: cfg.ConsumerRetryBase, DrainPeriod: cfg.ConsumerDrainPeriod,
			Log: log,
		}, dlqProducer, p.Handler()))
	}
	if wantStage("sentimentproj") {
		p := sentimentproj.NewProjector(st, log.With().Str("component", "sentimentproj").Logger())
		runners = append(runners, consumerRunner("sentimentproj", broker.ConsumerOptions{
			Brokers: brokers, GroupID: cfg.GroupSentimentProjector, Topic: event.TopicCallsSentimentAnalyzed,
			MaxRetries: cfg.ConsumerMaxRetries, RetryBase: cfg.ConsumerRetryBase, DrainPeriod: cfg.ConsumerDrainPeriod,
			Log: log,
		}, dlqProducer, p.Handler()))
	}
	if wantStage("vocproj") {
		p := vocproj.NewProjector(st, log.With().Str("component", "vocproj").Logger())
		runners = append(runners, consumerRunner("vocproj", broker.ConsumerOptions{
			Brokers: brokers, GroupID: cfg.GroupVocProjector, Topic: event.TopicCallsVocAnalyzed,
			MaxRetries: cfg.ConsumerMaxRetries, RetryBase: cfg.ConsumerRetryBase, DrainPeriod: cfg.ConsumerDrainPeriod,
			Log: log,
		}, dlqProducer, p.Handler()))
	}

	// Correlation engine (C4) + compliance scorer (C5), fused into one
	// audit stage consuming all three upstream topics under a shared
	// consumer group so each partition's events stay ordered per call.
	if wantStage("audit") {
		auditLog := log.With().Str("component", "audit").Logger()
		expectedPhrases, err := audit.LoadExpectedPhrases(cfg.ExpectedPhrasesFile)
		if err != nil {
			log.Warn().Err(err).Str("file", cfg.ExpectedPhrasesFile).Msg("failed to load expected phrases")
		}

		var correlator correlate.Engine
		if cfg.CorrelatorBackend == "redis" {
			correlator = correlate.NewRedisCorrelator(redisClient, cfg.PartialTTL)
			auditLog.Info().Msg("correlation engine backed by redis")
		} else {
			memCorrelator := correlate.New(cfg.PartialTTL, func(callID string) {
				auditLog.Warn().Str("call_id", callID).Msg("pipeline gap: partial triple evicted before completion")
			})
			evictStop := make(chan struct{})
			background = append(background, func() { close(evictStop) })
			go memCorrelator.RunEvictionLoop(cfg.PartialTTL/2, evictStop)
			correlator = memCorrelator
		}

		scorer := audit.NewScorer(audit.ScorerConfig{
			ExpectedPhrases: expectedPhrases,
			EmpathyCues:     []string{"i understand", "i apologize", "i'm sorry", "let me help"},
			Weights: audit.Weights{
				Script:     cfg.ScriptWeight,
				Service:    cfg.ServiceWeight,
				Resolution: cfg.ResolutionWeight,
			},
			Thresholds: audit.Thresholds{Pass: cfg.PassThreshold, Fail: cfg.FailThreshold},
		}, audit.RuleLoader(st), auditLog)

		auditStage := audit.NewStage(correlator, scorer, st, producer, auditLog)
		runners = append(runners,
			consumerRunner("audit-transcript", broker.ConsumerOptions{
				Brokers: brokers, GroupID: cfg.GroupAuditCorrelator, Topic: event.TopicCallsTranscribed,
				MaxRetries: cfg.ConsumerMaxRetries, RetryBase: cfg.ConsumerRetryBase, DrainPeriod: cfg.ConsumerDrainPeriod, Log: log,
			}, dlqProducer, auditStage.TranscriptHandler()),
			consumerRunner("audit-sentiment", broker.ConsumerOptions{
				Brokers: brokers, GroupID: cfg.GroupAuditCorrelator, Topic: event.TopicCallsSentimentAnalyzed,
				MaxRetries: cfg.ConsumerMaxRetries, RetryBase: cfg.ConsumerRetryBase, DrainPeriod: cfg.ConsumerDrainPeriod, Log: log,
			}, dlqProducer, auditStage.SentimentHandler()),
			consumerRunner("audit-voc", broker.ConsumerOptions{
				Brokers: brokers, GroupID: cfg.GroupAuditCorrelator, Topic: event.TopicCallsVocAnalyzed,
				MaxRetries: cfg.ConsumerMaxRetries, RetryBase: cfg.ConsumerRetryBase, DrainPeriod: cfg.ConsumerDrainPeriod, Log: log,
			}, dlqProducer, auditStage.VocHandler()),
		)

		// Hot-reload RULE_FILE on write so an operator editing rules on
		// disk doesn't need a restart to take effect.
		if watcher, err := fsnotify.NewWatcher(); err == nil {
			if err := watcher.Add(cfg.RuleFile); err == nil {
				go watchRuleFile(ctx, watcher, st, cfg.RuleFile, auditLog)
				background = append(background, func() { watcher.Close() })
			} else {
				watcher.Close()
			}
		}
	}

	// Metrics aggregator (C6).
	if wantStage("aggregate") {
		aggLog := log.With().Str("component", "aggregate").Logger()

		var obs aggregate.Observer
		if cfg.AggregatorMode == "direct" {
			obs = aggregate.NewDirectAggregator(redisClient, st, cfg.DedupTTL, aggLog)
		} else {
			buffered := aggregate.NewBufferedAggregator(redisClient, st, cfg.DedupTTL, aggLog)
			flushStop := make(chan struct{})
			background = append(background, func() { close(flushStop) })
			go buffered.RunFlushLoop(ctx, cfg.FlushPeriod, flushStop)
			obs = buffered
		}
		aggStage := aggregate.NewStage(obs)
		runners = append(runners,
			consumerRunner("aggregate-sentiment", broker.ConsumerOptions{
				Brokers: brokers, GroupID: cfg.GroupAggregator, Topic: event.TopicCallsSentimentAnalyzed,
				MaxRetries: cfg.ConsumerMaxRetries, RetryBase: cfg.ConsumerRetryBase, DrainPeriod: cfg.ConsumerDrainPeriod, Log: log,
			}, dlqProducer, aggStage.SentimentHandler()),
			consumerRunner("aggregate-voc", broker.ConsumerOptions{
				Brokers: brokers, GroupID: cfg.GroupAggregator, Topic: event.TopicCallsVocAnalyzed,
				MaxRetries: cfg.ConsumerMaxRetries, RetryBase: cfg.ConsumerRetryBase, DrainPeriod: cfg.ConsumerDrainPeriod, Log: log,
			}, dlqProducer, aggStage.VocHandler()),
			consumerRunner("aggregate-audit", broker.ConsumerOptions{
				Brokers: brokers, GroupID: cfg.GroupAggregator, Topic: event.TopicCallsAudited,
				MaxRetries: cfg.ConsumerMaxRetries, RetryBase: cfg.ConsumerRetryBase, DrainPeriod: cfg.ConsumerDrainPeriod, Log: log,
			}, dlqProducer, aggStage.AuditHandler()),
		)
	}

	// Alert rule engine & dispatcher (C7).
	if wantStage("alert") {
		alertLog := log.With().Str("component", "alert").Logger()
		channels := map[string]alert.Channel{
			alert.ChannelEmail: alert.NewEmailChannel(alertLog),
		}
		if cfg.SlackToken != "" {
			channels[alert.ChannelChat] = alert.NewChatChannel(cfg.SlackToken, cfg.SlackChannel)
		}
		if cfg.WebhookURL != "" {
			channels[alert.ChannelWebhook] = alert.NewWebhookChannel(cfg.WebhookURL)
		}

		dispatcher := alert.NewDispatcher(st, alert.RecipientsConfig{
			Supervisor: cfg.SupervisorEmail,
			Manager:    cfg.ManagerEmail,
		}, channels, alertLog)

		alertCfg := alert.Config{
			ChurnThreshold:     cfg.ChurnThreshold,
			ChurnHighThreshold: cfg.ChurnHighThreshold,
			ComplianceFloor:    cfg.ComplianceFloor,
			EscalationAlerts:   cfg.EscalationAlerts,
		}
		criticalTopics := []string{"billing_dispute", "cancellation_threat", "legal_threat"}
		alertStage := alert.NewStage(dispatcher, alertCfg, criticalTopics)

		runners = append(runners,
			consumerRunner("alert-sentiment", broker.ConsumerOptions{
				Brokers: brokers, GroupID: cfg.GroupAlertDispatcher, Topic: event.TopicCallsSentimentAnalyzed,
				MaxRetries: cfg.ConsumerMaxRetries, RetryBase: cfg.ConsumerRetryBase, DrainPeriod: cfg.ConsumerDrainPeriod, Log: log,
			}, dlqProducer, alertStage.SentimentHandler()),
			consumerRunner("alert-voc", broker.ConsumerOptions{
				Brokers: brokers, GroupID: cfg.GroupAlertDispatcher, Topic: event.TopicCallsVocAnalyzed,
				MaxRetries: cfg.ConsumerMaxRetries, RetryBase: cfg.ConsumerRetryBase, DrainPeriod: cfg.ConsumerDrainPeriod, Log: log,
			}, dlqProducer, alertStage.VocHandler()),
			consumerRunner("alert-audit", broker.ConsumerOptions{
				Brokers: brokers, GroupID: cfg.GroupAlertDispatcher, Topic: event.TopicCallsAudited,
				MaxRetries: cfg.ConsumerMaxRetries, RetryBase: cfg.ConsumerRetryBase, DrainPeriod: cfg.ConsumerDrainPeriod, Log: log,
			}, dlqProducer, alertStage.AuditHandler()),
		)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(runners))
	for _, r := range runners {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.run(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", r.name, err)
			}
		}()
	}

	log.Info().Dur("startup_ms", time.Since(startTime)).Int("runners", len(runners)).Msg("call-dossier ready")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("runner exited with error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range runners {
		if err := r.stop(shutdownCtx); err != nil {
			log.Error().Err(err).Str("runner", r.name).Msg("shutdown error")
		}
	}
	for _, stopBG := range background {
		stopBG()
	}
	wg.Wait()

	log.Info().Msg("call-dossier stopped")
}

// consumerRunner adapts a broker.Consumer to the runner shape so the main
// goroutine can start and stop every stage uniformly.
func consumerRunner(name string, opts broker.ConsumerOptions, dlq *broker.Producer, handler broker.Handler) runner {
	c := broker.NewConsumer(opts, dlq)
	return runner{
		name: name,
		run:  func(ctx context.Context) error { return c.Run(ctx, handler) },
		stop: func(ctx context.Context) error { return c.Stop(ctx) },
	}
}

// stageSelector parses the -stages flag into a membership predicate.
// "all" (the default) runs every stage in one process; a deployment that
// wants one stage per pod passes a narrower comma-separated list.
func stageSelector(stages string) func(name string) bool {
	if stages == "" || stages == "all" {
		return func(string) bool { return true }
	}
	set := make(map[string]bool)
	for _, s := range strings.Split(stages, ",") {
		set[strings.TrimSpace(s)] = true
	}
	return func(name string) bool { return set[name] }
}

// runMigrations applies every pending migration under dir. migrate.ErrNoChange
// is not an error: it means the schema was already current.
func runMigrations(databaseURL, dir string, log zerolog.Logger) error {
	m, err := migrate.New("file://"+dir, databaseURL)
	if err != nil {
		return fmt.Errorf("open migrator: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			log.Warn().Err(srcErr).Msg("migration source close error")
		}
		if dbErr != nil {
			log.Warn().Err(dbErr).Msg("migration database close error")
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	log.Info().Msg("schema migrations applied")
	return nil
}

// watchRuleFile re-seeds compliance_rules whenever RULE_FILE changes on
// disk, until ctx is cancelled.
func watchRuleFile(ctx context.Context, watcher *fsnotify.Watcher, st *store.Store, path string, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := audit.SeedRulesFromFile(ctx, st, path); err != nil {
				log.Warn().Err(err).Msg("failed to reload rule file")
				continue
			}
			log.Info().Str("file", path).Msg("rule file reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("rule file watch error")
		}
	}
}
