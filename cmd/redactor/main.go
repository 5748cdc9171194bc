package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/docshield/redactor/internal/analysis"
	"github.com/docshield/redactor/internal/api"
	"github.com/docshield/redactor/internal/config"
	"github.com/docshield/redactor/internal/document/memdoc"
	"github.com/docshield/redactor/internal/lang"
	"github.com/docshield/redactor/internal/manager"
	"github.com/docshield/redactor/internal/metrics"
	"github.com/docshield/redactor/internal/notify"
	"github.com/docshield/redactor/internal/pdfproc"
	"github.com/docshield/redactor/internal/redact"
	"github.com/docshield/redactor/internal/storage"
	"github.com/docshield/redactor/internal/vision"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	dataDir    = flag.String("data", "", "Path to data directory")
	serverMode = flag.Bool("server", false, "Run the HTTP server")
	ruleSet    = flag.String("rules", "default", "Rule set name for file mode")
	outPath    = flag.String("out", "", "Output path for file mode")
	version    = "dev"
)

func main() {
	flag.Parse()

	if len(flag.Args()) > 0 && flag.Arg(0) == "version" {
		fmt.Printf("redactor version %s\n", version)
		return
	}

	cfg, err := config.Load(*configPath, *dataDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	app, err := buildApp(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer app.close()

	if *serverMode {
		runServer(cfg, app, logger)
		return
	}

	if len(flag.Args()) != 1 {
		fmt.Fprintln(os.Stderr, "usage: redactor [flags] <document>")
		fmt.Fprintln(os.Stderr, "       redactor -server")
		flag.PrintDefaults()
		os.Exit(2)
	}
	runFile(app, flag.Arg(0), logger)
}

// application bundles the wired service components.
type application struct {
	manager *manager.Manager
	jobs    *storage.JobStore
	metrics *metrics.Metrics
	config  *config.Config
}

func (a *application) close() {
	if a.jobs != nil {
		a.jobs.Close()
	}
}

func buildApp(cfg *config.Config, logger *zap.Logger) (*application, error) {
	rules, err := config.LoadRules(cfg.Rules.Path)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	mx := metrics.New()

	newAnalyzer := func(model string) (redact.Analyzer, error) {
		client := analysis.NewClient(analysis.ClientConfig{
			BaseURL:   cfg.Analysis.BaseURL,
			APIKey:    cfg.Analysis.APIKey,
			Model:     model,
			MaxTokens: cfg.Analysis.MaxCompletionTokens,
			Timeout:   time.Duration(cfg.Analysis.TimeoutSeconds) * time.Second,
		})
		orch, err := analysis.New(client, analysis.Options{
			Model:                 model,
			MaxConcurrentRequests: cfg.Analysis.MaxConcurrentRequests,
			MaxCompletionTokens:   cfg.Analysis.MaxCompletionTokens,
			MaxAttempts:           cfg.Analysis.MaxAttempts,
			SpendBudget:           cfg.Analysis.SpendBudget,
			OnRetry:               mx.RecordRetry,
		}, logger)
		if err != nil {
			return nil, err
		}
		return orch, nil
	}

	visionClient := vision.NewHTTPClient(vision.ClientConfig{
		Endpoint: cfg.Vision.Endpoint,
		APIKey:   cfg.Vision.APIKey,
		Timeout:  time.Duration(cfg.Vision.TimeoutSeconds) * time.Second,
	})

	registry, err := redact.NewDefaultRegistry(redact.Dependencies{
		NewAnalyzer: newAnalyzer,
		Vision:      visionClient,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build strategy registry: %w", err)
	}

	processor := pdfproc.NewPDFProcessor(
		memdoc.Opener{},
		registry,
		lang.NewDetector(),
		logger,
		pdfproc.WithMetrics(mx),
	)
	processors := pdfproc.NewProcessorRegistry()
	if err := processors.Register(processor); err != nil {
		return nil, err
	}

	artifacts, err := storage.NewFileStore(cfg.Storage.ArtifactsDir)
	if err != nil {
		return nil, fmt.Errorf("open artifact store: %w", err)
	}
	jobs, err := storage.OpenJobStore(cfg.Storage.BadgerPath)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhook(
			cfg.Notify.WebhookURL,
			time.Duration(cfg.Notify.TimeoutSeconds)*time.Second,
			logger,
		)
	}

	mgr := manager.New(
		processors,
		rules,
		storage.NewDefaultFactory(),
		artifacts,
		notifier,
		logger,
		manager.WithJobStore(jobs),
		manager.WithMetrics(mx),
	)

	return &application{manager: mgr, jobs: jobs, metrics: mx, config: cfg}, nil
}

func runServer(cfg *config.Config, app *application, logger *zap.Logger) {
	server := api.New(cfg, app.manager, app.jobs, app.metrics, logger)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		if err := server.Shutdown(); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("starting server",
		zap.String("address", cfg.Server.Address),
		zap.Int("port", cfg.Server.Port),
	)
	if err := server.Start(); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// runFile pushes one local document through the stage its filename implies:
// *_PROVISIONAL and *_CURATED files get their candidates burned in, fresh
// documents get provisional candidates placed, *_REDACTED files are done.
func runFile(app *application, input string, logger *zap.Logger) {
	dir := filepath.Dir(input)
	base := filepath.Base(input)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	kind := strings.TrimPrefix(ext, ".")
	if kind == "" {
		kind = "pdf"
	}

	var stage func(context.Context, *manager.Request) *manager.Result
	var outName string
	switch {
	case strings.HasSuffix(stem, "_REDACTED"):
		fmt.Println("Document is already redacted; nothing to do.")
		return
	case strings.HasSuffix(stem, "_PROVISIONAL"):
		stage = app.manager.TryApply
		outName = strings.TrimSuffix(stem, "_PROVISIONAL") + "_REDACTED" + ext
	case strings.HasSuffix(stem, "_CURATED"):
		stage = app.manager.TryApply
		outName = strings.TrimSuffix(stem, "_CURATED") + "_REDACTED" + ext
	default:
		stage = app.manager.TryRedact
		outName = stem + "_PROVISIONAL" + ext
	}

	outKey := outName
	outDir := dir
	if *outPath != "" {
		outDir = filepath.Dir(*outPath)
		outKey = filepath.Base(*outPath)
	}

	result := stage(context.Background(), &manager.Request{
		FileKind:   kind,
		ConfigName: *ruleSet,
		ReadDetails: &manager.StorageDetails{
			StorageKind: "file",
			Properties:  map[string]string{"root": dir, "key": base},
		},
		WriteDetails: &manager.StorageDetails{
			StorageKind: "file",
			Properties:  map[string]string{"root": outDir, "key": outKey},
		},
	})

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Fatal("encode result", zap.Error(err))
	}
	fmt.Println(string(encoded))

	if result.Status != manager.StatusSuccess {
		os.Exit(1)
	}
}
