package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	lambdasdk "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/i2y/apiportal/configs"
	"github.com/i2y/apiportal/internal/adapter/outbound/apigw"
	"github.com/i2y/apiportal/internal/adapter/outbound/boltstore"
	"github.com/i2y/apiportal/internal/adapter/outbound/docsource"
	"github.com/i2y/apiportal/internal/adapter/outbound/fsstore"
	"github.com/i2y/apiportal/internal/adapter/outbound/memstore"
	"github.com/i2y/apiportal/internal/adapter/outbound/openapi"
	"github.com/i2y/apiportal/internal/adapter/outbound/s3store"
	"github.com/i2y/apiportal/internal/adapter/outbound/staticgw"
	"github.com/i2y/apiportal/internal/adapter/outbound/trigger"
	"github.com/i2y/apiportal/internal/telemetry"
	"github.com/i2y/apiportal/internal/usecase"
)

// app holds the wired components shared by every command.
type app struct {
	cfg    *configs.Config
	logger *slog.Logger

	store      usecase.ObjectStore
	fsStore    *fsstore.ObjectStore
	gateway    usecase.Gateway
	classifier *openapi.Classifier
	trigger    usecase.RebuildTrigger
	httpClient *http.Client

	rebuild       *usecase.RebuildCatalogUseCase
	visibility    *usecase.ReconcileVisibilityUseCase
	documents     *usecase.ManageDocumentsUseCase
	sdkGeneration *usecase.SDKGenerationUseCase
	storageEvents *usecase.StorageEventsUseCase
	importer      *usecase.ImportGenericUseCase

	closers []func(context.Context) error
}

// newApp loads configuration and wires adapters into use cases. forceLocal
// runs rebuilds in-process whatever the configured mode, which the rebuild
// function itself needs to avoid invoking itself.
func newApp(ctx context.Context, forceLocal bool) (*app, error) {
	// === Configuration ===
	cfg, err := configs.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// === Logging ===
	logger := telemetry.NewLogger(os.Stderr, cfg.ParsedLogLevel(), cfg.LogFormat)
	slog.SetDefault(logger)
	logger.Debug("Logger initialized.", slog.String("level", cfg.ParsedLogLevel().String()))

	a := &app{
		cfg:        cfg,
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.HTTPClientTimeout},
		classifier: openapi.NewClassifier(logger),
	}

	// === OpenTelemetry Initialization ===
	shutdownOtel, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
		Endpoint: cfg.OtelExporterOtlpEndpoint,
		Insecure: cfg.OtelExporterOtlpInsecure,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	a.closers = append(a.closers, shutdownOtel)

	// === AWS ===
	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		c, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
		}
		awsCfg = &c
		return c, nil
	}

	// === Storage ===
	switch cfg.StorageBackend {
	case configs.StorageS3:
		c, err := loadAWS()
		if err != nil {
			return nil, a.fail(ctx, err)
		}
		client := s3.NewFromConfig(c, func(o *s3.Options) {
			if cfg.AWSEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.AWSEndpoint)
				o.UsePathStyle = true
			}
		})
		a.store = s3store.NewObjectStore(client, cfg.Bucket, logger)
	case configs.StorageFS:
		st, err := fsstore.NewObjectStore(cfg.StorageDir, logger)
		if err != nil {
			return nil, a.fail(ctx, err)
		}
		a.store, a.fsStore = st, st
	case configs.StorageBolt:
		st, err := boltstore.Open(cfg.BoltPath, logger)
		if err != nil {
			return nil, a.fail(ctx, err)
		}
		a.store = st
		a.closers = append(a.closers, func(context.Context) error { return st.Close() })
	case configs.StorageMemory:
		a.store = memstore.NewObjectStore(logger)
	}
	logger.Info("Object storage ready.", slog.String("backend", cfg.StorageBackend))

	// === Gateway ===
	switch cfg.GatewayBackend {
	case configs.GatewayAWS:
		c, err := loadAWS()
		if err != nil {
			return nil, a.fail(ctx, err)
		}
		client := apigateway.NewFromConfig(c, func(o *apigateway.Options) {
			if cfg.AWSEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.AWSEndpoint)
			}
		})
		a.gateway = apigw.New(client, logger)
	case configs.GatewayStatic:
		gw, err := staticgw.Load(cfg.GatewayFixture, logger)
		if err != nil {
			return nil, a.fail(ctx, err)
		}
		a.gateway = gw
	}

	// === Use Cases ===
	a.rebuild = usecase.NewRebuildCatalogUseCase(a.store, a.gateway, a.classifier, cfg.FetchConcurrency, logger)

	mode := cfg.RebuildMode
	if forceLocal {
		mode = configs.RebuildLocal
	}
	switch mode {
	case configs.RebuildLocal:
		a.trigger = trigger.NewLocal(a.rebuild, logger)
	case configs.RebuildLambda:
		c, err := loadAWS()
		if err != nil {
			return nil, a.fail(ctx, err)
		}
		client := lambdasdk.NewFromConfig(c, func(o *lambdasdk.Options) {
			if cfg.AWSEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.AWSEndpoint)
			}
		})
		a.trigger = trigger.NewLambda(client, cfg.RebuildFunction, logger)
	case configs.RebuildHTTP:
		a.trigger = trigger.NewHTTP(a.httpClient, cfg.RebuildURL, logger)
	}
	logger.Info("Rebuild trigger ready.", slog.String("mode", mode))

	a.visibility = usecase.NewReconcileVisibilityUseCase(a.store, a.gateway, cfg.FetchConcurrency, logger)
	a.documents = usecase.NewManageDocumentsUseCase(a.store, a.gateway, a.classifier, a.trigger, logger)
	a.sdkGeneration = usecase.NewSDKGenerationUseCase(a.store, a.trigger, logger)
	a.storageEvents = usecase.NewStorageEventsUseCase(a.trigger, logger)
	a.importer = usecase.NewImportGenericUseCase(docsource.NewFetcher(a.httpClient, nil, logger), a.documents, logger)
	return a, nil
}

// genericSources converts the configured sources for the import use case.
func (a *app) genericSources() []usecase.SourceConfig {
	sources := make([]usecase.SourceConfig, 0, len(a.cfg.GenericSources))
	for _, s := range a.cfg.GenericSources {
		sources = append(sources, usecase.SourceConfig{URL: s.URL, Headers: s.Headers})
	}
	return sources
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) fail(ctx context.Context, err error) error {
	return errors.Join(err, a.Close(ctx))
}
