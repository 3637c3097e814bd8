/*
 *    Copyright 2025 blockarchitech
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package flowsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"flowos.app/flowsync/internal/calendarsync"
	"flowos.app/flowsync/internal/config"
	"flowos.app/flowsync/internal/handler"
	"flowos.app/flowsync/internal/notify"
	"flowos.app/flowsync/internal/repository"
	"flowos.app/flowsync/internal/service"
	"flowos.app/flowsync/internal/storage"
	"flowos.app/flowsync/internal/tokengate"
	"flowos.app/flowsync/internal/view"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const serviceName = "flowsync"

type App struct {
	logger *zap.Logger
	cfg    *config.Config
	server *http.Server
}

func NewApp(logger *zap.Logger, cfg *config.Config) *App {
	return &App{
		logger: logger,
		cfg:    cfg,
	}
}

// components is everything the HTTP server and the emit command share.
type components struct {
	repo         repository.Repository
	kv           storage.KVStore
	scheduler    *notify.Scheduler
	calendarSync *calendarsync.Service
	refresher    *service.OAuthRefresher
	auth         *service.SupabaseAuthService
	tracer       trace.Tracer
}

func (c *components) Close() {
	c.scheduler.Shutdown()
	_ = c.kv.Close()
	_ = c.repo.Close()
}

func (a *App) build(ctx context.Context) (*components, error) {
	tracer := otel.Tracer(serviceName)

	repo, err := a.initRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize repository: %w", err)
	}
	kv, err := a.initKVStore(ctx)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to initialize state store: %w", err)
	}

	calendarService := service.NewCalendarService(a.cfg.CalendarAPIEndpoint, tracer, a.logger)
	refresher := service.NewOAuthRefresher(a.cfg.GoogleOAuthConfig, a.logger)

	var gateRefresher tokengate.Refresher
	if a.cfg.RefreshEnabled {
		gateRefresher = refresher
	} else {
		a.logger.Warn("Calendar token refresh is disabled; expired tokens will require re-authorization")
	}
	gate := tokengate.NewGate(repo, gateRefresher, a.logger)

	var notifier notify.Notifier
	if a.cfg.PushGatewayURL != "" {
		notifier = service.NewPushService(a.cfg.PushGatewayURL, tracer, a.logger)
	}
	var podcasts notify.PodcastSource
	if a.cfg.PodcastFeedURL != "" {
		podcasts = service.NewPodcastFeed(a.cfg.PodcastFeedURL, tracer, a.logger)
	}

	return &components{
		repo:         repo,
		kv:           kv,
		scheduler:    notify.NewScheduler(kv, repo, notify.DefaultContent(), podcasts, notifier, a.cfg.Location, tracer, a.logger),
		calendarSync: calendarsync.NewService(repo, repo, gate, calendarService, tracer, a.logger),
		refresher:    refresher,
		auth:         service.NewSupabaseAuthService(a.cfg.SupabaseURL, a.cfg.SupabaseAnonKey, tracer, a.logger),
		tracer:       tracer,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	var tp *sdktrace.TracerProvider
	if a.cfg.OtelExporterEndpoint != "" {
		tp = a.initTracerProvider(ctx)
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				a.logger.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	}

	comp, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer comp.Close()

	views, err := view.NewHTMLTemplateManager(a.logger)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	handlers := handler.NewHttpHandlers(a.logger, a.cfg, comp.auth, comp.calendarSync, comp.repo, comp.scheduler, comp.refresher, views, comp.tracer)
	router := a.setupRouter(handlers, tp)

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.cfg.Port),
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Server starting", zap.String("address", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("could not listen on %s: %w", a.server.Addr, err)
		}
	case <-ctx.Done():
	}
	a.logger.Info("Server shutting down...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := a.server.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	a.logger.Info("Server exited properly")
	return nil
}

// Emit runs every emission check once for each user, for cron-driven deployments.
func (a *App) Emit(ctx context.Context, userIDs []string) error {
	comp, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer comp.Close()

	for _, userID := range userIDs {
		n := comp.scheduler.EmitAll(ctx, userID)
		a.logger.Info("Emission run finished", zap.String("userID", userID), zap.Int("emitted", n))
	}
	return nil
}

func (a *App) initTracerProvider(ctx context.Context) *sdktrace.TracerProvider {
	traceExporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(a.cfg.OtelExporterEndpoint), otlptracehttp.WithInsecure())
	if err != nil {
		a.logger.Fatal("Failed to create OTLP HTTP trace exporter", zap.Error(err))
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(a.cfg.Version),
		),
	)
	if err != nil {
		a.logger.Fatal("Failed to create OpenTelemetry resource", zap.Error(err))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	a.logger.Info("OTLP HTTP trace exporter initialized", zap.String("endpoint", a.cfg.OtelExporterEndpoint))
	return tp
}

func (a *App) initRepository(ctx context.Context) (repository.Repository, error) {
	switch a.cfg.StorageType {
	case "firestore":
		return repository.NewFirestoreRepository(ctx, a.cfg.GCPProjectID, a.logger, a.cfg.SecretKey)
	case "postgres":
		return repository.NewPostgresRepository(a.cfg.DatabaseURL, a.logger, a.cfg.SecretKey)
	case "inmemory":
		a.logger.Warn("using inmemory repository. Did you mean to do this?")
		return repository.NewInMemoryRepository(a.logger), nil
	default:
		return nil, fmt.Errorf("invalid storage type: %s", a.cfg.StorageType)
	}
}

func (a *App) initKVStore(ctx context.Context) (storage.KVStore, error) {
	switch a.cfg.StorageType {
	case "firestore":
		return storage.NewFirestoreKVStore(ctx, a.cfg.GCPProjectID, a.logger)
	case "postgres":
		return storage.NewPostgresKVStore(a.cfg.DatabaseURL, a.logger)
	case "inmemory":
		return storage.NewInMemoryKVStore(a.logger), nil
	default:
		return nil, fmt.Errorf("invalid storage type: %s", a.cfg.StorageType)
	}
}

func (a *App) setupRouter(handlers *handler.HttpHandlers, tp *sdktrace.TracerProvider) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	if tp != nil {
		router.Use(otelgin.Middleware(serviceName+"-http", otelgin.WithTracerProvider(tp)))
	}

	handlers.RegisterRoutes(router)

	router.GET("/robots.txt", func(c *gin.Context) {
		c.Header("Content-Type", "text/plain")
		c.String(http.StatusOK, "User-agent: *\nDisallow: /\n")
	})

	return router
}
