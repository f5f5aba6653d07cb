package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/machinehub/api/internal/handlers"
	"github.com/machinehub/api/internal/payments"
	"github.com/machinehub/api/internal/platform/auth"
	"github.com/machinehub/api/internal/platform/config"
	pfirestore "github.com/machinehub/api/internal/platform/firestore"
	"github.com/machinehub/api/internal/platform/idempotency"
	"github.com/machinehub/api/internal/platform/jobs"
	"github.com/machinehub/api/internal/platform/observability"
	"github.com/machinehub/api/internal/platform/secrets"
	"github.com/machinehub/api/internal/repositories"
	firestoreRepo "github.com/machinehub/api/internal/repositories/firestore"
	"github.com/machinehub/api/internal/repositories/memory"
	"github.com/machinehub/api/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(fetcher),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	store, idemStore, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialise store backend", zap.Error(err), zap.String("backend", cfg.Store.Backend))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := closeStore(closeCtx); err != nil {
			logger.Warn("store close error", zap.Error(err))
		}
	}()

	gateway, err := payments.NewGatewayProvider(payments.GatewayProviderConfig{
		BaseURL:    cfg.Gateway.BaseURL,
		KeyID:      cfg.Gateway.KeyID,
		KeySecret:  cfg.Gateway.KeySecret,
		HTTPClient: &http.Client{Timeout: cfg.Gateway.Timeout},
		Logger:     zapEventLogger(logger.Named("payments")),
		Clock:      time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise payment gateway", zap.Error(err))
	}

	notifier, closeNotifier, err := newNotifier(ctx, logger, cfg)
	if err != nil {
		logger.Fatal("failed to initialise notification pipeline", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := closeNotifier(closeCtx); err != nil {
			logger.Warn("notifier close error", zap.Error(err))
		}
	}()

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Carts:    store.Carts(),
		Products: store.Products(),
		Clock:    time.Now,
		Logger:   zapEventLogger(logger.Named("cart")),
	})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:   store.Orders(),
		Carts:    store.Carts(),
		Products: store.Products(),
		Gateway:  gateway,
		Notifier: notifier,
		Policy: services.CheckoutPolicy{
			TaxRateBasisPoints: cfg.Checkout.TaxRateBasisPoints,
			ShippingFee:        cfg.Checkout.ShippingFeeMinor,
			DeliveryDays:       cfg.Checkout.DeliveryDays,
			Currency:           cfg.Gateway.Currency,
		},
		Clock:  time.Now,
		Logger: zapEventLogger(logger.Named("orders")),
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	systemService, err := newSystemService(store, fetcher, buildInfo)
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}

	authenticator, err := auth.NewAuthenticator(cfg.Auth.JWTSecret,
		auth.WithIssuer(cfg.Auth.Issuer),
		auth.WithLeeway(cfg.Auth.Leeway),
	)
	if err != nil {
		logger.Fatal("failed to initialise authenticator", zap.Error(err))
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(cfg.Firestore.ProjectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(cfg.Firestore.ProjectID),
		idempotency.Middleware(idemStore,
			idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
		),
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(systemService),
	)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCartRoutes(handlers.NewCartHandlers(authenticator, cartService).Routes),
		handlers.WithCheckoutRoutes(handlers.NewCheckoutHandlers(authenticator, orderService).Routes),
		handlers.WithOrderRoutes(handlers.NewOrderHandlers(authenticator, orderService).Routes),
		handlers.WithAdminRoutes(handlers.NewAdminOrderHandlers(authenticator, orderService).Routes),
		handlers.WithWebhookRoutes(handlers.NewWebhookHandlers(orderService).Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("machinehub api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newStore(ctx context.Context, cfg config.Config) (repositories.Store, idempotency.Store, func(context.Context) error, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendFirestore:
		provider := pfirestore.NewProvider(cfg.Firestore)
		client, err := provider.Client(ctx)
		if err != nil {
			return nil, nil, nil, err
		}
		store, err := firestoreRepo.NewStore(provider)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, idempotency.NewFirestoreStore(client), store.Close, nil
	case config.StoreBackendMemory:
		store := memory.NewStore()
		return store, idempotency.NewMemoryStore(), store.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func newNotifier(ctx context.Context, logger *zap.Logger, cfg config.Config) (services.OrderNotifier, func(context.Context) error, error) {
	var (
		mailer services.Mailer
		alerts services.AlertPublisher

		closePubSub func() error
	)

	switch cfg.Notifications.Transport {
	case config.NotifyTransportPubSub:
		client, err := pubsub.NewClient(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			return nil, nil, err
		}
		closePubSub = client.Close

		mailPublisher, err := jobs.NewPubSubMailPublisher(client.Topic(cfg.Notifications.MailTopic))
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		alertPublisher, err := jobs.NewPubSubAlertPublisher(client.Topic(cfg.Notifications.AlertsTopic))
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		mailer = mailPublisher
		alerts = alertPublisher
	case config.NotifyTransportLog:
		mailer = logMailer{logger: logger.Named("mail")}
		alerts = logAlertPublisher{logger: logger.Named("alerts")}
	default:
		return nil, nil, fmt.Errorf("unknown notification transport %q", cfg.Notifications.Transport)
	}

	dispatcher, err := services.NewNotificationDispatcher(services.NotificationDispatcherDeps{
		Mailer:            mailer,
		Alerts:            alerts,
		BusinessRecipient: cfg.Notifications.BusinessRecipient,
		Workers:           cfg.Notifications.Workers,
		QueueSize:         cfg.Notifications.QueueSize,
		JobTimeout:        cfg.Notifications.JobTimeout,
		Clock:             time.Now,
		Logger:            zapEventLogger(logger.Named("notify")),
	})
	if err != nil {
		if closePubSub != nil {
			_ = closePubSub()
		}
		return nil, nil, err
	}

	closeAll := func(closeCtx context.Context) error {
		err := dispatcher.Close(closeCtx)
		if closePubSub != nil {
			if cerr := closePubSub(); err == nil {
				err = cerr
			}
		}
		return err
	}
	return dispatcher, closeAll, nil
}

func newSystemService(store repositories.Store, fetcher *secrets.Fetcher, build services.BuildInfo) (services.SystemService, error) {
	checks := make([]repositories.DependencyCheck, 0, 2)
	if store != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "store",
			Timeout: 1500 * time.Millisecond,
			Check:   store.Ping,
		})
	}
	if fetcher != nil {
		const secretHealthReference = "secret://system/healthz"
		checks = append(checks, repositories.DependencyCheck{
			Name:    "secretManager",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				_, err := fetcher.Resolve(ctx, secretHealthReference)
				if err == nil {
					return nil
				}
				if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
					return nil
				}
				return err
			},
		})
	}
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	repo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: repo,
		Clock:            time.Now,
		Build:            build,
	})
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		return strings.TrimSpace(env[key])
	}

	envLabel := strings.ToLower(lookup("API_ENVIRONMENT"))
	if envLabel == "" {
		envLabel = "local"
	}
	defaultProject := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("API_FIRESTORE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithEnvironment(envLabel),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if projectMap := secretProjectMapFromEnv(env); len(projectMap) > 0 {
		opts = append(opts, secrets.WithProjectMap(projectMap))
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}

	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists the config fields that must resolve through the
// secret fetcher, based on which env values carry secret references.
func requiredSecretNames(env map[string]string) []string {
	refs := map[string]string{
		"API_GATEWAY_KEY_ID":     "Gateway.KeyID",
		"API_GATEWAY_KEY_SECRET": "Gateway.KeySecret",
		"API_AUTH_JWT_SECRET":    "Auth.JWTSecret",
	}

	required := make([]string, 0, len(refs))
	for key, field := range refs {
		value := ""
		if env != nil {
			value = strings.TrimSpace(env[key])
		}
		if strings.HasPrefix(value, "secret://") || strings.HasPrefix(value, "sm://") {
			required = append(required, field)
		}
	}
	sort.Strings(required)
	return required
}

func secretProjectMapFromEnv(env map[string]string) map[string]string {
	raw := ""
	if env != nil {
		raw = env["API_SECRET_PROJECT_IDS"]
	}
	projects := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		envLabel := strings.ToLower(strings.TrimSpace(parts[0]))
		project := strings.TrimSpace(parts[1])
		if envLabel == "" || project == "" {
			continue
		}
		projects[envLabel] = project
	}
	return projects
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func zapEventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug("event", zFields...)
	}
}

type logMailer struct {
	logger *zap.Logger
}

func (m logMailer) SendMail(_ context.Context, msg services.MailMessage) (string, error) {
	m.logger.Info("mail dispatched",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("orderId", msg.OrderID),
	)
	return "log", nil
}

type logAlertPublisher struct {
	logger *zap.Logger
}

func (p logAlertPublisher) PublishOrderAlert(_ context.Context, msg services.OrderAlertMessage) (string, error) {
	p.logger.Info("order alert",
		zap.String("orderId", msg.OrderID),
		zap.String("orderNumber", msg.OrderNumber),
		zap.String("event", msg.Event),
		zap.String("status", msg.Status),
		zap.Int64("grandTotal", msg.GrandTotal),
	)
	return "log", nil
}
