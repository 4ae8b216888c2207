package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	awspkg "github.com/ahambrahmasmi/storefront/pkg/aws"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/catalog"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/controllers"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/database"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/ledger"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/providers"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/ratelimit"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/repository"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/routes"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/services"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/validation"
	"github.com/ahambrahmasmi/storefront/services/common/auth"
	apperrors "github.com/ahambrahmasmi/storefront/services/common/errors"
	"github.com/ahambrahmasmi/storefront/services/common/logger"
	commonmw "github.com/ahambrahmasmi/storefront/services/common/middleware"
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const requestTimeout = 30 * time.Second

func main() {
	// Load .env file (optional, falls back to system env)
	_ = godotenv.Load()

	cfg, err := LoadConfig()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awspkg.LoadAWSConfig(rootCtx)
	if err != nil {
		panic("failed to load AWS config: " + err.Error())
	}

	log := initLogger(rootCtx, cfg, awsCfg)
	defer log.Sync()
	zap.ReplaceGlobals(log)

	metrics := awspkg.NewMetricsClient(awsCfg, cfg.MetricsNamespace, cfg.CloudWatchEnabled)

	// --- Stores ---
	orders, intents, closeStore := openStores(rootCtx, cfg, awsCfg, log)
	defer closeStore()

	limiterStore, closeLimiter := openLimiterStore(rootCtx, cfg, log)
	defer closeLimiter()
	limiter := ratelimit.New(limiterStore, cfg.RateLimitMax, cfg.RateLimitWindow)

	// --- Collaborators; each may be absent ---
	gateway := newGateway(cfg, log)

	var ledgerImpl ledger.Ledger
	if cfg.Sheets.Configured() {
		sheets, err := ledger.NewSheetsLedger(rootCtx, cfg.Sheets, log)
		if err != nil {
			log.Error("Failed to initialize Sheets ledger", zap.Error(err))
		} else {
			ledgerImpl = sheets
		}
	} else {
		log.Warn("Google Sheets credentials missing, design requests disabled and orders will escalate")
	}

	var retryQueue *awspkg.SQSQueue
	var retrySender awspkg.MessageSender
	if cfg.LedgerRetryQueueURL != "" {
		retryQueue = awspkg.NewSQSQueue(awsCfg, cfg.LedgerRetryQueueURL, log)
		retrySender = retryQueue
	}

	var uploader awspkg.ObjectUploader
	if cfg.DesignUploadsBucket != "" {
		uploader = awspkg.NewS3Uploader(awsCfg, cfg.DesignUploadsBucket)
	}

	var sns awspkg.SNSPublisher
	if cfg.OrderEventsTopicARN != "" {
		sns = awspkg.NewSNSClient(awsCfg)
	}
	events := services.NewEventPublisher(sns, cfg.OrderEventsTopicARN, log)

	// --- Services ---
	cat := catalog.Default()
	validator := validation.New(cat)
	recorder := services.NewOrderRecorder(orders, ledgerImpl, retrySender, events, metrics, log)
	checkoutSvc := services.NewCheckoutService(validator, gateway, intents, cfg.Currency, metrics, log)
	paymentSvc := services.NewPaymentService(gateway, validator, intents, recorder, events, metrics, log)
	designSvc := services.NewDesignRequestService(validator, uploader, ledgerImpl, metrics, log)

	if retryQueue != nil {
		consumer := services.NewLedgerRetryConsumer(retryQueue, orders, ledgerImpl, metrics, log)
		go func() {
			if err := consumer.Start(rootCtx); err != nil && rootCtx.Err() == nil {
				log.Error("Ledger retry consumer stopped", zap.Error(err))
			}
		}()
	}

	// --- HTTP ---
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	if err := commonmw.TrustProxies(r, cfg.TrustedProxies); err != nil {
		log.Warn("Invalid TRUSTED_PROXIES, trusting no proxies", zap.Error(err))
	}
	r.Use(
		gin.Recovery(),
		commonmw.RequestID(),
		commonmw.RequestLogger(log),
		commonmw.MetricsMiddleware(metrics, cfg.ServiceName),
		commonmw.SecurityHeaders(),
		commonmw.CORSMiddleware(commonmw.ParseOrigins(cfg.AllowedOrigins)),
		commonmw.Timeout(requestTimeout),
		apperrors.ErrorMiddleware(),
	)

	routes.RegisterCheckoutRoutes(r, routes.Handlers{
		Checkout: controllers.NewCheckoutController(checkoutSvc, cat),
		Payments: controllers.NewPaymentController(paymentSvc),
		Webhooks: controllers.NewWebhookController(paymentSvc, cfg.RazorpayWebhookSecret, cfg.StripeWebhookSecret),
		Designs:  controllers.NewDesignRequestController(designSvc),
		Orders:   controllers.NewOrderController(recorder),
		Limiter:  limiter,
		Verifier: auth.NewVerifier(cfg.JWTSecret),
		Metrics:  metrics,
	})
	r.GET("/health", controllers.Health(cfg.ServiceName))

	// --- Graceful Shutdown ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Checkout Service starting",
			zap.String("port", cfg.Port),
			zap.String("gateway", cfg.Gateway),
			zap.String("order_store", cfg.OrderStore))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	log.Info("Shutting down Checkout Service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Checkout Service stopped gracefully")
}

func initLogger(ctx context.Context, cfg *Config, awsCfg sdkaws.Config) *zap.Logger {
	if cfg.CloudWatchEnabled {
		cw, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.CloudWatchLogGroup, cfg.ServiceName)
		if err == nil {
			if l, err := logger.InitializeWithWriter(cfg.Env, cw); err == nil {
				return l
			}
		}
	}
	l, err := logger.Initialize(cfg.Env)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	return l
}

func openStores(ctx context.Context, cfg *Config, awsCfg sdkaws.Config, log *zap.Logger) (repository.OrderRepository, repository.IntentRepository, func()) {
	if cfg.OrderStore == StoreDynamoDB {
		client := awspkg.NewDynamoDBClient(awsCfg)
		return repository.NewDynamoOrderRepository(client, cfg.OrdersTable),
			repository.NewDynamoIntentRepository(client, cfg.IntentsTable),
			func() {}
	}

	db, err := database.ConnectPostgres(ctx, cfg.Postgres, log, &models.Order{}, &models.CheckoutIntent{})
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	return repository.NewGormOrderRepository(db), repository.NewGormIntentRepository(db), func() { closeDB(db, log) }
}

func closeDB(db *gorm.DB, log *zap.Logger) {
	if err := database.Close(db); err != nil {
		log.Error("Failed to close PostgreSQL", zap.Error(err))
	}
}

// openLimiterStore shares rate-limit counters through Redis when configured so
// every replica enforces the same window.
func openLimiterStore(ctx context.Context, cfg *Config, log *zap.Logger) (ratelimit.Store, func()) {
	if cfg.RedisURL != "" {
		client, err := database.ConnectRedis(ctx, cfg.RedisURL)
		if err == nil {
			return ratelimit.NewRedisStore(client, "ratelimit:"), func() { closeRedis(client, log) }
		}
		log.Warn("Redis unavailable, using in-memory rate limiting", zap.Error(err))
	}
	mem := ratelimit.NewMemoryStore(time.Minute)
	return mem, mem.Close
}

func closeRedis(client *redis.Client, log *zap.Logger) {
	if err := client.Close(); err != nil {
		log.Error("Failed to close Redis", zap.Error(err))
	}
}

func newGateway(cfg *Config, log *zap.Logger) providers.PaymentGateway {
	if !cfg.GatewayConfigured() {
		log.Warn("Payment gateway secrets missing, checkout disabled", zap.String("gateway", cfg.Gateway))
		return nil
	}
	if cfg.Gateway == providers.GatewayStripe {
		return providers.NewStripeGateway(cfg.StripeAPIKey, cfg.GatewayTimeout)
	}
	return providers.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.GatewayTimeout)
}
