package container

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"orderflow-backend/internal/clients"
	"orderflow-backend/internal/config"
	infracache "orderflow-backend/internal/infrastructure/cache"
	"orderflow-backend/internal/infrastructure/database"
	"orderflow-backend/internal/infrastructure/storage"
	"orderflow-backend/pkg/cache"
	"orderflow-backend/pkg/jwt"
	"orderflow-backend/pkg/sequence"

	cartHandler "orderflow-backend/internal/domains/cart/handler"
	cartRepo "orderflow-backend/internal/domains/cart/repository"
	cartService "orderflow-backend/internal/domains/cart/service"
	checkoutHandler "orderflow-backend/internal/domains/checkout/handler"
	checkoutRepo "orderflow-backend/internal/domains/checkout/repository"
	checkoutService "orderflow-backend/internal/domains/checkout/service"
	invoiceHandler "orderflow-backend/internal/domains/invoice/handler"
	"orderflow-backend/internal/domains/invoice/renderer"
	invoiceRepo "orderflow-backend/internal/domains/invoice/repository"
	invoiceService "orderflow-backend/internal/domains/invoice/service"
	orderHandler "orderflow-backend/internal/domains/order/handler"
	orderRepo "orderflow-backend/internal/domains/order/repository"
	orderService "orderflow-backend/internal/domains/order/service"
	"orderflow-backend/internal/domains/payment/gateway/razorpay"
	paymentHandler "orderflow-backend/internal/domains/payment/handler"
	paymentRepo "orderflow-backend/internal/domains/payment/repository"
	paymentService "orderflow-backend/internal/domains/payment/service"
	returnsHandler "orderflow-backend/internal/domains/returns/handler"
	returnsRepo "orderflow-backend/internal/domains/returns/repository"
	returnsService "orderflow-backend/internal/domains/returns/service"
)

// ========================================
// CONTAINER STRUCT
// ========================================

// Container holds every dependency of the application and is the root
// of the dependency graph. Each field is a singleton for the process
// lifetime.
type Container struct {
	// ========================================
	// INFRASTRUCTURE LAYER
	// ========================================

	Config      *config.Config
	DB          *database.PostgresDB
	Cache       cache.Cache
	Locker      *infracache.Locker
	Storage     *storage.MinIOStorage
	AsynqClient *asynq.Client
	JWTManager  *jwt.Manager
	Sequences   *sequence.Generator
	Gateway     razorpay.Gateway
	Clients     *clients.Clients

	// ========================================
	// REPOSITORY LAYER (DATA ACCESS)
	// ========================================

	CartRepo     cartRepo.RepositoryInterface
	CouponRepo   cartRepo.CouponRepositoryInterface
	CheckoutRepo checkoutRepo.RepositoryInterface
	OrderRepo    orderRepo.OrderRepository
	PaymentRepo  paymentRepo.PaymentRepository
	RefundRepo   paymentRepo.RefundRepository
	WebhookRepo  paymentRepo.WebhookRepository
	ReturnsRepo  returnsRepo.RepositoryInterface
	InvoiceRepo  invoiceRepo.RepositoryInterface

	// ========================================
	// SERVICE LAYER (BUSINESS LOGIC)
	// ========================================

	CartService     *cartService.CartService
	Revalidator     *cartService.Revalidator
	CheckoutService *checkoutService.CheckoutService
	OrderService    *orderService.OrderService
	PaymentService  *paymentService.PaymentService
	RefundService   *paymentService.RefundService
	ReturnsService  *returnsService.ReturnsService
	InvoiceService  *invoiceService.InvoiceService

	// ========================================
	// HANDLER LAYER (HTTP)
	// ========================================

	CartHandler     *cartHandler.CartHandler
	CheckoutHandler *checkoutHandler.CheckoutHandler
	OrderHandler    *orderHandler.OrderHandler
	PaymentHandler  *paymentHandler.PaymentHandler
	ReturnsHandler  *returnsHandler.ReturnsHandler
	InvoiceHandler  *invoiceHandler.InvoiceHandler
}

// ========================================
// CONSTRUCTOR: BUILD CONTAINER
// ========================================

// NewContainer initializes the whole dependency graph in order:
// config, infrastructure, repositories, services, handlers.
// Services have cross-domain edges (checkout -> order -> payment ->
// refund), so initServices wires them in dependency order.
func NewContainer() (*Container, error) {
	log.Println("🔧 Initializing DI Container...")

	c := &Container{}

	// ========================================
	// STEP 1: LOAD CONFIGURATION
	// ========================================
	log.Println("📋 Loading configuration...")

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg
	log.Printf("✅ Config loaded (Environment: %s)", cfg.App.Environment)

	// ========================================
	// STEP 2: INITIALIZE INFRASTRUCTURE
	// ========================================
	if err := c.initInfrastructure(); err != nil {
		return nil, err
	}

	// ========================================
	// STEP 3: INITIALIZE REPOSITORIES
	// ========================================
	log.Println("📦 Initializing repositories...")
	c.initRepositories()
	log.Println("✅ Repositories initialized")

	// ========================================
	// STEP 4: INITIALIZE SERVICES
	// ========================================
	log.Println("⚙️  Initializing services...")
	c.initServices()
	log.Println("✅ Services initialized")

	// ========================================
	// STEP 5: INITIALIZE HANDLERS
	// ========================================
	log.Println("🎯 Initializing handlers...")
	c.initHandlers()
	log.Println("✅ Handlers initialized")

	log.Println("🎉 DI Container initialized successfully")
	return c, nil
}

// ========================================
// PRIVATE INITIALIZATION METHODS
// ========================================

func (c *Container) initInfrastructure() error {
	cfg := c.Config

	// Database
	log.Println("🗄️  Connecting to PostgreSQL...")

	dbConfig, err := config.LoadDatabaseConfig()
	if err != nil {
		return fmt.Errorf("failed to load database config: %w", err)
	}

	db := database.NewPostgresDB(dbConfig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.HealthCheck(context.Background()); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	c.DB = db
	log.Println("✅ Database connected")

	// Redis cache and distributed locks
	log.Println("🔴 Connecting to Redis...")

	redisCache, err := infracache.NewRedisCache(cfg.Redis)
	if err != nil {
		// Asynq rides on the same instance, nothing works without it.
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	c.Cache = redisCache
	c.Locker = infracache.NewLocker(redisCache)
	log.Println("✅ Redis connected")

	// Asynq producer shares the Redis instance
	c.AsynqClient = asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Host,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// MinIO object storage for invoice artifacts
	log.Println("🪣 Connecting to MinIO...")
	store, err := storage.NewMinIOStorage(cfg.MinIO)
	if err != nil {
		return fmt.Errorf("failed to init object storage: %w", err)
	}
	c.Storage = store
	log.Println("✅ MinIO connected")

	// Payment gateway client
	c.Gateway = razorpay.NewClient(razorpay.NewConfig(
		cfg.Gateway.KeyID,
		cfg.Gateway.KeySecret,
		cfg.Gateway.WebhookSecret,
		cfg.Gateway.APIURL,
		cfg.Gateway.Timeout,
	))

	// External service clients (catalog, pricing, inventory, shipping, notification)
	c.Clients = clients.NewClients(cfg.Services, cfg.App.InternalServiceKey)

	// Document numbering in the business timezone
	c.Sequences = sequence.NewGenerator(c.DB.Pool, cfg.BusinessLocation())

	c.JWTManager = jwt.NewManager(cfg.JWT.Secret)

	return nil
}

func (c *Container) initRepositories() {
	pool := c.DB.Pool

	c.CartRepo = cartRepo.NewPostgresRepository(pool)
	c.CouponRepo = cartRepo.NewCouponRepository(pool)
	c.CheckoutRepo = checkoutRepo.NewPostgresRepository(pool)
	c.OrderRepo = orderRepo.NewPostgresRepository(pool)
	c.PaymentRepo = paymentRepo.NewPostgresPaymentRepository(pool)
	c.RefundRepo = paymentRepo.NewPostgresRefundRepository(pool)
	c.WebhookRepo = paymentRepo.NewPostgresWebhookRepository(pool)
	c.ReturnsRepo = returnsRepo.NewPostgresRepository(pool)
	c.InvoiceRepo = invoiceRepo.NewPostgresRepository(pool)
}

func (c *Container) initServices() {
	cfg := c.Config

	// Cart has no cross-domain edges, build it first.
	c.CartService = cartService.NewCartService(
		c.CartRepo,
		c.CouponRepo,
		c.Clients.Catalog,
		c.Clients.Pricing,
		c.Locker,
	)
	c.Revalidator = cartService.NewRevalidator(
		c.CartRepo,
		c.Clients.Catalog,
		c.Clients.Pricing,
	)

	// Orders only depend on infrastructure.
	c.OrderService = orderService.NewOrderService(
		c.OrderRepo,
		c.Sequences,
		c.Clients.Inventory,
		c.AsynqClient,
	)

	// Refunds settle against orders, payments verify against both.
	c.RefundService = paymentService.NewRefundService(
		c.RefundRepo,
		c.PaymentRepo,
		c.Gateway,
		c.OrderService,
		c.Sequences,
		c.AsynqClient,
	)
	c.PaymentService = paymentService.NewPaymentService(
		c.PaymentRepo,
		c.WebhookRepo,
		c.Gateway,
		c.OrderService,
		c.RefundService,
		c.Clients.Inventory,
		cfg.Gateway.KeySecret,
		cfg.Gateway.WebhookSecret,
	)

	// Checkout converts carts into orders and opens payments.
	c.CheckoutService = checkoutService.NewCheckoutService(
		c.CheckoutRepo,
		c.CartService,
		c.Revalidator,
		c.Clients.Catalog,
		c.Clients.Inventory,
		c.Clients.Shipping,
		c.OrderService,
		c.PaymentService,
		cfg.Lifecycle.CheckoutExpiryMinutes,
		cfg.Lifecycle.ReservationMinutes,
	)

	c.ReturnsService = returnsService.NewReturnsService(
		c.ReturnsRepo,
		c.OrderService,
		c.RefundService,
		c.Clients.Notification,
		c.Sequences,
		cfg.Lifecycle.ReturnWindowDays,
	)

	c.InvoiceService = invoiceService.NewInvoiceService(
		c.InvoiceRepo,
		c.OrderService,
		renderer.NewPDFRenderer(
			cfg.Billing.SellerName,
			cfg.Billing.SellerAddress,
			cfg.Billing.SellerGSTIN,
		),
		c.Storage,
		c.Sequences,
	)
}

func (c *Container) initHandlers() {
	c.CartHandler = cartHandler.NewCartHandler(c.CartService, c.Revalidator)
	c.CheckoutHandler = checkoutHandler.NewCheckoutHandler(c.CheckoutService)
	c.OrderHandler = orderHandler.NewOrderHandler(c.OrderService)
	c.PaymentHandler = paymentHandler.NewPaymentHandler(c.PaymentService, c.RefundService)
	c.ReturnsHandler = returnsHandler.NewReturnsHandler(c.ReturnsService)
	c.InvoiceHandler = invoiceHandler.NewInvoiceHandler(c.InvoiceService)
}

// ========================================
// CLEANUP
// ========================================

// Cleanup releases infrastructure resources during graceful shutdown.
func (c *Container) Cleanup() {
	log.Println("🧹 Cleaning up container resources...")

	if c.AsynqClient != nil {
		if err := c.AsynqClient.Close(); err != nil {
			log.Printf("⚠️  Asynq client close failed: %v", err)
		}
	}

	if c.DB != nil && c.DB.Pool != nil {
		c.DB.Pool.Close()
		log.Println("✅ Database connections closed")
	}

	log.Println("✅ Container cleanup complete")
}
