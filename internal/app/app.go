package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/sirupsen/logrus"

	"storefront_back_end/internal/account"
	"storefront_back_end/internal/admin"
	"storefront_back_end/internal/audit"
	"storefront_back_end/internal/auth"
	"storefront_back_end/internal/cache"
	"storefront_back_end/internal/cart"
	"storefront_back_end/internal/catalog"
	"storefront_back_end/internal/checkout"
	"storefront_back_end/internal/config"
	"storefront_back_end/internal/database"
	"storefront_back_end/internal/events"
	"storefront_back_end/internal/handlers"
	"storefront_back_end/internal/middleware"
	"storefront_back_end/internal/realtime"
	"storefront_back_end/internal/routes"
	"storefront_back_end/internal/search"
	"storefront_back_end/internal/services"
	"storefront_back_end/internal/store"
	"storefront_back_end/internal/utils"
)

type App struct {
	cfg    *config.Config
	conns  *database.Connections
	events events.Publisher
	audit  audit.Logger
	server *http.Server
}

// InitLogger configures logrus: readable text in development, JSON in production.
func InitLogger(isProd bool) {
	logrus.SetOutput(os.Stdout)
	if isProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetLevel(logrus.InfoLevel)
		gin.SetMode(gin.ReleaseMode)
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(logrus.DebugLevel)
}

// New connects every backing service and builds the HTTP server.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	conns, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if gs, ok := conns.Store.(*store.GormStore); ok && !cfg.IsProd {
		if err := gs.Migrate(ctx); err != nil {
			conns.Close()
			return nil, err
		}
		logrus.Info("✅ Schema migrated")
	}

	a := &App{cfg: cfg, conns: conns, events: events.Noop{}, audit: audit.Noop{}}
	a.initEvents(ctx)
	a.initAudit()

	router := a.buildRouter(ctx)
	a.server = &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

func (a *App) initEvents(ctx context.Context) {
	if len(a.cfg.Kafka.Brokers) == 0 {
		logrus.Warn("⚠️ KAFKA_BROKERS not set: domain events are dropped")
		return
	}
	p, err := events.NewKafkaPublisher(ctx, a.cfg.Kafka)
	if err != nil {
		logrus.WithError(err).Error("❌ Kafka unreachable, domain events are dropped")
		return
	}
	a.events = p
	logrus.Info("✅ Kafka producer ready")
}

func (a *App) initAudit() {
	if len(a.cfg.Scylla.Hosts) == 0 {
		logrus.Warn("⚠️ SCYLLA_HOSTS not set: audit trail kept in memory")
		a.audit = audit.NewMemory(audit.MaxQueryLimit)
		return
	}
	l, err := audit.NewScyllaLogger(a.cfg.Scylla)
	if err != nil {
		logrus.WithError(err).Error("❌ ScyllaDB unreachable, audit trail kept in memory")
		a.audit = audit.NewMemory(audit.MaxQueryLimit)
		return
	}
	a.audit = l
	logrus.Info("✅ ScyllaDB audit trail ready")
}

func (a *App) buildRouter(ctx context.Context) *gin.Engine {
	cfg := a.cfg
	st := a.conns.Store
	c := cache.New(a.conns.Redis)

	var (
		guests cart.GuestStore = cart.NewMemoryGuestStore()
		broker realtime.Broker = realtime.NewLocalBroker()
		finder search.Searcher
		urls   catalog.ImageURLs
		upload handlers.ImageUploader
	)
	if a.conns.Redis != nil {
		guests = cart.NewRedisGuestStore(a.conns.Redis)
		broker = realtime.NewRedisBroker(a.conns.Redis)
	}
	if a.conns.Elastic != nil {
		es := search.NewElastic(a.conns.Elastic, cfg.Elastic.Index)
		if err := es.EnsureIndex(ctx); err != nil {
			logrus.WithError(err).Error("❌ search index not ready, text search falls back to the database")
		} else {
			finder = es
		}
	}
	if a.conns.MinIO != nil {
		images := services.NewImages(a.conns.MinIO, cfg.MinIO.Bucket)
		urls, upload = images, images
	}

	var invoices services.InvoicePDF
	if cfg.InvoicePDFEnabled {
		invoices = services.NewInvoiceRenderer(cfg.BaseURL, cfg.InvoiceFrontURL)
	}

	catalogSvc := catalog.NewService(st, finder, c, urls)
	if finder != nil && cfg.DemoMode {
		if n, err := catalogSvc.Reindex(ctx); err != nil {
			logrus.WithError(err).Warn("⚠️ demo catalog not indexed")
		} else {
			logrus.WithField("products", n).Info("✅ demo catalog indexed")
		}
	}

	carts := cart.NewService(st, guests,
		cart.WithNotifier(broker),
		cart.WithEvents(a.events),
		cart.WithProductDecorator(catalogSvc.Decorate),
	)

	checkoutOpts := []checkout.Option{
		checkout.WithEvents(a.events),
		checkout.WithAudit(a.audit),
		checkout.WithNotifier(broker),
	}
	authOpts := []auth.Option{auth.WithAudit(a.audit)}
	if cfg.SMTP.Host != "" {
		mailer := services.NewMailer(cfg.SMTP, cfg.BaseURL, invoices)
		checkoutOpts = append(checkoutOpts, checkout.WithMailer(mailer))
		authOpts = append(authOpts, auth.WithWelcomer(mailer, cfg.Checkout.FreeShippingThreshold))
	} else {
		logrus.Warn("⚠️ SMTP_HOST not set: emails are not sent")
	}
	if cfg.StripeSecretKey != "" {
		checkoutOpts = append(checkoutOpts, checkout.WithPayments(checkout.NewStripePayments(cfg.StripeSecretKey)))
		logrus.Info("✅ Stripe payments enabled")
	} else {
		logrus.Warn("⚠️ STRIPE_SECRET_KEY not set: orders are confirmed without payment")
	}

	accountOpts := []account.Option{account.WithAudit(a.audit)}
	if invoices != nil {
		accountOpts = append(accountOpts, account.WithInvoices(invoices))
	}

	authSvc := auth.NewService(st, authOpts...)
	tokens := utils.NewTokenIssuer(cfg.JWTSecret)
	sessionStore := middleware.NewSessionStore(cfg.SessionSecret, cfg.IsProd)

	gothic.Store = sessionStore
	if providers := cfg.OAuth.Providers(cfg.BaseURL); len(providers) > 0 {
		goth.UseProviders(providers...)
		logrus.WithField("count", len(providers)).Info("✅ OAuth providers enabled")
	} else {
		logrus.Warn("⚠️ No OAuth provider configured")
	}

	authMW := middleware.NewAuth(tokens, sessionStore, authSvc, c)
	h := handlers.New(handlers.Deps{
		Catalog:        catalogSvc,
		Carts:          carts,
		Checkout:       checkout.NewService(st, carts, cfg.Checkout, checkoutOpts...),
		Auth:           authSvc,
		Account:        account.NewService(st, cfg.BaseURL, accountOpts...),
		Admin:          admin.NewService(st, admin.WithAudit(a.audit)),
		Sessions:       authMW,
		Tokens:         tokens,
		Broker:         broker,
		Images:         upload,
		Audit:          a.audit,
		AllowedOrigins: cfg.CORSOrigins,
		Secure:         cfg.IsProd,
	})
	return routes.NewRouter(h, authMW, middleware.NewRateLimiter(c), routes.Options{
		CORSOrigins: cfg.CORSOrigins,
		Secure:      cfg.IsProd,
	})
}

// Run serves HTTP until the server is shut down. stop is called when the
// listener fails so the caller can exit.
func (a *App) Run(stop context.CancelFunc) {
	go func() {
		logrus.WithField("port", a.cfg.AppPort).Info("🚀 storefront listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("❌ HTTP server stopped")
			stop()
		}
	}()
}

func (a *App) Close(ctx context.Context) {
	if err := a.server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("⚠️ HTTP shutdown incomplete")
	}
	a.events.Close()
	a.audit.Close()
	a.conns.Close()
	logrus.Info("👋 storefront stopped")
}
