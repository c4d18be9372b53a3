package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"rss-scraper/config"
	"rss-scraper/internal/database"
	"rss-scraper/internal/fetch"
	"rss-scraper/internal/handler"
	"rss-scraper/internal/middleware"
	"rss-scraper/internal/notify"
	"rss-scraper/internal/pipeline"
	"rss-scraper/internal/repository"
	"rss-scraper/internal/service"
	"rss-scraper/pkg/datetime"
	"rss-scraper/pkg/email"
	"rss-scraper/pkg/ratelimit"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
)

const (
	limiterCleanupInterval = 10 * time.Minute
	limiterMaxAge          = 24 * time.Hour
)

type Application struct {
	Router              *mux.Router
	Config              *config.Config
	DBManager           *database.Manager
	Repositories        *repository.Repositories
	Pipeline            *pipeline.Pipeline
	Poller              *pipeline.Poller
	Limiter             *ratelimit.Limiter
	FeedService         *service.FeedService
	SubscriberService   *service.SubscriberService
	SessionHandler      *handler.SessionHandler
	FeedHandler         *handler.FeedHandler
	NotificationHandler *handler.NotificationHandler
	AuthMiddleware      *middleware.AuthMiddleware
}

func New(cfg *config.Config) (*Application, error) {
	dbConfig := database.Config{
		Driver:           cfg.DatabaseDriver,
		ConnectionString: cfg.DatabaseURL,
		Host:             cfg.DBHost,
		Port:             cfg.DBPort,
		User:             cfg.DBUser,
		Password:         cfg.DBPassword,
		DBName:           cfg.DBName,
		SQLitePath:       cfg.SQLitePath,
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return nil, err
	}

	var opts []fetch.Option
	if cfg.FetchUserAgent != "" {
		opts = append(opts, fetch.WithUserAgent(cfg.FetchUserAgent))
	}
	fetcher := fetch.NewClient(cfg.FetchTimeout, opts...)

	emailService, err := email.New(email.Config{
		Provider:     cfg.EmailProvider,
		From:         cfg.EmailFrom,
		ResendAPIKey: cfg.ResendAPIKey,
		SMTPHost:     cfg.SMTPHost,
		SMTPPort:     cfg.SMTPPort,
		SMTPUsername: cfg.SMTPUsername,
		SMTPPassword: cfg.SMTPPassword,
	})
	if err != nil {
		log.Printf("Warning: Email service initialization failed: %v", err)
		log.Println("Failure alerts will only be stored in the notification inbox")
		emailService = email.NopService{}
	}

	return build(cfg, dbManager, fetcher, emailService), nil
}

// build wires every component on top of an open database.
func build(cfg *config.Config, dbManager *database.Manager, fetcher fetch.Fetcher, mailer email.Service) *Application {
	repos := repository.New(dbManager.GetDB(), dbManager.Dialect)

	sink := notify.Multi{
		notify.NewStoreSink(repos.Notifications),
		notify.NewEmailSink(repos.Subscribers, mailer),
	}

	logger := log.New(os.Stderr, "[refresh] ", log.LstdFlags)
	pipe := pipeline.New(pipeline.Config{
		Policy: pipeline.Policy{
			MaxRetries: cfg.MaxRetries,
			Base:       cfg.RetryBackoffBase,
			Unit:       cfg.RetryBackoffUnit,
		},
		Workers: cfg.RefreshWorkers,
		AppURL:  cfg.AppURL,
		Logger:  logger,
	}, repos.Feeds, repos.Items, fetcher, sink)

	limiter := ratelimit.NewLimiter()
	feedService := service.NewFeedService(
		repos,
		fetcher,
		pipe,
		limiter,
		service.RateLimits{Max: cfg.FollowRateLimit, Window: cfg.FollowRateWindow},
		datetime.NewFormatter(),
		cfg.AppURL,
	)
	subscriberService := service.NewSubscriberService(repos.Subscribers)
	notificationService := service.NewNotificationService(repos.Notifications)

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}

	authMiddleware := middleware.NewAuthMiddleware(sessionStore)

	app := &Application{
		Router:              mux.NewRouter(),
		Config:              cfg,
		DBManager:           dbManager,
		Repositories:        repos,
		Pipeline:            pipe,
		Poller:              pipeline.NewPoller(pipe, cfg.RefreshInterval, logger),
		Limiter:             limiter,
		FeedService:         feedService,
		SubscriberService:   subscriberService,
		SessionHandler:      handler.NewSessionHandler(subscriberService, authMiddleware),
		FeedHandler:         handler.NewFeedHandler(feedService, authMiddleware),
		NotificationHandler: handler.NewNotificationHandler(notificationService, authMiddleware),
		AuthMiddleware:      authMiddleware,
	}

	app.setupMiddleware()
	app.setupRoutes()

	return app
}

func (a *Application) setupMiddleware() {
	a.Router.Use(chimw.RequestID, chimw.RealIP, chimw.Logger, chimw.Recoverer)
	a.Router.Use(securityHeadersMiddleware(a.Config.IsProduction()))

	if a.Config.IsProduction() {
		log.Printf("CSRF Configuration - Production mode enabled")
		csrfOptions := []csrf.Option{
			csrf.Secure(true),
			csrf.HttpOnly(true),
			csrf.Path("/"),
			csrf.SameSite(csrf.SameSiteLaxMode),
			csrf.RequestHeader("X-CSRF-Token"),
		}
		if a.Config.AppURL != "" {
			csrfOptions = append(csrfOptions, csrf.TrustedOrigins([]string{a.Config.AppURL}))
			log.Printf("CSRF Configuration - Trusted Origin: %s", a.Config.AppURL)
		}
		a.Router.Use(csrf.Protect([]byte(a.Config.CSRFSecret), csrfOptions...))
	} else {
		log.Printf("CSRF Configuration - Disabled in development mode")
	}
}

func securityHeadersMiddleware(isProduction bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			if isProduction {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (a *Application) setupRoutes() {
	a.Router.HandleFunc("/healthz", a.healthz).Methods("GET")
	a.Router.HandleFunc("/session", a.SessionHandler.Current).Methods("GET")
	a.Router.HandleFunc("/session", a.SessionHandler.Login).Methods("POST")
	a.Router.HandleFunc("/session", a.SessionHandler.Logout).Methods("DELETE")

	api := a.Router.PathPrefix("/api").Subrouter()
	api.Use(a.AuthMiddleware.RequireAuth)

	api.HandleFunc("/profile", a.SessionHandler.UpdateProfile).Methods("PATCH")

	api.HandleFunc("/feeds", a.FeedHandler.ListFeeds).Methods("GET")
	api.HandleFunc("/feeds", a.FeedHandler.FollowFeed).Methods("POST")
	api.HandleFunc("/feeds/refresh", a.FeedHandler.RefreshFeeds).Methods("POST")
	api.HandleFunc("/feeds/export", a.FeedHandler.ExportFeeds).Methods("GET")
	api.HandleFunc("/feeds/import", a.FeedHandler.ImportFeeds).Methods("POST")
	api.HandleFunc("/feeds/{id:[0-9]+}", a.FeedHandler.GetFeed).Methods("GET")
	api.HandleFunc("/feeds/{id:[0-9]+}", a.FeedHandler.DeleteFeed).Methods("DELETE")
	api.HandleFunc("/feeds/{id:[0-9]+}/refresh", a.FeedHandler.RefreshFeed).Methods("POST")

	api.HandleFunc("/items/{id:[0-9]+}", a.FeedHandler.GetItem).Methods("GET")
	api.HandleFunc("/items/{id:[0-9]+}", a.FeedHandler.UpdateItem).Methods("PATCH")
	api.HandleFunc("/bookmarks", a.FeedHandler.Bookmarks).Methods("GET")
	api.HandleFunc("/bookmarks/rss", a.FeedHandler.BookmarksRSS).Methods("GET")

	api.HandleFunc("/notifications", a.NotificationHandler.List).Methods("GET")
	api.HandleFunc("/notifications/{id:[0-9]+}", a.NotificationHandler.Get).Methods("GET")
}

func (a *Application) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := a.DBManager.GetDB().PingContext(ctx); err != nil {
		log.Printf("Health check failed: %v", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.Write([]byte(`{"status":"ok"}`))
}

// StartBackground starts the refresh workers, the periodic poller and the
// limiter cleanup. Both loops stop with ctx.
func (a *Application) StartBackground(ctx context.Context) {
	a.Pipeline.Start()
	go a.Poller.Run(ctx)
	go a.Limiter.RunCleanup(ctx, limiterCleanupInterval, limiterMaxAge)
}

func (a *Application) Close() error {
	if a.Pipeline != nil {
		a.Pipeline.Stop()
	}
	if a.DBManager != nil {
		return a.DBManager.Close()
	}
	return nil
}
