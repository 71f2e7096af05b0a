package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"

	"house-alert-api/config"
	"house-alert-api/database"
	"house-alert-api/handlers"
	"house-alert-api/middleware"
	"house-alert-api/queue"
	"house-alert-api/services/auth"
	"house-alert-api/services/ecpay"
	"house-alert-api/services/email"
	"house-alert-api/services/line"
	"house-alert-api/worker"
)

const jobQueueName = "subscription_jobs"

func corsMiddleware(allowedOrigin string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
			w.Header().Set("Vary", "Origin")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type routes struct {
	allowedOrigin  string
	internalSecret string
	tokens         middleware.TokenValidator
	sessions       sessions.Store
	limiter        *middleware.RateLimiter

	checkout *handlers.CheckoutHandler
	callback *handlers.PaymentCallbackHandler
	webhook  *handlers.LineWebhookHandler
	plans    *handlers.PlanHandler
	auth     *handlers.AuthHandler
	internal *handlers.InternalHandler
	account  *handlers.AccountHandler
	monitors *handlers.MonitorHandler
	health   *handlers.HealthHandler
}

// newRouter registers every endpoint. Browser-facing routes also accept
// OPTIONS so corsMiddleware can answer preflights before auth runs.
func newRouter(rt routes) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)
	router.Use(middleware.SecurityHeadersMiddleware)
	router.Use(corsMiddleware(rt.allowedOrigin))
	router.Use(rt.limiter.RateLimitMiddleware())

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", rt.health.Health).Methods("GET")
	api.HandleFunc("/plans", rt.plans.GetPlans).Methods("GET", "OPTIONS")
	api.HandleFunc("/regions", rt.plans.GetRegions).Methods("GET", "OPTIONS")

	api.HandleFunc("/checkout", rt.checkout.CreateCheckout).Methods("POST", "OPTIONS")
	api.HandleFunc("/ecpay/callback", rt.callback.HandleCallback).Methods("POST")

	api.HandleFunc("/line/webhook", rt.webhook.HandleWebhook).Methods("POST")
	api.HandleFunc("/line/webhook", rt.webhook.VerifyEndpoint).Methods("GET")

	api.HandleFunc("/auth/refresh", rt.auth.RefreshToken).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/logout", rt.auth.Logout).Methods("POST", "OPTIONS")

	internal := api.PathPrefix("/internal").Subrouter()
	internal.Use(middleware.RequireInternalSecret(rt.internalSecret))
	internal.HandleFunc("/session", rt.internal.CreateSession).Methods("POST")
	internal.HandleFunc("/accounts/{id}/subscription", rt.internal.SetSubscription).Methods("POST")

	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.AuthMiddleware(rt.tokens, rt.sessions))
	protected.HandleFunc("/me", rt.account.GetMe).Methods("GET", "OPTIONS")
	protected.HandleFunc("/monitors", rt.monitors.ListMonitors).Methods("GET", "OPTIONS")
	protected.HandleFunc("/monitors", rt.monitors.CreateMonitor).Methods("POST")
	protected.HandleFunc("/monitors/{id}", rt.monitors.UpdateMonitor).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/monitors/{id}", rt.monitors.DeleteMonitor).Methods("DELETE")

	return router
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile | log.Lmicroseconds | log.LUTC)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Refusing to start: %v", err)
	}

	var db *database.Connection
	var err error
	for retries := 0; retries < 5; retries++ {
		db, err = database.NewConnection(cfg.Database)
		if err == nil {
			break
		}
		retryDelay := time.Duration(retries+1) * time.Second
		log.Printf("Failed to connect to database (attempt %d/5): %v. Retrying in %v...",
			retries+1, err, retryDelay)
		time.Sleep(retryDelay)
	}
	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()

	schemaCtx, schemaCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureSchema(schemaCtx); err != nil {
		schemaCancel()
		log.Fatalf("Failed to apply schema: %v", err)
	}
	schemaCancel()
	log.Println("Successfully connected to database")

	redisClient, err := queue.NewRedisClient(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	jobQueue := queue.NewQueue(redisClient, jobQueueName)
	defer jobQueue.Close()
	log.Println("Successfully connected to Redis")

	gateway := ecpay.NewGateway(ecpay.Config{
		MerchantID: cfg.ECPay.MerchantID,
		HashKey:    cfg.ECPay.HashKey,
		HashIV:     cfg.ECPay.HashIV,
		Production: cfg.IsProduction(),
		BaseURL:    cfg.Server.BaseURL,
	})
	log.Printf("ECPay gateway endpoint: %s", gateway.Endpoint())

	lineClient := line.NewClient(cfg.Line.APIBaseURL, cfg.Line.AccessToken)
	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, db)
	sessionStore := middleware.NewSessionStore(middleware.SessionOptions{
		Secret:   cfg.Session.Secret,
		Domain:   cfg.Session.Domain,
		MaxAge:   cfg.Session.MaxAge,
		Secure:   cfg.Session.Secure,
		HttpOnly: cfg.Session.HttpOnly,
	})

	mailer, err := email.NewSender(cfg.Email)
	if err != nil {
		log.Printf("Warning: email disabled, receipts will be skipped: %v", err)
	}

	workerConcurrency := cfg.Redis.WorkerConcurrency
	if workerConcurrency < 1 {
		workerConcurrency = 1
	} else if workerConcurrency > 8 {
		workerConcurrency = 8
	}

	subscriptionWorker := worker.NewWorker(jobQueue, db, mailer)
	if err := subscriptionWorker.Start(workerConcurrency); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}
	defer subscriptionWorker.Stop()

	checkoutHandler := handlers.NewCheckoutHandler(gateway)
	callbackHandler := handlers.NewPaymentCallbackHandler(gateway, jobQueue)
	webhookHandler := handlers.NewLineWebhookHandler(cfg.Line.ChannelSecret, db, lineClient)
	planHandler := handlers.NewPlanHandler()
	authHandler := handlers.NewAuthHandler(jwtService, sessionStore)
	internalHandler := handlers.NewInternalHandler(db, jwtService, sessionStore)
	accountHandler := handlers.NewAccountHandler(db)
	monitorHandler := handlers.NewMonitorHandler(db)
	healthHandler := handlers.NewHealthHandler(map[string]handlers.Pinger{
		"database": db,
		"redis": handlers.PingerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}),
	})

	router := newRouter(routes{
		allowedOrigin:  cfg.Server.BaseURL,
		internalSecret: cfg.Auth.InternalSecret,
		tokens:         jwtService,
		sessions:       sessionStore,
		limiter:        middleware.NewRateLimiter(redisClient),
		checkout:       checkoutHandler,
		callback:       callbackHandler,
		webhook:        webhookHandler,
		plans:          planHandler,
		auth:           authHandler,
		internal:       internalHandler,
		account:        accountHandler,
		monitors:       monitorHandler,
		health:         healthHandler,
	})

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited properly")
}
