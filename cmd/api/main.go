package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/adiwidodo/backend-belanja/internal/auth"
	"github.com/adiwidodo/backend-belanja/internal/cart"
	"github.com/adiwidodo/backend-belanja/internal/catalog"
	"github.com/adiwidodo/backend-belanja/internal/common"
	"github.com/adiwidodo/backend-belanja/internal/config"
	"github.com/adiwidodo/backend-belanja/internal/coupon"
	"github.com/adiwidodo/backend-belanja/internal/db"
	"github.com/adiwidodo/backend-belanja/internal/health"
	"github.com/adiwidodo/backend-belanja/internal/newsletter"
	"github.com/adiwidodo/backend-belanja/internal/notify"
	"github.com/adiwidodo/backend-belanja/internal/obs"
	"github.com/adiwidodo/backend-belanja/internal/order"
	"github.com/adiwidodo/backend-belanja/internal/pricing"
	"github.com/adiwidodo/backend-belanja/internal/reviews"
	"github.com/adiwidodo/backend-belanja/internal/security"
	"github.com/adiwidodo/backend-belanja/internal/store"
	"github.com/adiwidodo/backend-belanja/internal/user"
	"github.com/adiwidodo/backend-belanja/internal/wishlist"
)

const (
	serviceName       = "belanja-api"
	accessCookieName  = "access_token"
	refreshCookieName = "refresh_token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   serviceName,
			Endpoint:      cfg.TracingEndpoint,
			Exporter:      "otlp",
			SamplingRatio: cfg.TracingSampleRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, serviceName)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	taskClient := asynq.NewClient(asynqOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()
	enqueuer := &notify.Enqueuer{Client: taskClient}

	st := store.New(pool)
	validate := validator.New()
	params := pricing.Params{
		TaxBps:                cfg.TaxRateBps,
		ShippingFlatFee:       cfg.ShippingFlatFee,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
	}

	authService, err := auth.NewService(auth.Config{
		Store:           st,
		Secret:          cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		ResetTokenTTL:   cfg.PasswordResetTTL,
		Mailer:          enqueuer,
		PublicBaseURL:   cfg.PublicBaseURL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := &auth.Handler{
		Service:           authService,
		AccessCookieName:  accessCookieName,
		RefreshCookieName: refreshCookieName,
		CookieDomain:      cfg.CookieDomain,
		CookieSecure:      cfg.CookieSecure,
		CookieSameSite:    cfg.CookieSameSite,
	}
	authMiddleware := auth.Middleware{Service: authService, AccessCookie: accessCookieName}

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Store:        st,
		Cache:        catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		Validate:     validate,
		DefaultLimit: cfg.CatalogDefaultLimit,
		MaxLimit:     cfg.CatalogMaxLimit,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := &catalog.Handler{Service: catalogService}

	couponService, err := coupon.NewService(st, validate)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise coupon service")
	}
	couponHandler := &coupon.Handler{Service: couponService}

	cartService, err := cart.NewService(cart.ServiceConfig{
		Store:    st,
		Coupons:  couponService,
		Params:   params,
		Currency: cfg.CurrencyCode,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise cart service")
	}
	cartHandler := &cart.Handler{Service: cartService}

	orderService, err := order.NewService(order.ServiceConfig{
		Store:    st,
		Carts:    cartService,
		Coupons:  couponService,
		Notifier: enqueuer,
		Params:   params,
		Currency: cfg.CurrencyCode,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise order service")
	}
	orderHandler := &order.Handler{Service: orderService}

	userService, err := user.NewService(st)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise user service")
	}
	userHandler := &user.Handler{Service: userService}

	reviewService, err := reviews.NewService(st)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise review service")
	}
	reviewHandler := &reviews.Handler{Service: reviewService}

	wishlistService, err := wishlist.NewService(st)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise wishlist service")
	}
	wishlistHandler := &wishlist.Handler{Service: wishlistService}

	newsletterService, err := newsletter.NewService(st, enqueuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise newsletter service")
	}
	newsletterHandler := &newsletter.Handler{Service: newsletterService}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	authRate, err := limiter.NewRateFromFormatted(cfg.AuthRateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse auth rate limit")
	}
	limiterStore, err := limiterredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "ratelimit"})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter store")
	}
	authLimiter := limiterstdlib.NewMiddleware(limiter.New(limiterStore, authRate))

	httpMetrics := obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBuckets), nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.CookieSecure}.Middleware)
	r.Use(security.BodyLimit{Max: 1 << 20}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	if cfg.EnablePprof {
		r.Mount("/debug/pprof", pprofMux())
	}

	healthHandler := health.Handler{Checker: health.Probes{Pool: pool, Redis: redisClient}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/products", catalogHandler.ListProducts)
		v.Get("/products/{slug}", catalogHandler.GetProduct)
		v.Get("/products/{slug}/related", catalogHandler.ListRelated)
		v.Get("/products/{slug}/reviews", reviewHandler.ListForProduct)
		v.Get("/categories", catalogHandler.ListCategories)
		v.Get("/brands", catalogHandler.ListBrands)
		v.Get("/coupons", couponHandler.ListAvailable)
		v.Post("/coupons/validate", couponHandler.Validate)
		v.Post("/newsletter/subscribe", newsletterHandler.Subscribe)
		v.Post("/newsletter/unsubscribe", newsletterHandler.Unsubscribe)

		v.Route("/auth", func(a chi.Router) {
			a.Group(func(limited chi.Router) {
				limited.Use(authLimiter.Handler)
				limited.Post("/register", authHandler.Register)
				limited.Post("/login", authHandler.Login)
				limited.Post("/password/forgot", authHandler.ForgotPassword)
				limited.Post("/password/reset", authHandler.ResetPassword)
			})
			a.Post("/refresh", authHandler.Refresh)
			a.Post("/logout", authHandler.Logout)
			a.With(authMiddleware.RequireAuth).Get("/me", authHandler.Me)
		})

		v.Route("/users/me", func(me chi.Router) {
			me.Use(authMiddleware.RequireAuth)
			me.Get("/", userHandler.GetProfile)
			me.Put("/", userHandler.UpdateProfile)
			me.Route("/addresses", func(a chi.Router) {
				a.Get("/", userHandler.ListAddresses)
				a.Post("/", userHandler.CreateAddress)
				a.Put("/{id}", userHandler.UpdateAddress)
				a.Delete("/{id}", userHandler.DeleteAddress)
				a.Post("/{id}/default", userHandler.SetDefaultAddress)
			})
		})

		v.Route("/cart", func(c chi.Router) {
			c.Use(authMiddleware.RequireAuth)
			c.Get("/", cartHandler.Get)
			c.Delete("/", cartHandler.Clear)
			c.Post("/items", cartHandler.AddItem)
			c.Put("/items/{productID}", cartHandler.UpdateItem)
			c.Delete("/items/{productID}", cartHandler.RemoveItem)
			c.Post("/coupon", cartHandler.ApplyCoupon)
			c.Delete("/coupon", cartHandler.RemoveCoupon)
		})

		v.Route("/orders", func(o chi.Router) {
			o.Use(authMiddleware.RequireAuth)
			o.With(idem.Middleware).Post("/", orderHandler.Create)
			o.Get("/", orderHandler.List)
			o.Get("/track/{orderNumber}", orderHandler.Track)
			o.Get("/{id}", orderHandler.Get)
			o.Post("/{id}/cancel", orderHandler.Cancel)
		})

		v.Group(func(authed chi.Router) {
			authed.Use(authMiddleware.RequireAuth)
			authed.Post("/products/{slug}/reviews", reviewHandler.Create)
			authed.Put("/reviews/{id}", reviewHandler.Update)
			authed.Delete("/reviews/{id}", reviewHandler.Delete)
			authed.Post("/reviews/{id}/helpful", reviewHandler.MarkHelpful)
			authed.Get("/wishlist", wishlistHandler.List)
			authed.Post("/wishlist", wishlistHandler.Add)
			authed.Delete("/wishlist/{productID}", wishlistHandler.Remove)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAdmin)
			admin.Post("/products", catalogHandler.CreateProduct)
			admin.Put("/products/{id}", catalogHandler.UpdateProduct)
			admin.Delete("/products/{id}", catalogHandler.DeleteProduct)
			admin.Post("/categories", catalogHandler.CreateCategory)
			admin.Put("/categories/{id}", catalogHandler.UpdateCategory)
			admin.Delete("/categories/{id}", catalogHandler.DeleteCategory)
			admin.Post("/brands", catalogHandler.CreateBrand)
			admin.Put("/brands/{id}", catalogHandler.UpdateBrand)
			admin.Delete("/brands/{id}", catalogHandler.DeleteBrand)
			admin.Get("/coupons", couponHandler.ListAll)
			admin.Post("/coupons", couponHandler.Create)
			admin.Put("/coupons/{id}", couponHandler.Update)
			admin.Delete("/coupons/{id}", couponHandler.Delete)
			admin.Get("/orders", orderHandler.AdminList)
			admin.Get("/orders/{id}", orderHandler.AdminGet)
			admin.Put("/orders/{id}/status", orderHandler.UpdateStatus)
			admin.Get("/reviews", reviewHandler.ListPending)
			admin.Put("/reviews/{id}", reviewHandler.Moderate)
			admin.Delete("/reviews/{id}", reviewHandler.AdminDelete)
			admin.Get("/users", userHandler.ListUsers)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-runCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server shutdown complete")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func pprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	return mux
}
