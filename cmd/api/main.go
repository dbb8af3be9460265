package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"worksite-attendance/internal/attendance"
	"worksite-attendance/internal/auth"
	"worksite-attendance/internal/config"
	"worksite-attendance/internal/embedjob"
	"worksite-attendance/internal/employee"
	"worksite-attendance/internal/httpapi"
	"worksite-attendance/internal/httpmiddleware"
	"worksite-attendance/internal/media"
	"worksite-attendance/internal/queue"
	"worksite-attendance/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func run(cfg config.App) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	locker, err := media.NewLocker(cfg.UploadRoot)
	if err != nil {
		return err
	}

	loc, err := time.LoadLocation(cfg.AttendanceZone)
	if err != nil {
		log.Printf("warning: unknown ATTENDANCE_ZONE %q, using local zone: %v", cfg.AttendanceZone, err)
		loc = time.Local
	}

	var redisClient *store.Redis
	var q queue.Queue
	if cfg.QueueBackend == "redis" {
		redisClient = store.NewRedis(cfg.RedisAddr)
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
		log.Println("enrollment jobs queued to redis; run cmd/worker to process them")
	} else {
		q = queue.NewInMemory(64)
		// Memory backend: process embedding jobs inside the API process.
		runner := embedjob.NewRunner(q, cfg.EmbedderCommand, cfg.EmbedTimeout, cfg.EmbedWorkers)
		go func() {
			if err := runner.Run(ctx); err != nil {
				log.Printf("embed runner stopped: %v", err)
			}
		}()
	}

	empRepo := employee.NewRepository(db.Client)
	attRepo := attendance.NewRepository(db.Client)
	jobs := embedjob.NewSubmitter(q)
	employees := employee.NewService(empRepo, locker, jobs, cfg.BcryptCost)
	engine := attendance.NewService(attRepo, empRepo, loc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		resp := gin.H{"status": "ok", "db": dbHealthy}
		if redisClient != nil {
			redisHealthy := redisClient.Healthy(c.Request.Context())
			resp["redis"] = redisHealthy
			if !redisHealthy {
				status = http.StatusServiceUnavailable
			}
		}
		if !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
	})

	h := httpapi.New(employees, engine, locker, httpapi.Config{
		JWTIssuer:     cfg.JWTIssuer,
		JWTSigningKey: cfg.JWTSigningKey,
		SessionTTL:    cfg.SessionTTL,
		CookieSecure:  gin.Mode() == gin.ReleaseMode,
	})
	h.Mount(r,
		auth.SessionAuth(cfg.JWTSigningKey, cfg.JWTIssuer),
		auth.RequireDesignation("Admin"),
	)

	r.Static("/uploads", locker.Root())

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced shutdown: %v", err)
	}

	log.Println("server exited")
	return nil
}

// corsMiddleware allows the browser frontend to call the API directly.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
