package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"citizenportal/internal/audit"
	authhandler "citizenportal/internal/auth/handler"
	authmetrics "citizenportal/internal/auth/metrics"
	"citizenportal/internal/auth/secrets"
	authservice "citizenportal/internal/auth/service"
	"citizenportal/internal/auth/store/refreshtoken"
	jwttoken "citizenportal/internal/jwt_token"
	"citizenportal/internal/platform/config"
	"citizenportal/internal/platform/httpserver"
	"citizenportal/internal/platform/logger"
	platformmetrics "citizenportal/internal/platform/metrics"
	platformredis "citizenportal/internal/platform/redis"
	vhandler "citizenportal/internal/verification/handler"
	vmetrics "citizenportal/internal/verification/metrics"
	"citizenportal/internal/verification/models"
	vservice "citizenportal/internal/verification/service"
	vstore "citizenportal/internal/verification/store"
	"citizenportal/migrations"
	"citizenportal/pkg/email"
	"citizenportal/pkg/platform/httputil"
	"citizenportal/pkg/platform/middleware/metadata"
	"citizenportal/pkg/platform/middleware/request"
	"citizenportal/pkg/platform/middleware/requesttime"
)

const shutdownGrace = 15 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// storage is the set of stores for one persistence mode.
type storage struct {
	users         vservice.UserStore
	apps          vservice.ApplicationStore
	tx            vservice.StoreTx
	refreshTokens authservice.RefreshTokenStore
	audit         audit.Store
	checks        map[string]httpserver.Check
	closers       []func() error
}

func (s *storage) close(log *slog.Logger) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Warn("failed to close resource", "error", err)
		}
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log)
	slog.SetDefault(log)
	if cfg.UsesDevSigningKey() {
		log.Warn("JWT_SIGNING_KEY not set, using the development key")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.close(log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Audit events are always persisted; Kafka streaming is optional.
	var publisherOpts []audit.PublisherOption
	var auditWorker *audit.Worker
	if len(cfg.Audit.KafkaBrokers) > 0 {
		kafka, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.Audit.KafkaBrokers...),
			kgo.ClientID("citizen-portal"),
			kgo.ProducerBatchMaxBytes(1<<20),
		)
		if err != nil {
			return fmt.Errorf("create kafka client: %w", err)
		}
		defer kafka.Close()
		stream := make(chan audit.Event, cfg.Audit.BufferSize)
		publisherOpts = append(publisherOpts, audit.WithStream(stream))
		auditWorker = audit.NewWorker(audit.NewKafkaSink(kafka, cfg.Audit.Topic), stream, log)
		log.Info("streaming audit events to kafka", "topic", cfg.Audit.Topic)
	}
	publisherOpts = append(publisherOpts, audit.WithPublisherLogger(log))
	auditPublisher := audit.NewPublisher(stores.audit, publisherOpts...)

	hasher := secrets.NewHasher(cfg.Auth.BcryptCost)
	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)

	authSvc, err := authservice.New(stores.users, stores.refreshTokens, jwtService, hasher,
		&authservice.Config{
			AccessTokenTTL:  cfg.Auth.AccessTokenTTL,
			RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
		},
		authservice.WithLogger(log),
		authservice.WithAuditPublisher(auditPublisher),
		authservice.WithMetrics(authmetrics.New(reg)),
	)
	if err != nil {
		return fmt.Errorf("build auth service: %w", err)
	}

	verificationSvc, err := vservice.New(stores.users, stores.apps, stores.tx, authSvc, hasher,
		vservice.WithLogger(log),
		vservice.WithAuditPublisher(auditPublisher),
		vservice.WithMetrics(vmetrics.New(reg)),
		vservice.WithTracer(otel.Tracer("citizenportal/verification")),
	)
	if err != nil {
		return fmt.Errorf("build verification service: %w", err)
	}

	if err := seedStaff(ctx, cfg.Staff, stores.users, hasher, log); err != nil {
		return err
	}

	cookies := httputil.SessionCookies{Secure: cfg.Auth.CookieSecure, RefreshTTL: cfg.Auth.RefreshTokenTTL}
	httpMetrics := platformmetrics.New(reg)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", request.HeaderRequestID},
		ExposedHeaders:   []string{request.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(request.RequestID)
	r.Use(request.Recovery(log))
	r.Use(request.Logger(log))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(httpMetrics.Middleware)

	r.Get("/healthz", httpserver.HealthHandler(stores.checks))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	authhandler.New(authSvc, log, cookies).Register(r)
	vhandler.New(verificationSvc, log, cookies, jwttoken.NewJWTServiceAdapter(jwtService)).Register(r)

	srv := httpserver.New(cfg.Addr, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, shutdownGrace, log)
	})
	g.Go(func() error {
		return authSvc.RunExpirySweeper(gctx, cfg.Auth.SweepInterval)
	})
	if auditWorker != nil {
		g.Go(func() error {
			if err := auditWorker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// openStorage picks Postgres when DATABASE_URL is set and an in-memory store
// otherwise. Refresh tokens move to Redis when REDIS_URL is set.
func openStorage(ctx context.Context, cfg config.Config, log *slog.Logger) (*storage, error) {
	s := &storage{checks: map[string]httpserver.Check{}}

	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory storage")
		mem := vstore.NewInMemory()
		s.users = mem.Users()
		s.apps = mem.Applications()
		s.tx = verificationMemoryTx{store: mem}
		s.refreshTokens = refreshtoken.New()
		s.audit = audit.NewInMemoryStore()
	} else {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		s.closers = append(s.closers, db.Close)
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			s.close(log)
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := migrations.Apply(ctx, db); err != nil {
			s.close(log)
			return nil, err
		}
		s.users = vstore.NewPostgresUsers(db)
		s.apps = vstore.NewPostgresApplications(db)
		s.tx = newVerificationPostgresTx(db, cfg.TxTimeout)
		s.refreshTokens = refreshtoken.NewPostgres(db)
		s.audit = audit.NewPostgresStore(db)
		s.checks["database"] = db.PingContext
	}

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		s.close(log)
		return nil, err
	}
	if redisClient != nil {
		s.closers = append(s.closers, redisClient.Close)
		s.refreshTokens = refreshtoken.NewRedis(redisClient.Client)
		s.checks["redis"] = redisClient.Health
		log.Info("refresh tokens stored in redis")
	}
	return s, nil
}

func seedStaff(ctx context.Context, accounts []config.StaffAccount, users vservice.UserStore, hasher *secrets.Hasher, log *slog.Logger) error {
	for _, account := range accounts {
		hash, err := hasher.Hash(account.Password)
		if err != nil {
			return fmt.Errorf("hash staff password for %s: %w", account.Email, err)
		}
		user, err := vstore.SeedStaff(ctx, users, vstore.StaffAccount{
			Email:        email.Normalize(account.Email),
			PasswordHash: hash,
			Name:         account.Name,
			Role:         models.Role(account.Role),
		})
		if err != nil {
			return fmt.Errorf("seed staff account %s: %w", account.Email, err)
		}
		log.Info("staff account ready", "user_id", user.ID.String(), "role", user.Role.String())
	}
	return nil
}
