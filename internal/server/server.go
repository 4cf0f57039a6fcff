package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/gamerank/internal/api"
	"github.com/victornm/gamerank/internal/catalog"
	"github.com/victornm/gamerank/internal/domain"
	"github.com/victornm/gamerank/internal/event"
	"github.com/victornm/gamerank/internal/history"
	"github.com/victornm/gamerank/internal/leaderboard"
	"github.com/victornm/gamerank/internal/recommend"
	"github.com/victornm/gamerank/internal/telemetry"
)

type RedisConfig struct {
	Addrs  []string `validate:"required,min=1"`
	Pass   string
	Prefix string `validate:"required"`
}

type Config struct {
	HTTP struct {
		Port int32 `validate:"required,gt=0"`
	}

	GRPC struct {
		Port int32 `validate:"required,gt=0"`
	}

	Redis struct {
		Leaderboard RedisConfig
		Cache       RedisConfig
		Pubsub      RedisConfig
	}

	Postgres struct {
		History struct {
			Addr string `validate:"required"`
			User string `validate:"required"`
			Pass string
			Name string `validate:"required"`
		}
	}

	Catalog struct {
		// Path of the YAML catalog, the built-in catalog is used when empty.
		Path string
	}

	Recommend struct {
		CacheTTL     time.Duration `validate:"gte=0"`
		HistoryLimit int           `validate:"gte=0,lte=50"`
	}

	Event struct {
		PoolSize int           `validate:"gte=0"`
		Timeout  time.Duration `validate:"gte=0"`
	}
}

// DefaultConfig holds the values used for settings missing from the config file.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 8081
	c.Recommend.CacheTTL = 24 * time.Hour
	c.Recommend.HistoryLimit = history.MaxPlays
	c.Event.PoolSize = event.DefaultPoolSize
	c.Event.Timeout = event.DefaultTimeout
	return c
}

type Server struct {
	c Config

	eb *event.Bus

	catalog *domain.Catalog

	infra struct {
		redis struct {
			leaderboard redis.UniversalClient
			cache       redis.UniversalClient
			pubsub      redis.UniversalClient
		}

		postgres struct {
			history *pgxpool.Pool
		}
	}

	service struct {
		history     *history.Service
		leaderboard *leaderboard.Service
		recommend   *recommend.Service
	}

	health *health.Server
	http   *http.Server
	grpc   *grpc.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus(
		event.WithPoolSize(c.Event.PoolSize),
		event.WithTimeout(c.Event.Timeout),
	)

	var err error
	s.catalog, err = catalog.Load(c.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("server: load catalog: %w", err)
	}

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(rc RedisConfig) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    rc.Addrs,
			Password: rc.Pass,
		})

		if err := telemetry.MonitorRedis(r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.leaderboard, err = connect(s.c.Redis.Leaderboard)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	s.infra.redis.cache, err = connect(s.c.Redis.Cache)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	s.infra.redis.pubsub, err = connect(s.c.Redis.Pubsub)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() (err error) {
	connect := func(addr, user, pass, name string) (*pgxpool.Pool, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", user, pass, addr, name))
		if err != nil {
			return nil, err
		}

		db, err := pgxpool.NewWithConfig(ctx, cc)
		if err != nil {
			return nil, err
		}

		if err := db.Ping(ctx); err != nil {
			return nil, err
		}

		return db, nil
	}

	pc := s.c.Postgres.History
	s.infra.postgres.history, err = connect(pc.Addr, pc.User, pc.Pass, pc.Name)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	return nil
}

func (s *Server) initService() error {
	s.service.history = history.NewService(history.Config{
		EventBus: s.eb,
		DB:       s.infra.postgres.history,
		Catalog:  s.catalog,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.service.history.Migrate(ctx); err != nil {
		return err
	}

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.leaderboard,
		Prefix:   s.c.Redis.Leaderboard.Prefix,
		Catalog:  s.catalog,
	})

	s.service.recommend = recommend.NewService(recommend.Config{
		EventBus:     s.eb,
		Catalog:      s.catalog,
		Source:       s.service.history,
		Redis:        s.infra.redis.cache,
		Prefix:       s.c.Redis.Cache.Prefix,
		TTL:          s.c.Recommend.CacheTTL,
		HistoryLimit: s.c.Recommend.HistoryLimit,
	})

	return nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())

	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)

	api.New(api.Config{
		GRPC:         s.grpc,
		HTTP:         e,
		EventBus:     s.eb,
		Leaderboard:  s.service.leaderboard,
		Recommend:    s.service.recommend,
		History:      s.service.history,
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	s.infra.postgres.history.Close()
	for _, r := range []redis.UniversalClient{s.infra.redis.leaderboard, s.infra.redis.cache, s.infra.redis.pubsub} {
		if err := r.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "error", err)
		}
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
