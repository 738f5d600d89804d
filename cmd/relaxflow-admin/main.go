package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/relaxflow-admin/internal/config"
	"github.com/Sternrassler/relaxflow-admin/pkg/api"
	"github.com/Sternrassler/relaxflow-admin/pkg/client"
	"github.com/Sternrassler/relaxflow-admin/pkg/logging"
	"github.com/Sternrassler/relaxflow-admin/pkg/metrics"
)

// Globals are the flags shared by every command.
type Globals struct {
	BaseURL     string        `name:"base-url" env:"RELAXFLOW_BASE_URL" help:"Admin API base URL."`
	Token       string        `env:"RELAXFLOW_TOKEN" help:"Bearer token sent with every request."`
	UserAgent   string        `name:"user-agent" env:"RELAXFLOW_USER_AGENT" help:"User-Agent header."`
	Timeout     time.Duration `env:"RELAXFLOW_TIMEOUT" default:"30s" help:"Timeout per HTTP round trip."`
	MaxRetries  int           `name:"max-retries" env:"RELAXFLOW_MAX_RETRIES" default:"3" help:"Attempts per request for retriable failures; 1 disables retries."`
	RedisURL    string        `name:"redis-url" env:"REDIS_URL" help:"Redis for the response cache and shared rate limit state (redis://host:port/db or host:port)."`
	LogLevel    string        `name:"log-level" env:"LOG_LEVEL" default:"info" help:"Minimum log level: debug, info, warn or error."`
	LogPretty   bool          `name:"log-pretty" env:"LOG_PRETTY" help:"Human-readable logs."`
	MetricsAddr string        `name:"metrics-addr" env:"RELAXFLOW_METRICS_ADDR" help:"Serve /metrics and /health on this address while the command runs."`
	PageSize    int           `name:"page-size" env:"RELAXFLOW_PAGE_SIZE" default:"10" help:"Rows per page."`
	Concurrency int           `name:"concurrency" env:"RELAXFLOW_EXPORT_CONCURRENCY" default:"5" help:"Parallel page fetches during export."`

	Out io.Writer `kong:"-"`
}

// CLI is the command tree.
type CLI struct {
	Globals

	List       ListCmd       `cmd:"" help:"List one page of a collection."`
	Export     ExportCmd     `cmd:"" help:"Fetch every page of a collection as JSON."`
	CreateUser CreateUserCmd `cmd:"" name:"create-user" help:"Create a dashboard user."`
	UpdateUser UpdateUserCmd `cmd:"" name:"update-user" help:"Change a user's role or status."`
	Delete     DeleteCmd     `cmd:"" help:"Delete a record from a collection."`
	Version    VersionCmd    `cmd:"" help:"Print version information."`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "relaxflow-admin: %v\n", err)
		os.Exit(1)
	}
}

// run parses args and executes the selected command, writing results to out.
func run(ctx context.Context, args []string, out io.Writer, options ...kong.Option) error {
	cli := &CLI{}
	opts := append([]kong.Option{
		kong.Name("relaxflow-admin"),
		kong.Description("Admin client for the RelaxFlow dashboard API."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	}, options...)

	parser, err := kong.New(cli, opts...)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cli.Out = out
	return kctx.Run(&cli.Globals)
}

// config assembles a validated configuration from the flags.
func (g *Globals) config() (config.Config, error) {
	cfg := config.Default()
	cfg.BaseURL = g.BaseURL
	cfg.Token = g.Token
	if g.UserAgent != "" {
		cfg.UserAgent = g.UserAgent
	}
	cfg.Timeout = g.Timeout
	cfg.MaxRetries = g.MaxRetries
	cfg.RedisURL = g.RedisURL
	cfg.LogLevel = g.LogLevel
	cfg.LogPretty = g.LogPretty
	cfg.MetricsAddr = g.MetricsAddr
	cfg.PageSize = g.PageSize
	cfg.ExportConcurrency = g.Concurrency

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// session holds what a command needs to talk to the backend.
type session struct {
	cfg     config.Config
	out     io.Writer
	logger  zerolog.Logger
	client  *client.Client
	redis   *redis.Client
	res     *api.Resources
	metrics *metrics.Server
}

func (g *Globals) open(ctx context.Context) (*session, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, err
	}

	logging.Setup(cfg.LoggingConfig())
	s := &session{cfg: cfg, out: g.Out, logger: logging.NewLogger("cli")}

	redisOpts, err := cfg.RedisOptions()
	if err != nil {
		return nil, err
	}
	if redisOpts != nil {
		s.redis = redis.NewClient(redisOpts)
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.redis.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", redisOpts.Addr, err)
		}
		s.logger.Info().Str("addr", redisOpts.Addr).Msg("Connected to Redis")
	}

	s.client, err = client.New(cfg.ClientConfig(s.redis))
	if err != nil {
		s.closeRedis()
		return nil, fmt.Errorf("create client: %w", err)
	}
	s.res = api.NewResources(s.client, logging.NewLogger("api"))

	if cfg.MetricsAddr != "" {
		s.metrics = metrics.NewServer(cfg.MetricsAddr, s.logger)
		s.metrics.Start()
	}
	return s, nil
}

func (s *session) Close() {
	if s.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.metrics.Shutdown(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Metrics server shutdown")
		}
		cancel()
	}
	s.client.Close()
	s.closeRedis()
}

func (s *session) closeRedis() {
	if s.redis != nil {
		s.redis.Close()
	}
}
