package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/vietddude/shell/internal/core/config"
	"github.com/vietddude/shell/internal/core/domain"
	"github.com/vietddude/shell/internal/infra/redis"
	"github.com/vietddude/shell/internal/infra/remote"
	"github.com/vietddude/shell/internal/infra/storage"
	"github.com/vietddude/shell/internal/infra/storage/memory"
	"github.com/vietddude/shell/internal/loading/lazy"
	"github.com/vietddude/shell/internal/loading/mount"
	"github.com/vietddude/shell/internal/loading/retry"
	"github.com/vietddude/shell/internal/shell/health"
	"github.com/vietddude/shell/internal/shell/metrics"
)

// shellPrefix is the path prefix of the shell's own endpoints.
const shellPrefix = "/_shell/remotes/"

// Shell is the host application: it owns the chrome, the mounts of every
// session and the HTTP server.
type Shell struct {
	cfg       config.AppConfig
	registry  *mount.Registry
	store     storage.MountRepository
	redis     *redis.Client
	janitor   *mount.Janitor
	healthMon *health.Monitor
	identity  mount.RouteIdentity
	handler   http.Handler
	server    *http.Server
	log       *slog.Logger
}

// NewShell wires the loaders, mounts, state store and handlers described by cfg.
func NewShell(cfg config.AppConfig) (*Shell, error) {
	s := &Shell{
		cfg:      cfg,
		identity: mount.NavKeyIdentity{},
		log:      slog.Default().With("component", "shell"),
	}

	// 1. State store
	s.store = memory.NewMountRepo(memory.NewMemoryStorage())
	if cfg.Session.Backend == config.BackendRedis {
		client, err := redis.NewClient(cfg.Redis)
		if err != nil {
			s.log.Warn("Failed to connect to Redis, mirroring mount state in memory", "error", err)
		} else {
			s.redis = client
			s.store = redis.NewMountRepo(client)
			s.log.Info("Using Redis mount state store")
		}
	}

	// 2. Remotes
	descs := make([]domain.RemoteDescriptor, 0, len(cfg.Remotes))
	transports := make(map[string]health.TransportStats, len(cfg.Remotes))
	names := make([]string, 0, len(cfg.Remotes))
	for _, rc := range cfg.Remotes {
		desc, loader := Descriptor(rc)
		descs = append(descs, desc)
		transports[rc.Name] = loader.Monitor
		names = append(names, rc.Name)
		s.log.Info("Registered remote", "remote", rc.Name, "route", desc.Route, "origin", desc.OriginHint)
	}

	registry, err := mount.NewRegistry(descs, s.mountOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to build mount registry: %w", err)
	}
	s.registry = registry

	// 3. Session expiry
	s.janitor = mount.NewJanitor(registry, cfg.Session.TTL)
	s.janitor.OnSweep(func(int) {
		metrics.ActiveSessions.Set(float64(registry.Sessions()))
	})

	// 4. Health and handlers
	s.healthMon = health.NewMonitor(names, registry, transports)
	s.handler = s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Descriptor builds the descriptor of a configured remote backed by the HTTP
// transport.
func Descriptor(rc config.RemoteConfig) (domain.RemoteDescriptor, *remote.HTTPLoader) {
	policy := rc.Retry.Policy()
	// The transport timeout only guards against a stuck connection; the
	// per-attempt timeout of the policy is enforced by the retrying loader.
	timeout := 30 * time.Second
	if policy.AttemptTimeout > 0 {
		timeout = policy.AttemptTimeout + time.Second
	}
	loader := remote.NewHTTPLoader(rc.Name, rc.URL, timeout)
	return domain.RemoteDescriptor{
		Name:        rc.Name,
		DisplayName: rc.DisplayName,
		OriginHint:  rc.OriginHint,
		Route:       rc.Route,
		Load:        loader.Load,
		Policy:      policy,
	}, loader
}

// Handler returns the shell's HTTP handler.
func (s *Shell) Handler() http.Handler {
	return s.handler
}

// Registry returns the mount registry.
func (s *Shell) Registry() *mount.Registry {
	return s.registry
}

// Start runs the background workers and the HTTP server. It returns once the
// server is listening in the background.
func (s *Shell) Start(ctx context.Context) error {
	if s.cfg.Warmup {
		go func() {
			for _, res := range Probe(ctx, s.registry.Remotes()) {
				if res.Err != nil {
					s.log.Warn("Remote warmup failed", "remote", res.Remote, "kind", domain.Classify(res.Err), "error", res.Err)
					continue
				}
				s.log.Info("Remote warmed up", "remote", res.Remote, "elapsed", res.Elapsed)
			}
		}()
	}

	go s.janitor.Start(ctx)

	go func() {
		s.log.Info("HTTP server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server failed", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down and unmounts every session.
func (s *Shell) Stop(ctx context.Context) error {
	s.log.Info("Stopping shell...")

	err := s.server.Shutdown(ctx)
	s.registry.Close()

	if s.redis != nil {
		if cerr := s.redis.Close(); cerr != nil {
			s.log.Warn("Failed to close Redis", "error", cerr)
		}
	}
	return err
}

// mountOptions wires a new mount to the store, the endpoints and metrics.
func (s *Shell) mountOptions(_ string, desc domain.RemoteDescriptor) []mount.Option {
	name := desc.Name
	base := shellPrefix + url.PathEscape(name)

	return []mount.Option{
		mount.WithStore(s.store, s.cfg.Session.TTL),
		mount.WithSuspenseWait(s.cfg.SuspenseWait),
		mount.WithLinks(base+"/retry", base+"/state"),
		mount.WithDev(s.cfg.Dev),
		mount.WithLazyOptions(
			lazy.WithRetryOptions(
				retry.WithOnAttempt(func(attempt int, err error) {
					metrics.LoadAttemptFailures.WithLabelValues(name, string(domain.Classify(err))).Inc()
				}),
				retry.WithOnStale(func(uint64) {
					metrics.StaleResults.WithLabelValues(name).Inc()
				}),
			),
			lazy.WithOnSettle(func(_ domain.Component, err error, elapsed time.Duration) {
				outcome := "resolved"
				if err != nil {
					outcome = "rejected"
				}
				metrics.LoadCycles.WithLabelValues(name, outcome).Inc()
				metrics.LoadLatency.WithLabelValues(name).Observe(elapsed.Seconds())
			}),
		),
		mount.WithOnError(func(_ string, err error) {
			metrics.BoundaryFailures.WithLabelValues(name, string(domain.Classify(err))).Inc()
		}),
		mount.WithOnTransition(func(t mount.Transition) {
			metrics.MountTransitions.WithLabelValues(t.Remote, string(t.From), string(t.To)).Inc()
		}),
		mount.WithOnRetry(func(string, mount.OrchestratorState) {
			metrics.Retries.WithLabelValues(name).Inc()
		}),
	}
}
