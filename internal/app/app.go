// Package app assembles the Counterplay server: storage backends, the
// OAuth authorization server, the MCP tool surface, and the HTTP mux that
// ties them together.
package app

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/server"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/RyanCardin15/counterplay/internal/config"
	"github.com/RyanCardin15/counterplay/internal/instrumentation"
	"github.com/RyanCardin15/counterplay/internal/loadout"
	"github.com/RyanCardin15/counterplay/internal/oauth"
	"github.com/RyanCardin15/counterplay/internal/security"
	"github.com/RyanCardin15/counterplay/internal/storage"
	"github.com/RyanCardin15/counterplay/internal/storage/memory"
	"github.com/RyanCardin15/counterplay/internal/storage/valkeystore"
	"github.com/RyanCardin15/counterplay/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// App is the assembled server with its teardown hooks.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	httpServer  *http.Server
	instr       *instrumentation.Instrumentation
	rateLimiter *security.RateLimiter
	closers     []func()
}

// New builds the application from configuration.
func New(cfg config.Config) (*App, error) {
	logger := newLogger(cfg.Logging)

	a := &App{cfg: cfg, logger: logger}

	clientStore, flowStore, tokenStore, loadoutStore, err := a.buildStores()
	if err != nil {
		a.Close()
		return nil, err
	}

	instr, err := a.buildInstrumentation()
	if err != nil {
		a.Close()
		return nil, err
	}

	auditor := security.NewAuditor(logger, cfg.OAuth.AuditEnabled)
	a.rateLimiter = security.NewRateLimiter(cfg.OAuth.RateLimitPerSecond, cfg.OAuth.RateLimitBurst, logger)
	a.closers = append(a.closers, a.rateLimiter.Stop)

	oauthServer, err := oauth.NewServer(clientStore, flowStore, tokenStore, &oauth.Config{
		Issuer:               cfg.Server.Issuer,
		DefaultUserID:        cfg.OAuth.DefaultUserID,
		AuthorizationCodeTTL: cfg.OAuth.AuthorizationCodeTTL,
		AccessTokenTTL:       cfg.OAuth.AccessTokenTTL,
		RefreshTokenTTL:      cfg.OAuth.RefreshTokenTTL,
		SupportedScopes:      cfg.OAuth.SupportedScopes,
		TrustProxy:           cfg.OAuth.TrustProxy,
		TrustedProxyCount:    cfg.OAuth.TrustedProxyCount,
		MaxClientsPerIP:      cfg.OAuth.MaxClientsPerIP,
		EnableRegistration:   cfg.OAuth.EnableRegistration,
		AllowedOrigins:       cfg.OAuth.AllowedOrigins,
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to build OAuth server: %w", err)
	}
	oauthServer.SetAuditor(auditor)
	oauthServer.SetRateLimiter(a.rateLimiter)
	oauthServer.SetInstrumentation(instr)

	if err := seedClients(clientStore, cfg.OAuth.Clients); err != nil {
		a.Close()
		return nil, err
	}

	oauthHandler := oauth.NewHandler(oauthServer, logger)

	registry := tools.New(loadoutStore, loadout.NewHeuristicScorer(), logger)
	registry.SetAuditor(auditor)
	registry.SetInstrumentation(instr)

	mcpServer := server.NewMCPServer("counterplay", Version,
		server.WithToolCapabilities(false),
	)
	registry.Register(mcpServer)
	streamable := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
	)

	mux := http.NewServeMux()
	oauthHandler.RegisterRoutes(mux)
	mux.Handle("/mcp", oauthHandler.ValidateToken(streamable))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","version":%q}`+"\n", Version)
	})

	a.httpServer = &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           security.RequestIDMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// buildStores constructs the configured storage backend. The memory and
// valkey backends both implement every store interface with one value.
func (a *App) buildStores() (storage.ClientStore, storage.FlowStore, storage.TokenStore, loadout.Store, error) {
	switch a.cfg.Storage.Backend {
	case "valkey":
		vcfg := a.cfg.Storage.Valkey
		var tlsCfg *tls.Config
		if vcfg.TLS {
			tlsCfg = &tls.Config{}
		}
		tokenBackend, err := valkeystore.New(valkeystore.Config{
			Address:   vcfg.Address,
			Password:  vcfg.Password,
			DB:        vcfg.DB,
			KeyPrefix: vcfg.KeyPrefix,
			TLS:       tlsCfg,
			Logger:    a.logger,
		})
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("failed to connect token store: %w", err)
		}
		a.closers = append(a.closers, tokenBackend.Close)

		loadoutBackend, err := loadout.NewValkeyStore(loadout.ValkeyConfig{
			Address:   vcfg.Address,
			Password:  vcfg.Password,
			DB:        vcfg.DB,
			KeyPrefix: vcfg.KeyPrefix,
			Logger:    a.logger,
		})
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("failed to connect loadout store: %w", err)
		}
		a.closers = append(a.closers, loadoutBackend.Close)
		return tokenBackend, tokenBackend, tokenBackend, loadoutBackend, nil

	default:
		mem := memory.New()
		a.closers = append(a.closers, mem.Stop)
		return mem, mem, mem, loadout.NewMemoryStore(), nil
	}
}

// buildInstrumentation wires the OTel SDK providers when telemetry is on.
func (a *App) buildInstrumentation() (*instrumentation.Instrumentation, error) {
	cfg := instrumentation.Config{
		ServiceName:    a.cfg.Telemetry.ServiceName,
		ServiceVersion: Version,
		Enabled:        a.cfg.Telemetry.Enabled,
	}
	if a.cfg.Telemetry.Enabled {
		cfg.MeterProvider = sdkmetric.NewMeterProvider()
		cfg.TracerProvider = sdktrace.NewTracerProvider()
	}

	instr, err := instrumentation.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build instrumentation: %w", err)
	}
	a.instr = instr
	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := instr.Shutdown(ctx); err != nil {
			a.logger.Warn("Instrumentation shutdown failed", "error", err)
		}
	})
	return instr, nil
}

// seedClients loads static clients from config into the registry.
func seedClients(store storage.ClientStore, clients []config.StaticClient) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, c := range clients {
		clientType := oauth.ClientTypePublic
		authMethod := oauth.TokenEndpointAuthMethodNone
		if c.ClientSecretHash != "" {
			clientType = oauth.ClientTypeConfidential
			authMethod = oauth.TokenEndpointAuthMethodSecretBasic
		}
		client := &storage.Client{
			ClientID:                c.ClientID,
			ClientSecretHash:        c.ClientSecretHash,
			ClientType:              clientType,
			RedirectURIs:            c.RedirectURIs,
			TokenEndpointAuthMethod: authMethod,
			GrantTypes:              []string{oauth.GrantTypeAuthorizationCode, oauth.GrantTypeRefreshToken},
			ResponseTypes:           []string{"code"},
			ClientName:              c.ClientName,
			Scopes:                  c.Scopes,
			CreatedAt:               time.Now(),
		}
		if err := store.SaveClient(ctx, client); err != nil {
			return fmt.Errorf("failed to seed client %s: %w", c.ClientID, err)
		}
	}
	return nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Counterplay listening",
			"addr", a.httpServer.Addr,
			"issuer", a.cfg.Server.Issuer,
			"storage", a.cfg.Storage.Backend)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	a.Close()
	return err
}

// Close releases all resources. Safe to call more than once.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Handler exposes the assembled mux for tests.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
