package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/yashgoel75/cleit-cdc/internal/auth/credentials"
	"github.com/yashgoel75/cleit-cdc/internal/auth/handler"
	"github.com/yashgoel75/cleit-cdc/internal/auth/provider"
	"github.com/yashgoel75/cleit-cdc/internal/auth/provider/oidc"
	"github.com/yashgoel75/cleit-cdc/internal/auth/resolver"
	"github.com/yashgoel75/cleit-cdc/internal/config"
	"github.com/yashgoel75/cleit-cdc/internal/gate"
	"github.com/yashgoel75/cleit-cdc/internal/logger"
	"github.com/yashgoel75/cleit-cdc/internal/metrics"
	"github.com/yashgoel75/cleit-cdc/internal/middleware"
	"github.com/yashgoel75/cleit-cdc/internal/profile"
	"github.com/yashgoel75/cleit-cdc/internal/session"
	"github.com/yashgoel75/cleit-cdc/internal/surface"
	"github.com/yashgoel75/cleit-cdc/internal/token"
	"github.com/yashgoel75/cleit-cdc/internal/utils"
)

// services is everything setupHTTP builds on top of the infrastructure.
type services struct {
	router *gin.Engine
	host   *surface.Host
	events *eventBus
}

func setupHTTP(ctx context.Context, cfg config.Config, infra *Infra) (*services, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sessions := session.NewRedisStore(infra.Redis.Client)
	hub := session.NewHub(sessions)

	issuer, err := newIssuer(cfg)
	if err != nil {
		return nil, err
	}

	events, err := setupEvents(cfg, infra.Redis, hub)
	if err != nil {
		return nil, err
	}

	providers, bearerOIDC := setupProviders(ctx, cfg)
	verifier := token.ChainVerifier{issuer}
	if bearerOIDC != nil {
		verifier = append(verifier, bearerOIDC)
	}

	cookies := session.DefaultCookieOptions(cfg.CookieSecure)
	authHandler := handler.NewHandler(handler.Deps{
		Providers:   providers,
		Sessions:    sessions,
		Resolver:    resolver.NewDBResolver(infra.DB.DB),
		Credentials: credentials.NewService(infra.DB.DB),
		Bus:         events.Bus,
	}, handler.Options{
		Cookies:    cookies,
		AfterLogin: cfg.AfterLoginPath,
		LoginPage:  cfg.Gate.SignedOutPath,
	})

	profileHandler := profile.NewHandler(infra.Profiles, events.Bus)

	host := surface.NewHost(surface.Deps{
		Hub:      hub,
		Sessions: sessions,
		Bus:      events.Bus,
		Issuer:   issuer,
		Profiles: profile.NewFetcher(cfg.ProfileAPIURL, &http.Client{Timeout: cfg.Gate.ResolveTimeout}),
		Recorder: m,
	}, surface.Config{
		Layout: gate.Policy{Locations: gate.Locations{
			SignedOut:         cfg.Gate.SignedOutPath,
			ProfileCompletion: cfg.Gate.CompletionPath,
		}},
		Greeting: gate.Policy{Locations: gate.Locations{
			SignedOut: cfg.Gate.GreetingSignedOut,
		}},
		ResolveTimeout: cfg.Gate.ResolveTimeout,
		OnTokenError:   gate.ParseFailureMode(cfg.Gate.OnTokenError),
		OnFetchError:   gate.ParseFailureMode(cfg.Gate.OnFetchError),
	})

	router := gin.New()
	router.Use(gin.Recovery(), m.Gin())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler(reg)))

	authHandler.RegisterRoutes(router)
	profileHandler.RegisterRoutes(router, middleware.BearerAuth(verifier))
	host.RegisterRoutes(router)

	me := router.Group("/api", middleware.GinRequireAuth(middleware.NewAuthMiddleware(sessions)))
	me.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetString("userID"),
			"email":   c.GetString("email"),
		})
	})

	return &services{router: router, host: host, events: events}, nil
}

// newIssuer signs service tokens. Without TOKEN_SECRET a random secret is
// used, which only works for a single host.
func newIssuer(cfg config.Config) (*token.Issuer, error) {
	secret := cfg.TokenSecret
	if secret == "" {
		s, err := utils.RandomString(32)
		if err != nil {
			return nil, err
		}
		secret = s
		logger.Warn("TOKEN_SECRET not set, using an ephemeral signing secret", nil)
	}
	return token.NewIssuer(secret, cfg.TokenTTL)
}

// setupProviders starts every configured OIDC provider. A provider that
// fails discovery is skipped so the service still starts. The Keycloak
// realm, when configured, also verifies bearer tokens.
func setupProviders(ctx context.Context, cfg config.Config) (*provider.Registry, token.Verifier) {
	dctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var list []provider.OAuthProvider
	for _, pc := range []oidc.Config{
		oidc.Google(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL),
		oidc.Keycloak(cfg.KeycloakIssuer, cfg.KeycloakClientID, cfg.KeycloakRedirectURL, cfg.KeycloakPublicBaseURL),
	} {
		if !pc.Enabled() {
			continue
		}
		p, err := oidc.New(dctx, pc)
		if err != nil {
			logger.Error("oidc provider disabled", map[string]any{
				"provider": pc.Name,
				"error":    err.Error(),
			})
			continue
		}
		list = append(list, p)
	}
	registry := provider.NewRegistry(list...)
	logger.Info("oauth providers ready", map[string]any{"providers": registry.Names()})

	if cfg.KeycloakIssuer == "" || cfg.KeycloakClientID == "" {
		return registry, nil
	}
	v, err := token.NewOIDCVerifier(dctx, cfg.KeycloakIssuer, cfg.KeycloakClientID)
	if err != nil {
		logger.Error("oidc bearer verifier disabled", map[string]any{"error": err.Error()})
		return registry, nil
	}
	return registry, v
}
