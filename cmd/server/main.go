package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	flogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	paywall "github.com/goliatone/go-paywall"
	"github.com/goliatone/go-paywall/provider/mercadopago"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// appConfig is the env-backed configuration. It satisfies both
// paywall.Config and paywall.ProviderConfig.
type appConfig struct {
	signingKey      string
	tokenExpiration int
	contextKey      string
	authScheme      string
	tokenLookup     string
	issuer          string
	audience        []string

	accessToken string
	successURL  string
	failureURL  string
	pendingURL  string

	dsn  string
	port string
}

func (c appConfig) GetSigningKey() string   { return c.signingKey }
func (c appConfig) GetTokenExpiration() int { return c.tokenExpiration }
func (c appConfig) GetContextKey() string   { return c.contextKey }
func (c appConfig) GetAuthScheme() string   { return c.authScheme }
func (c appConfig) GetTokenLookup() string  { return c.tokenLookup }
func (c appConfig) GetIssuer() string       { return c.issuer }
func (c appConfig) GetAudience() []string   { return c.audience }

func (c appConfig) GetAccessToken() string { return c.accessToken }
func (c appConfig) GetSuccessURL() string  { return c.successURL }
func (c appConfig) GetFailureURL() string  { return c.failureURL }
func (c appConfig) GetPendingURL() string  { return c.pendingURL }

func loadConfig() appConfig {
	cfg := appConfig{
		signingKey:      env("JWT_SECRET", ""),
		tokenExpiration: envInt("TOKEN_EXPIRATION_HOURS", paywall.DefaultTokenExpiration),
		contextKey:      env("AUTH_CONTEXT_KEY", "user"),
		authScheme:      env("AUTH_SCHEME", "Bearer"),
		tokenLookup:     env("AUTH_TOKEN_LOOKUP", "header:Authorization"),
		issuer:          env("JWT_ISSUER", "paywall"),
		audience:        strings.Split(env("JWT_AUDIENCE", "paywall"), ","),
		accessToken:     env("MP_ACCESS_TOKEN", ""),
		successURL:      env("PAY_SUCCESS_URL", "http://localhost:3000/pay/success"),
		failureURL:      env("PAY_FAILURE_URL", "http://localhost:3000/pay/failure"),
		pendingURL:      env("PAY_PENDING_URL", "http://localhost:3000/pay/pending"),
		dsn:             env("DATABASE_DSN", "file:paywall.db?cache=shared&_fk=1"),
		port:            env("PORT", "3000"),
	}

	if cfg.signingKey == "" {
		log.Fatal("JWT_SECRET is required")
	}

	if cfg.accessToken == "" {
		log.Fatal("MP_ACCESS_TOKEN is required")
	}

	return cfg
}

func env(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envInt(key string, def int) int {
	val := os.Getenv(key)
	if val == "" {
		return def
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("invalid integer for %s: %q", key, val)
	}

	return parsed
}

func main() {
	// missing .env is fine, real env vars take over
	_ = godotenv.Load()

	cfg := loadConfig()
	ctx := context.Background()

	db, err := openDatabase(ctx, cfg.dsn)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	repo := paywall.NewRepositoryManager(db)
	if err := repo.Validate(); err != nil {
		log.Fatal(err)
	}

	provider := mercadopago.NewClient(cfg.GetAccessToken())

	userProvider := paywall.NewUserProvider(repo.Users())
	auther := paywall.NewAuthenticator(userProvider, cfg)

	routeAuth := paywall.NewRouteAuthenticator(auther.TokenService(), cfg)

	backURLs := paywall.BackURLs{
		Success: cfg.GetSuccessURL(),
		Failure: cfg.GetFailureURL(),
		Pending: cfg.GetPendingURL(),
	}

	controller := paywall.NewController(
		paywall.WithControllerRepo(repo),
		paywall.WithControllerAuther(auther),
		paywall.WithControllerContextKey(cfg.GetContextKey()),
		paywall.WithControllerHandlers(
			paywall.NewRegisterUserHandler(repo),
			paywall.NewCheckoutHandler(provider, backURLs),
			paywall.NewReconcilePaymentHandler(repo, provider),
		),
	)

	app := fiber.New(fiber.Config{
		AppName: "go-paywall",
	})

	app.Use(recover.New())
	app.Use(flogger.New())

	paywall.RegisterRoutes(app, controller, routeAuth)

	go func() {
		if err := app.Listen(":" + cfg.port); err != nil {
			log.Fatal(err)
		}
	}()

	waitExitSignal()

	if err := app.Shutdown(); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func openDatabase(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	models := []any{
		(*paywall.User)(nil),
		(*paywall.PaymentRecord)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return nil, err
		}
	}

	return db, nil
}

func waitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
