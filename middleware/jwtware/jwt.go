package jwtware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var (
	defaultTokenLookup = "header:" + fiber.HeaderAuthorization
	// ErrJWTMissingOrMalformed covers every extraction failure: absent
	// header, wrong scheme, empty token. Callers surface it uniformly.
	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")
)

// AuthClaims interface for structured claims without import cycles.
// This mirrors the AuthClaims interface from the paywall package.
type AuthClaims interface {
	Subject() string
	UserID() string
	Email() string
	Paid() bool
}

// TokenValidator interface for validating tokens without import cycles.
// This mirrors the TokenService.Validate method from the paywall package.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

// Validate satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	return f(tokenString)
}

type Config struct {
	// Filter defines a function to skip the middleware
	Filter func(*fiber.Ctx) bool
	// SuccessHandler runs after validation; defaults to Next
	SuccessHandler fiber.Handler
	// ErrorHandler runs on any extraction or validation failure
	ErrorHandler func(*fiber.Ctx, error) error
	// ContextKey is the Locals key the claims are stored under
	ContextKey string
	// TokenLookup is "<source>:<name>", e.g. "header:Authorization"
	TokenLookup string
	// AuthScheme is the expected header scheme prefix, e.g. "Bearer"
	AuthScheme string
	// TokenValidator is required for token validation
	TokenValidator TokenValidator
}

// GetDefaultConfig fills zero-value fields with usable defaults.
func GetDefaultConfig(config ...Config) Config {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			if errors.Is(err, ErrJWTMissingOrMalformed) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": ErrJWTMissingOrMalformed.Error(),
				})
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or expired JWT",
			})
		}
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

// New returns the JWT auth middleware. On success the validated claims are
// stored in Locals under ContextKey for downstream guards and handlers.
func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)

	if cfg.TokenValidator == nil {
		panic("jwtware: TokenValidator is required")
	}

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := ExtractRawToken(c, cfg)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		claims, err := cfg.TokenValidator.Validate(raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		c.Locals(cfg.ContextKey, claims)

		return cfg.SuccessHandler(c)
	}
}

// ExtractRawToken pulls the raw token string out of the request per the
// configured TokenLookup.
func ExtractRawToken(c *fiber.Ctx, cfg Config) (string, error) {
	source, name, found := strings.Cut(cfg.TokenLookup, ":")
	if !found {
		source, name = "header", fiber.HeaderAuthorization
	}

	switch source {
	case "header":
		return extractFromHeader(c.Get(name), cfg.AuthScheme)
	case "query":
		if token := c.Query(name); token != "" {
			return token, nil
		}
		return "", ErrJWTMissingOrMalformed
	case "cookie":
		if token := c.Cookies(name); token != "" {
			return token, nil
		}
		return "", ErrJWTMissingOrMalformed
	default:
		return "", ErrJWTMissingOrMalformed
	}
}

func extractFromHeader(header, authScheme string) (string, error) {
	if header == "" {
		return "", ErrJWTMissingOrMalformed
	}

	if authScheme == "" {
		return header, nil
	}

	prefix := authScheme + " "
	if !strings.HasPrefix(header, prefix) {
		return "", ErrJWTMissingOrMalformed
	}

	token := header[len(prefix):]
	if token == "" {
		return "", ErrJWTMissingOrMalformed
	}

	return token, nil
}
