package paywall

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-paywall/middleware/jwtware"
)

// RouteAuthenticator wires the token guards into fiber routes. Auth failures
// of every kind (missing header, wrong scheme, bad signature, expiry) are
// collapsed into one uniform unauthorized response so callers cannot probe
// which check failed; the distinction is kept in the logs.
type RouteAuthenticator struct {
	cfg          Config
	validator    TokenValidator
	Logger       Logger
	ErrorHandler func(c *fiber.Ctx, err error) error
}

func NewRouteAuthenticator(validator TokenValidator, cfg Config) *RouteAuthenticator {
	a := &RouteAuthenticator{
		cfg:       cfg,
		validator: validator,
		Logger:    defLogger{},
	}

	a.ErrorHandler = a.defaultAuthErrHandler

	return a
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

// Protected returns the auth gate middleware. Validated claims end up in
// Locals under the configured context key.
func (a *RouteAuthenticator) Protected() fiber.Handler {
	return jwtware.New(jwtware.Config{
		ErrorHandler: a.ErrorHandler,
		ContextKey:   a.cfg.GetContextKey(),
		TokenLookup:  a.cfg.GetTokenLookup(),
		AuthScheme:   a.cfg.GetAuthScheme(),
		TokenValidator: jwtware.TokenValidatorFunc(func(token string) (jwtware.AuthClaims, error) {
			claims, err := a.validator.Validate(token)
			if err != nil {
				return nil, err
			}
			return claims, nil
		}),
	})
}

// RequirePaid returns the entitlement gate. It composes after Protected and
// checks the token's paid snapshot only; a user who paid after this token
// was issued stays gated until they log in again.
func (a *RouteAuthenticator) RequirePaid() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := GetFiberClaims(c, a.cfg.GetContextKey())
		if !ok {
			return a.ErrorHandler(c, ErrUnableToMapClaims)
		}

		if !claims.Paid() {
			a.Logger.Info("entitlement gate rejected caller", "user_id", claims.UserID())
			return c.Status(http.StatusPaymentRequired).JSON(fiber.Map{
				"error": "Payment Required",
			})
		}

		return c.Next()
	}
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c *fiber.Ctx, err error) error {
	switch {
	case IsTokenExpiredError(err):
		a.Logger.Info("auth gate rejected expired token", "path", c.Path())
	case IsMalformedError(err):
		a.Logger.Info("auth gate rejected malformed token", "path", c.Path())
	default:
		a.Logger.Info("auth gate rejected request", "path", c.Path(), "error", err)
	}

	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "Unauthorized",
	})
}

// RespondError maps a rich error to its HTTP status and a generic message.
// Internal detail stays in the logs; the wire only ever sees the category's
// public message.
func RespondError(c *fiber.Ctx, logger Logger, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	if logger == nil {
		logger = defLogger{}
	}

	status := richErr.Code
	if status == 0 {
		status = categoryStatus(richErr.Category)
	}

	logger.Error(
		"request error",
		"category", richErr.Category,
		"text_code", richErr.TextCode,
		"error", richErr.Message,
		"path", c.Path(),
	)

	return c.Status(status).JSON(fiber.Map{
		"error": publicMessage(richErr, status),
	})
}

func categoryStatus(category errors.Category) int {
	switch category {
	case errors.CategoryValidation, errors.CategoryBadInput:
		return http.StatusBadRequest
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func publicMessage(err *errors.Error, status int) string {
	switch status {
	case http.StatusUnauthorized:
		// one generic message: no account existence oracle
		return "Unauthorized"
	case http.StatusTooManyRequests:
		return "Too Many Requests"
	case http.StatusPaymentRequired:
		return "Payment Required"
	case http.StatusInternalServerError:
		if err.TextCode == TextCodeProviderError {
			return "payment provider error"
		}
		return "Internal Server Error"
	default:
		return err.Message
	}
}
