package paywall

import (
	"context"
	"fmt"
	"strings"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (string, error)
	ClaimsFromToken(token string) (AuthClaims, error)
}

// Identity holds the attributes of an identity
type Identity interface {
	ID() string
	Email() string
	Paid() bool
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetContextKey() string
	GetAuthScheme() string
	GetTokenLookup() string
	GetIssuer() string
	GetAudience() []string
}

// ProviderConfig holds payment provider options
type ProviderConfig interface {
	GetAccessToken() string
	GetSuccessURL() string
	GetFailureURL() string
	GetPendingURL() string
}

// IdentityProvider ensure we have a store to retrieve auth identity
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error)
	FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Println(logLine("[ERR] PAYWALL ", format, args))
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Println(logLine("[WRN] PAYWALL ", format, args))
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Println(logLine("[INF] PAYWALL ", format, args))
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Println(logLine("[DBG] PAYWALL ", format, args))
}

// logLine formats printf-style when the message carries verbs, and renders
// trailing arguments as key=value pairs otherwise.
func logLine(prefix, format string, args []any) string {
	if strings.ContainsRune(format, '%') || len(args) == 0 {
		return strings.TrimSuffix(fmt.Sprintf(prefix+format, args...), "\n")
	}

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(format)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	if len(args)%2 == 1 {
		fmt.Fprintf(&b, " %v", args[len(args)-1])
	}
	return b.String()
}
