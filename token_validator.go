package paywall

// TokenValidator turns a raw bearer token into session claims. The token
// service is the canonical implementation; adapters let deployments layer
// extra verifiers on top of it.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

// Validate satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	if f == nil {
		return nil, ErrTokenMalformed
	}
	return f(tokenString)
}

// MultiTokenValidator tries each validator in order, so sessions minted
// under a retired signing key keep working through a key rotation. A
// malformed verdict means "not mine, try the next one"; expiry and any
// other failure is authoritative and stops the chain. Whichever validator
// accepts the token, callers read the same entitlement snapshot through
// AuthClaims.Paid; tokens minted without the flag stay unpaid.
type MultiTokenValidator struct {
	chain []TokenValidator
}

// NewMultiTokenValidator filters nil validators and returns a composite validator.
func NewMultiTokenValidator(validators ...TokenValidator) *MultiTokenValidator {
	chain := make([]TokenValidator, 0, len(validators))
	for _, validator := range validators {
		if validator != nil {
			chain = append(chain, validator)
		}
	}
	return &MultiTokenValidator{chain: chain}
}

// Validate satisfies the TokenValidator interface.
func (m *MultiTokenValidator) Validate(tokenString string) (AuthClaims, error) {
	var lastMalformed error
	for _, validator := range m.chain {
		claims, err := validator.Validate(tokenString)
		switch {
		case err == nil:
			return claims, nil
		case IsMalformedError(err):
			lastMalformed = err
		default:
			return nil, err
		}
	}
	if lastMalformed != nil {
		return nil, lastMalformed
	}
	return nil, ErrTokenMalformed
}
