// internal/auth/verifier.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"github.com/user/agendabot/internal/types"
)

// ErrRejected is returned for any credential that cannot be resolved to an
// existing user: malformed token, bad signature, missing subject claim, or a
// subject with no user row. Callers must not distinguish the causes.
var ErrRejected = errors.New("credential rejected")

// Verifier validates bearer credentials and resolves them to user IDs.
// It holds no mutable state and is safe for concurrent use.
type Verifier struct {
	secret []byte
	users  types.UserLookup
}

// New creates a Verifier with the given signing secret and user lookup.
func New(secret string, users types.UserLookup) *Verifier {
	return &Verifier{secret: []byte(secret), users: users}
}

// Verify parses and validates the credential, extracts the subject claim,
// and confirms the subject exists in storage. The identity is recomputed on
// every call; nothing is cached.
func (v *Verifier) Verify(ctx context.Context, credential string) (types.UserID, error) {
	if len(v.secret) == 0 {
		return 0, fmt.Errorf("verifier secret not configured")
	}

	parsed, err := jwt.Parse(credential, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRejected, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return 0, fmt.Errorf("%w: invalid claims", ErrRejected)
	}

	user, err := subjectUserID(claims)
	if err != nil {
		return 0, err
	}

	exists, err := v.users.UserExists(ctx, user)
	if err != nil {
		return 0, fmt.Errorf("lookup user: %w", err)
	}
	if !exists {
		return 0, fmt.Errorf("%w: unknown subject", ErrRejected)
	}
	return user, nil
}

// subjectUserID extracts the sub claim, accepting both string and numeric
// encodings (tokens minted elsewhere use strings, the CLI uses numbers).
func subjectUserID(claims jwt.MapClaims) (types.UserID, error) {
	switch sub := claims["sub"].(type) {
	case string:
		n, err := strconv.ParseInt(sub, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: non-numeric subject", ErrRejected)
		}
		return types.UserID(n), nil
	case float64:
		return types.UserID(int64(sub)), nil
	case nil:
		return 0, fmt.Errorf("%w: missing subject claim", ErrRejected)
	default:
		return 0, fmt.Errorf("%w: unsupported subject type", ErrRejected)
	}
}

// Sign mints a token for the given user, signed with the verifier's secret.
// Used by the token CLI and by tests; token issuance in production is
// external to this service.
func Sign(secret string, user types.UserID, claims map[string]any) (string, error) {
	mc := jwt.MapClaims{"sub": strconv.FormatInt(int64(user), 10)}
	for k, v := range claims {
		mc[k] = v
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mc)
	return token.SignedString([]byte(secret))
}
