package auth

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// OperatorKeyHeader carries the operator key on privileged requests.
const OperatorKeyHeader = "X-Operator-Key"

// DefaultOperatorKeyCost is the bcrypt work factor used by HashOperatorKey.
const DefaultOperatorKeyCost = 12

var (
	ErrOperatorDisabled = errors.New("auth: operator endpoints are disabled")
	ErrOperatorKey      = errors.New("auth: invalid operator key")
)

// OperatorKey guards operator-only endpoints such as recalculate-all.
//
// Only the bcrypt hash of the key is configured (operator_key_hash /
// OPERATOR_KEY_HASH); the plaintext key lives with whoever runs the batch.
// A zero OperatorKey has no hash and rejects every request.
type OperatorKey struct {
	hash []byte
}

// NewOperatorKey parses a bcrypt hash. An empty hash yields a key that
// disables operator endpoints.
func NewOperatorKey(hash string) (*OperatorKey, error) {
	if hash == "" {
		return &OperatorKey{}, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("auth: operator key hash is not a bcrypt hash: %w", err)
	}
	return &OperatorKey{hash: []byte(hash)}, nil
}

// Enabled reports whether a hash is configured.
func (k *OperatorKey) Enabled() bool {
	return k != nil && len(k.hash) > 0
}

// Verify checks a presented key against the configured hash.
// bcrypt compares in constant time.
func (k *OperatorKey) Verify(key string) error {
	if !k.Enabled() {
		return ErrOperatorDisabled
	}
	if key == "" {
		return ErrOperatorKey
	}
	if err := bcrypt.CompareHashAndPassword(k.hash, []byte(key)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrOperatorKey
		}
		return fmt.Errorf("auth: comparing operator key: %w", err)
	}
	return nil
}

// HashOperatorKey produces the value for operator_key_hash.
// bcrypt reads at most 72 bytes, so longer keys are rejected.
func HashOperatorKey(key string, cost int) (string, error) {
	if key == "" {
		return "", errors.New("auth: operator key must not be empty")
	}
	if len(key) > 72 {
		return "", errors.New("auth: operator key must be 72 bytes or fewer")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing operator key: %w", err)
	}
	return string(hashed), nil
}

// RequireOperator rejects requests whose X-Operator-Key does not verify.
// Disabled keys answer 403 so callers can tell "off" from "wrong".
func RequireOperator(key *OperatorKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := key.Verify(r.Header.Get(OperatorKeyHeader))
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, ErrOperatorDisabled):
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","message":"operator endpoints are disabled"}`))
			default:
				writeUnauthorized(w, "valid operator key required")
			}
		})
	}
}
