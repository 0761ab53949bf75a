package authz

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidToken indicates a malformed or unknown bearer token.
var ErrInvalidToken = errors.New("authz: invalid token")

// TokenVerifier resolves a bearer token to a Principal.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Principal, error)
}

// TokenStore verifies bearer tokens of the form "<id>.<secret>" against
// bcrypt hashes persisted in api_tokens.
type TokenStore struct {
	pool *pgxpool.Pool
}

// NewTokenStore constructs the store.
func NewTokenStore(pool *pgxpool.Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Verify looks up the token id, compares the secret against the stored hash
// and returns the caller's principal.
func (s *TokenStore) Verify(ctx context.Context, token string) (Principal, error) {
	id, secret, ok := strings.Cut(token, ".")
	if !ok || id == "" || secret == "" {
		return Principal{}, ErrInvalidToken
	}

	var (
		hash    string
		usuario string
		role    string
		area    string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT secreto_hash, usuario, rol, COALESCE(area, '') FROM api_tokens WHERE id = $1 AND activo`, id).
		Scan(&hash, &usuario, &role, &area)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Principal{}, ErrInvalidToken
		}
		return Principal{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		return Principal{}, ErrInvalidToken
	}

	parsed, err := ParseRole(role)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}

	return Principal{TokenID: id, Usuario: usuario, Role: parsed, Area: area}, nil
}
