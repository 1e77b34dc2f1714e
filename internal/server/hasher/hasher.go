// Package hasher provides salted, adaptive one-way hashing for secrets that
// must never be stored in clear: account passwords and refresh tokens.
//
// Two algorithms are available. Argon2id is the default and encodes digests in
// the PHC string format. Bcrypt is offered for compatibility and pre-hashes the
// secret with SHA-256, so inputs longer than bcrypt's 72-byte limit (every
// signed refresh token) are hashed in full.
package hasher

import (
	"errors"
	"fmt"
)

// Hasher hashes and verifies secrets.
//
// Verify returns (false, nil) for a secret that does not match; a non-nil error
// means the digest itself is malformed or unsupported.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) (bool, error)
}

var (
	ErrInvalidHash   = errors.New("invalid hash")
	ErrInvalidParams = errors.New("invalid hasher parameters")
)

const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

// Config selects an algorithm and its cost.
type Config struct {
	Algorithm  string
	Argon2id   Argon2idParams
	BcryptCost int
}

// DefaultConfig returns argon2id with interactive-login costs.
func DefaultConfig() Config {
	return Config{
		Algorithm:  AlgorithmArgon2id,
		Argon2id:   DefaultArgon2idParams(),
		BcryptCost: 10,
	}
}

// New builds the Hasher named by cfg.Algorithm.
func New(cfg Config) (Hasher, error) {
	switch cfg.Algorithm {
	case AlgorithmArgon2id, "":
		return NewArgon2id(cfg.Argon2id)
	case AlgorithmBcrypt:
		return NewBcrypt(cfg.BcryptCost)
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %q", ErrInvalidParams, cfg.Algorithm)
	}
}
