package hasher

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2idParams controls Argon2id cost. MemoryKiB is in KiB as required by
// argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (p Argon2idParams) validate() error {
	switch {
	case p.MemoryKiB < 8*1024:
		return fmt.Errorf("%w: memory must be >= 8192 KiB", ErrInvalidParams)
	case p.Iterations < 1:
		return fmt.Errorf("%w: iterations must be >= 1", ErrInvalidParams)
	case p.Parallelism < 1:
		return fmt.Errorf("%w: parallelism must be >= 1", ErrInvalidParams)
	case p.SaltLength < 16:
		return fmt.Errorf("%w: salt length must be >= 16", ErrInvalidParams)
	case p.KeyLength < 16:
		return fmt.Errorf("%w: key length must be >= 16", ErrInvalidParams)
	}
	return nil
}

// Argon2id implements Hasher.
type Argon2id struct {
	params Argon2idParams
}

func NewArgon2id(p Argon2idParams) (*Argon2id, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Argon2id{params: p}, nil
}

// Hash returns $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<key_b64>.
func (a *Argon2id) Hash(secret string) (string, error) {
	salt := make([]byte, a.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	key := argon2.IDKey([]byte(secret), salt, a.params.Iterations, a.params.MemoryKiB, a.params.Parallelism, a.params.KeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		a.params.MemoryKiB,
		a.params.Iterations,
		a.params.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

func (a *Argon2id) Verify(secret, digest string) (bool, error) {
	params, salt, expected, err := decodeArgon2id(digest)
	if err != nil {
		return false, err
	}

	// Digests come from storage; refuse costs far above ours.
	if exceeds(uint64(params.MemoryKiB), uint64(a.params.MemoryKiB)) ||
		exceeds(uint64(params.Iterations), uint64(a.params.Iterations)) ||
		exceeds(uint64(params.Parallelism), uint64(a.params.Parallelism)) {
		return false, fmt.Errorf("%w: parameters out of bounds", ErrInvalidHash)
	}

	key := argon2.IDKey([]byte(secret), salt, params.Iterations, params.MemoryKiB, params.Parallelism, uint32(len(expected))) // #nosec G115 -- bounded by decode
	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

// exceeds reports whether got is more than twice ours, computed without overflow.
func exceeds(got, ours uint64) bool {
	return got > ours*2
}

func decodeArgon2id(digest string) (Argon2idParams, []byte, []byte, error) {
	var p Argon2idParams

	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, nil, nil, ErrInvalidHash
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return p, nil, nil, fmt.Errorf("%w: unsupported version", ErrInvalidHash)
	}

	var seen int
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return p, nil, nil, ErrInvalidHash
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return p, nil, nil, ErrInvalidHash
		}
		switch k {
		case "m":
			p.MemoryKiB = uint32(n)
		case "t":
			p.Iterations = uint32(n)
		case "p":
			if n > 255 {
				return p, nil, nil, ErrInvalidHash
			}
			p.Parallelism = uint8(n)
		default:
			return p, nil, nil, ErrInvalidHash
		}
		seen++
	}
	if seen != 3 {
		return p, nil, nil, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) < 8 || len(salt) > 64 {
		return p, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) < 16 || len(key) > 64 {
		return p, nil, nil, ErrInvalidHash
	}
	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))
	return p, salt, key, nil
}
