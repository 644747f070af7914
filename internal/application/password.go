package application

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrMalformedPasswordHash is returned when a stored hash cannot be decoded.
var ErrMalformedPasswordHash = errors.New("application: malformed password hash")

// PasswordParams tunes the argon2id key derivation.
type PasswordParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultPasswordParams are used for every new password.
var DefaultPasswordParams = PasswordParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

type passwordHash struct {
	params PasswordParams
	salt   []byte
	key    []byte
}

// NewPasswordHasher returns a PasswordHasher producing PHC formatted argon2id
// strings: $argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>.
func NewPasswordHasher(params PasswordParams) PasswordHasher {
	return func(password string) (string, error) {
		salt := make([]byte, params.SaltLength)
		if _, err := rand.Read(salt); err != nil {
			return "", fmt.Errorf("read salt: %w", err)
		}
		h := passwordHash{
			params: params,
			salt:   salt,
			key:    argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength),
		}
		return h.String(), nil
	}
}

// HashPassword hashes password with DefaultPasswordParams.
func HashPassword(password string) (string, error) {
	return NewPasswordHasher(DefaultPasswordParams)(password)
}

// VerifyPassword checks password against a stored hash and returns
// ErrInvalidCredentials on mismatch.
func VerifyPassword(stored, password string) error {
	h, err := parsePasswordHash(stored)
	if err != nil {
		return err
	}
	candidate := argon2.IDKey([]byte(password), h.salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)
	if subtle.ConstantTimeCompare(h.key, candidate) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

// NeedsRehash reports whether stored was produced with parameters other than params.
func NeedsRehash(stored string, params PasswordParams) bool {
	h, err := parsePasswordHash(stored)
	if err != nil {
		return true
	}
	return h.params.Memory != params.Memory ||
		h.params.Iterations != params.Iterations ||
		h.params.Parallelism != params.Parallelism ||
		h.params.KeyLength != params.KeyLength
}

func (h passwordHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Iterations, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key))
}

func parsePasswordHash(stored string) (passwordHash, error) {
	parts := strings.Split(stored, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return passwordHash{}, ErrMalformedPasswordHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return passwordHash{}, fmt.Errorf("%w: unsupported version %q", ErrMalformedPasswordHash, parts[2])
	}

	var h passwordHash
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.params.Memory, &h.params.Iterations, &h.params.Parallelism); err != nil {
		return passwordHash{}, fmt.Errorf("%w: %v", ErrMalformedPasswordHash, err)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return passwordHash{}, fmt.Errorf("%w: salt: %v", ErrMalformedPasswordHash, err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return passwordHash{}, fmt.Errorf("%w: key: %v", ErrMalformedPasswordHash, err)
	}
	h.params.SaltLength = uint32(len(h.salt))
	h.params.KeyLength = uint32(len(h.key))
	return h, nil
}
