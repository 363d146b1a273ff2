// internal/auth/admin.go
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/argon2"
)

// tokenTTL bounds how long an admin login stays valid.
const tokenTTL = 12 * time.Hour

// Argon2id parameters for the admin secret. There is exactly one secret,
// derived once at boot and verified a handful of times per deploy, so the
// derivation can afford to be slow and single-laned; nothing is ever
// persisted, so no self-describing hash encoding is needed.
const (
	argonTime    = 4
	argonMemory  = 64 * 1024
	argonThreads = 1
	saltLen      = 16
	keyLen       = 32
)

// Admin guards the read-only admin surface. The shared secret is reduced to
// a salted key at boot; a successful login mints a short-lived token signed
// with a keypair generated fresh for this process (all state is volatile,
// tokens included).
type Admin struct {
	salt []byte
	key  []byte

	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
}

// NewAdmin derives the secret key and generates the signing keypair.
func NewAdmin(secret string) (*Admin, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate admin salt: %w", err)
	}
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("generate admin keypair: %w", err)
	}
	return &Admin{
		salt:       salt,
		key:        deriveKey(secret, salt),
		privateKey: priv,
		publicKey:  pub,
	}, nil
}

// Verify checks a presented secret against the boot-time key in constant
// time.
func (a *Admin) Verify(secret string) bool {
	return subtle.ConstantTimeCompare(a.key, deriveKey(secret, a.salt)) == 1
}

func deriveKey(secret string, salt []byte) []byte {
	return argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, keyLen)
}

// MintToken issues a signed admin token.
func (a *Admin) MintToken() (string, error) {
	claims := jwt.MapClaims{
		"sub": "admin",
		"exp": time.Now().Add(tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(a.privateKey)
}

// VerifyToken reports whether tok is a valid, unexpired admin token.
func (a *Admin) VerifyToken(tok string) bool {
	parsed, err := jwt.Parse(tok, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.publicKey, nil
	})
	if err != nil || !parsed.Valid {
		return false
	}
	sub, err := parsed.Claims.GetSubject()
	return err == nil && sub == "admin"
}
