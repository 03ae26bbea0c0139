package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"senfret/internal/models"
)

var ErrInvalidToken = errors.New("auth: invalid token")

// Claims is the JWT payload issued at login.
type Claims struct {
	ID       string             `json:"id"`
	UserType models.AccountType `json:"userType"`
	Email    string             `json:"email"`
	jwt.RegisteredClaims
}

// AccountID decodes the id claim.
func (c *Claims) AccountID() (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(c.ID)
}

// Tokens signs and verifies HS256 access tokens.
type Tokens struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{Secret: []byte(secret), TTL: ttl, Now: time.Now}
}

func (t *Tokens) Issue(a *models.Account, userType models.AccountType) (string, time.Time, error) {
	now := t.Now()
	expiresAt := now.Add(t.TTL)
	claims := Claims{
		ID:       a.ID.Hex(),
		UserType: userType,
		Email:    a.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (t *Tokens) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (interface{}, error) {
		return t.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.Now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !claims.UserType.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashToken is the storage form of verification, reset and revoked tokens.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// RandomToken returns 32 random bytes, hex encoded.
func RandomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
