package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformedToken indicates the token string is not structurally a JWT.
	ErrMalformedToken = errors.New("malformed token")
	// ErrInvalidSignature indicates the token was not signed with our secret.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrTokenExpired indicates a validly signed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

// TokenConfig carries the process-wide signing secret and token lifetime,
// injected once at startup.
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
}

// Claims binds the token to a user id alongside the registered claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"uid"`
}

// TokenIssuer mints signed, time-bounded identity tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token signing secret is required")
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{secret: cfg.Secret, ttl: ttl}, nil
}

// Issue signs a token for userID expiring at an absolute wall-clock time,
// now + TTL. The token is self-contained: the verifier needs only the secret.
func (i *TokenIssuer) Issue(userID int64) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		UserID: userID,
	})
	return token.SignedString(i.secret)
}

// TokenVerifier checks token signatures and expiry and extracts the subject.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(cfg TokenConfig) (*TokenVerifier, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token signing secret is required")
	}
	return &TokenVerifier{secret: cfg.Secret}, nil
}

// Verify returns the user id a token claims, or one of ErrMalformedToken,
// ErrInvalidSignature, ErrTokenExpired. An expired token with a valid
// signature reports expiry, so clients can tell "log in again" from tampering.
func (v *TokenVerifier) Verify(tokenString string) (int64, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return 0, ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return 0, ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return 0, ErrTokenExpired
	case err != nil:
		return 0, ErrInvalidSignature
	}
	if !token.Valid {
		return 0, ErrInvalidSignature
	}
	return claims.UserID, nil
}
