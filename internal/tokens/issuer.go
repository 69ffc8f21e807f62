// Package tokens issues and verifies the JWT access/refresh pair handed to
// clients after login, registration and approval.
package tokens

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/taskhub/apiserver/config"
	"github.com/taskhub/apiserver/types"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongType    = errors.New("wrong token type")
)

// Pair is the credential pair returned to clients.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Claims are the registered claims plus the token type. Subject carries the
// user id and ID the token id used by the refresh denylist.
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"typ"`
}

// UserID parses the subject claim.
func (c *Claims) UserID() (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(c.Subject))
	if err != nil || id < 1 {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// Issuer signs HS256 tokens.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewIssuer(cfg config.JWTConfig) *Issuer {
	return &Issuer{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
}

// Issue returns a fresh access/refresh pair for user.
func (i *Issuer) Issue(user types.User) (Pair, error) {
	access, err := i.sign(user.ID, TypeAccess, i.accessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := i.sign(user.ID, TypeRefresh, i.refreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

func (i *Issuer) sign(userID int, tokenType string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type: tokenType,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// ParseAccess verifies an access token.
func (i *Issuer) ParseAccess(tokenString string) (*Claims, error) {
	return i.parse(tokenString, TypeAccess)
}

// ParseRefresh verifies a refresh token.
func (i *Issuer) ParseRefresh(tokenString string) (*Claims, error) {
	return i.parse(tokenString, TypeRefresh)
}

func (i *Issuer) parse(tokenString, tokenType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != tokenType {
		return nil, ErrWrongType
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}
