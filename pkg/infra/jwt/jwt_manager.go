package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
	ErrNotStaff     = errors.New("token does not carry the staff claim")
	ErrNoSecret     = errors.New("signing secret is not configured")
)

//go:generate mockery --name=Manager --dir=. --output=mocks/ --filename=jwt_manager_mock.go --case=underscore --with-expecter
type (
	Manager interface {
		CreateToken(subject string, staff bool, ttl time.Duration) (string, error)
		ValidateToken(tokenString string) error
		DecodeToken(tokenString string) (*Claims, error)
		// ValidateStaff accepts only valid tokens with staff=true.
		ValidateStaff(tokenString string) error
	}
	manager struct {
		secret []byte
	}
)

// NewJwtManager signs and verifies HS256 tokens with secret. With an empty
// secret every validation fails.
func NewJwtManager(secret string) Manager {
	return &manager{
		secret: []byte(secret),
	}
}

type Claims struct {
	Staff bool `json:"staff,omitempty"`
	jwt.RegisteredClaims
}

func (m *manager) CreateToken(subject string, staff bool, ttl time.Duration) (string, error) {
	if len(m.secret) == 0 {
		return "", ErrNoSecret
	}
	now := time.Now()
	claims := &Claims{
		Staff: staff,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(m.secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func (m *manager) ValidateToken(tokenString string) error {
	_, err := m.DecodeToken(tokenString)
	return err
}

func (m *manager) DecodeToken(tokenString string) (*Claims, error) {
	if len(m.secret) == 0 || tokenString == "" {
		return nil, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidToken
			}
			return m.secret, nil
		},
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (m *manager) ValidateStaff(tokenString string) error {
	claims, err := m.DecodeToken(tokenString)
	if err != nil {
		return err
	}
	if !claims.Staff {
		return ErrNotStaff
	}
	return nil
}
