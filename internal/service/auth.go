package service

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"orderhub/internal/model"
)

var ErrInvalidCredentials = errors.New("invalid login or password")

const tokenTTL = 24 * time.Hour

// AuthService authenticates the single dashboard operator configured for the
// process.
type AuthService struct {
	operator model.Operator
	secret   []byte
	now      func() time.Time
}

func NewAuthService(operator model.Operator, jwtSecret string) *AuthService {
	return &AuthService{operator: operator, secret: []byte(jwtSecret), now: time.Now}
}

func (s *AuthService) Authenticate(login, password string) (*model.Operator, error) {
	if len(s.operator.PasswordHash) == 0 {
		return nil, ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(login), []byte(s.operator.Login)) != 1 {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.operator.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	op := s.operator
	return &op, nil
}

// IssueToken signs an HS256 token for the operator valid for 24 hours.
func (s *AuthService) IssueToken(op *model.Operator) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   op.Login,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func HashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}
