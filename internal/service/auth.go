package service

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"soda-machine/pkg"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	RoleCustomer = "customer"
	RoleOperator = "operator"

	sessionTTL  = 1 * time.Hour
	operatorTTL = 8 * time.Hour
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type AuthService interface {
	// NewSession starts an anonymous customer session and returns its user id and token.
	NewSession() (string, string, error)
	AuthenticateOperator(password string) (string, error)
}

type authService struct {
	log              pkg.Logger
	jwtSecret        string
	operatorPassword string
}

func NewAuthService(logger pkg.Logger, jwtSecret, operatorPassword string) AuthService {
	return &authService{
		log:              logger,
		jwtSecret:        jwtSecret,
		operatorPassword: operatorPassword,
	}
}

func (s *authService) NewSession() (string, string, error) {
	userID := uuid.NewString()
	token, err := s.sign(userID, RoleCustomer, sessionTTL)
	if err != nil {
		return "", "", err
	}
	s.log.Info("Session started", zap.String("userID", userID))
	return userID, token, nil
}

func (s *authService) AuthenticateOperator(password string) (string, error) {
	if s.operatorPassword == "" ||
		subtle.ConstantTimeCompare([]byte(password), []byte(s.operatorPassword)) != 1 {
		s.log.Warn("invalid operator credentials")
		return "", ErrInvalidCredentials
	}
	token, err := s.sign(RoleOperator, RoleOperator, operatorTTL)
	if err != nil {
		return "", err
	}
	s.log.Info("Operator authenticated")
	return token, nil
}

func (s *authService) sign(userID, role string, ttl time.Duration) (string, error) {
	if s.jwtSecret == "" {
		s.log.Error("auth: empty JWT secret key")
		return "", errors.New("could not generate token: empty secret key")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(ttl).Unix(),
	})
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		s.log.Error("failed to generate token", zap.String("userID", userID), zap.Error(err))
		return "", fmt.Errorf("could not generate token: %w", err)
	}
	return tokenString, nil
}
