package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func parseClaims(t *testing.T, tokenStr, secret string) jwt.MapClaims {
	t.Helper()
	parsed, err := jwt.Parse(tokenStr, func(tok *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("failed to parse or invalid token: %v", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatalf("unexpected claims type: %T", parsed.Claims)
	}
	return claims
}

func TestAuthService_NewSession(t *testing.T) {
	authSvc := NewAuthService(&mockLogger{}, "jwtSecret", "op")

	userID, tokenStr, err := authSvc.NewSession()
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if userID == "" || tokenStr == "" {
		t.Fatalf("expected user id and token")
	}
	claims := parseClaims(t, tokenStr, "jwtSecret")
	if claims["user_id"] != userID || claims["role"] != RoleCustomer {
		t.Errorf("claims mismatch: %v", claims)
	}
	if exp, ok := claims["exp"].(float64); !ok || exp < float64(time.Now().Unix()) {
		t.Errorf("token exp is not set properly: %v", claims["exp"])
	}

	otherID, _, _ := authSvc.NewSession()
	if otherID == userID {
		t.Errorf("sessions must get distinct user ids")
	}
}

func TestAuthService_AuthenticateOperator_Success(t *testing.T) {
	authSvc := NewAuthService(&mockLogger{}, "jwtSecret", "op-pass")

	tokenStr, err := authSvc.AuthenticateOperator("op-pass")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	claims := parseClaims(t, tokenStr, "jwtSecret")
	if claims["role"] != RoleOperator {
		t.Errorf("expected operator role, got %v", claims["role"])
	}
}

func TestAuthService_AuthenticateOperator_WrongPassword(t *testing.T) {
	authSvc := NewAuthService(&mockLogger{}, "jwtSecret", "op-pass")

	_, err := authSvc.AuthenticateOperator("guess")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_AuthenticateOperator_NoPasswordConfigured(t *testing.T) {
	authSvc := NewAuthService(&mockLogger{}, "jwtSecret", "")

	_, err := authSvc.AuthenticateOperator("")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_EmptySecret(t *testing.T) {
	authSvc := NewAuthService(&mockLogger{}, "", "op")

	if _, _, err := authSvc.NewSession(); err == nil {
		t.Errorf("expected error for empty secret")
	}
}
