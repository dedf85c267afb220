package service

import (
	"context"
	"fmt"
	"time"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"
	"github.com/conex-ia/agentesv2-sub000/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var authTracer = otel.Tracer("service/auth")

// LoginRequest carries the dashboard credentials. WhatsApp numbers are
// the login identifier.
type LoginRequest struct {
	WhatsApp string `json:"whatsapp"`
	Senha    string `json:"senha"`
}

// LoginResponse carries the issued token pair plus the profile shown in
// the sidebar.
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	UserUID      string `json:"user_uid"`
	EmpresaUID   string `json:"empresa_uid"`
	Nome         string `json:"nome"`
	Role         string `json:"role"`
}

// JWTClaims are the custom claims in both token types.
type JWTClaims struct {
	Sub     string `json:"sub"`
	Empresa string `json:"empresa_uid"`
	Role    string `json:"role"`
	Type    string `json:"type"` // access or refresh
	jwt.RegisteredClaims
}

// AuthService authenticates dashboard users against the users table and
// manages the stateless token pair.
type AuthService struct {
	rows       port.RowStore
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *zap.Logger
}

// NewAuthService creates an auth service.
func NewAuthService(rows port.RowStore, jwtSecret string, accessTTL, refreshTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		rows:       rows,
		jwtSecret:  []byte(jwtSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     logger,
	}
}

// Login verifies credentials and issues a token pair. Unauthorized
// profiles (autorizado=false) are rejected even with a valid password.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	user, err := s.rows.GetUserByWhatsApp(ctx, req.WhatsApp)
	if err != nil {
		// same answer for unknown user and bad password
		return nil, &domain.ErrUnauthorized{Message: "Credenciais inválidas"}
	}
	if bcrypt.CompareHashAndPassword([]byte(user.SenhaHash), []byte(req.Senha)) != nil {
		s.logger.Warn("login: wrong password", zap.String("user_uid", user.UserUID))
		return nil, &domain.ErrUnauthorized{Message: "Credenciais inválidas"}
	}
	if !user.Autorizado {
		return nil, &domain.ErrForbidden{Action: "login before authorization"}
	}

	return s.issuePair(user)
}

// Refresh rotates a valid refresh token into a fresh pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Refresh")
	defer span.End()

	claims, err := s.parse(refreshToken, "refresh")
	if err != nil {
		return nil, err
	}

	user, err := s.rows.GetUserByAuthUID(ctx, claims.Sub)
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "Perfil não encontrado"}
	}
	if !user.Autorizado {
		return nil, &domain.ErrForbidden{Action: "refresh before authorization"}
	}

	return s.issuePair(user)
}

// ValidateAccessToken checks an access token, for the auth middleware.
func (s *AuthService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	return s.parse(tokenString, "access")
}

func (s *AuthService) parse(tokenString, wantType string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido ou expirado"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido"}
	}
	if claims.Type != wantType {
		return nil, &domain.ErrUnauthorized{Message: "Tipo de token inválido"}
	}
	return claims, nil
}

func (s *AuthService) issuePair(user *domain.User) (*LoginResponse, error) {
	access, err := s.sign(user, "access", s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.sign(user, "refresh", s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.accessTTL.Seconds()),
		UserUID:      user.UserUID,
		EmpresaUID:   user.EmpresaUID,
		Nome:         user.Nome,
		Role:         user.Role,
	}, nil
}

func (s *AuthService) sign(user *domain.User, typ string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Sub:     user.UserUID,
		Empresa: user.EmpresaUID,
		Role:    user.Role,
		Type:    typ,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "conex-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
