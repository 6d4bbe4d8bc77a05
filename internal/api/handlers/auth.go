package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	adminUsername     string
	adminPasswordHash string
	jwtSecret         string
	jwtExpiry         time.Duration
}

func NewAuthHandler(adminUsername, adminPasswordHash, jwtSecret string, jwtExpiry time.Duration) *AuthHandler {
	return &AuthHandler{
		adminUsername:     adminUsername,
		adminPasswordHash: adminPasswordHash,
		jwtSecret:         jwtSecret,
		jwtExpiry:         jwtExpiry,
	}
}

type LoginInput struct {
	Body struct {
		Username string `json:"username" minLength:"1" doc:"Username"`
		Password string `json:"password" minLength:"1" doc:"Password"`
	}
}

type LoginDTO struct {
	Token     string `json:"token" doc:"JWT token"`
	ExpiresIn int    `json:"expires_in" doc:"Token lifetime in seconds"`
}

func (h *AuthHandler) Login(ctx context.Context, input *LoginInput) (*DataOutput[LoginDTO], error) {
	if input.Body.Username != h.adminUsername {
		return nil, huma.Error401Unauthorized("invalid username or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.adminPasswordHash), []byte(input.Body.Password)); err != nil {
		return nil, huma.Error401Unauthorized("invalid username or password")
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": h.adminUsername,
		"iat": now.Unix(),
		"exp": now.Add(h.jwtExpiry).Unix(),
	})
	signed, err := token.SignedString([]byte(h.jwtSecret))
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to sign token")
	}

	return OK(LoginDTO{
		Token:     signed,
		ExpiresIn: int(h.jwtExpiry.Seconds()),
	}), nil
}
