package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const SubjectKey contextKey = "auth_subject"

func GetSubject(ctx context.Context) string {
	v, _ := ctx.Value(SubjectKey).(string)
	return v
}

func parseToken(jwtSecret, tokenStr string) (string, bool) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return "", false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}
	subject, _ := claims["sub"].(string)
	return subject, subject != ""
}

func bearerToken(authHeader string) string {
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// Auth validates the JWT bearer token on huma operations.
func Auth(jwtSecret string) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		tokenStr := bearerToken(ctx.Header("Authorization"))
		if tokenStr == "" {
			writeUnauthorized(ctx, "authentication required")
			return
		}
		subject, ok := parseToken(jwtSecret, tokenStr)
		if !ok {
			writeUnauthorized(ctx, "invalid token")
			return
		}

		echoCtx := humaecho.Unwrap(ctx)
		r := echoCtx.Request()
		echoCtx.SetRequest(r.WithContext(context.WithValue(r.Context(), SubjectKey, subject)))
		next(ctx)
	}
}

// EchoAuth validates the JWT bearer token on plain echo routes.
func EchoAuth(jwtSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr := bearerToken(c.Request().Header.Get("Authorization"))
			if tokenStr == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			subject, ok := parseToken(jwtSecret, tokenStr)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			r := c.Request()
			c.SetRequest(r.WithContext(context.WithValue(r.Context(), SubjectKey, subject)))
			return next(c)
		}
	}
}

func writeUnauthorized(ctx huma.Context, msg string) {
	ctx.SetStatus(http.StatusUnauthorized)
	ctx.SetHeader("Content-Type", "application/json")
	_ = json.NewEncoder(ctx.BodyWriter()).Encode(huma.ErrorModel{
		Title:  http.StatusText(http.StatusUnauthorized),
		Status: http.StatusUnauthorized,
		Detail: msg,
	})
}
