// Package response defines the JSON envelope used by the plain echo routes
// (uploads and downloads that bypass huma).
package response

import (
	"github.com/labstack/echo/v4"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func Success(c echo.Context, status int, data any) error {
	return c.JSON(status, APIResponse{
		Success: true,
		Data:    data,
	})
}

func Error(c echo.Context, status int, code, message string) error {
	return c.JSON(status, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
	})
}
