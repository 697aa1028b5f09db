package backend

import "encoding/json"

// TokenResponse represents the response of the JWT endpoint
type TokenResponse struct {
	Token  string      `json:"token"`
	BlogID json.Number `json:"blog_id"`
}

// ErrorResponse represents an error body returned by the service
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
