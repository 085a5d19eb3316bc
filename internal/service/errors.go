package service

import "errors"

// Registry errors
var (
	ErrInvalidRedirectURI     = errors.New("invalid redirect uri")
	ErrDuplicateClient        = errors.New("redirect uri already registered to another client")
	ErrUnknownClient          = errors.New("client not found")
	ErrTrustedClientImmutable = errors.New("trusted clients cannot be modified")
	ErrGrantNotAllowed        = errors.New("grant type not allowed for client")
	ErrClientSecretMismatch   = errors.New("invalid client secret")
)

// Grant errors
var (
	ErrInvalidChallenge        = errors.New("code challenge missing or method not S256")
	ErrUnsupportedResponseType = errors.New("unsupported response type")
	ErrConsentRequired         = errors.New("consent required")
	ErrGrantExpired            = errors.New("grant expired")
	ErrGrantConsumed           = errors.New("grant already consumed")
	ErrChallengeMismatch       = errors.New("code verifier does not match challenge")
	ErrRedirectMismatch        = errors.New("redirect uri does not match authorization request")
)

// Device flow errors, names follow the RFC 8628 token endpoint responses
var (
	ErrAuthorizationPending = errors.New("authorization pending")
	ErrSlowDown             = errors.New("polling too fast")
	ErrExpiredToken         = errors.New("device code expired")
	ErrAccessDenied         = errors.New("device authorization denied")
)

// Session and token errors
var (
	ErrReuseDetected  = errors.New("refresh token reuse detected")
	ErrSessionRevoked = errors.New("session revoked")
	ErrSessionExpired = errors.New("session expired")
	ErrKeyUnavailable = errors.New("signing key set unavailable")
	ErrTokenInvalid   = errors.New("token invalid")
)

// ErrorCode maps a service error onto the OAuth wire error code and a
// human readable description for the response body.
func ErrorCode(err error) (string, string) {
	switch {
	case errors.Is(err, ErrUnknownClient), errors.Is(err, ErrClientSecretMismatch):
		return "invalid_client", "Client authentication failed"
	case errors.Is(err, ErrGrantNotAllowed):
		return "unauthorized_client", "Client is not authorized for this grant type"
	case errors.Is(err, ErrInvalidRedirectURI), errors.Is(err, ErrInvalidChallenge):
		return "invalid_request", "Malformed request"
	case errors.Is(err, ErrUnsupportedResponseType):
		return "unsupported_response_type", "Unsupported response_type"
	case errors.Is(err, ErrGrantExpired), errors.Is(err, ErrGrantConsumed),
		errors.Is(err, ErrChallengeMismatch), errors.Is(err, ErrRedirectMismatch),
		errors.Is(err, ErrReuseDetected), errors.Is(err, ErrSessionRevoked),
		errors.Is(err, ErrSessionExpired):
		return "invalid_grant", "Invalid or expired grant"
	case errors.Is(err, ErrAuthorizationPending):
		return "authorization_pending", "Authorization is pending"
	case errors.Is(err, ErrSlowDown):
		return "slow_down", "Polling too fast"
	case errors.Is(err, ErrExpiredToken):
		return "expired_token", "Device code expired"
	case errors.Is(err, ErrAccessDenied):
		return "access_denied", "Authorization was denied"
	default:
		return "server_error", "Internal server error"
	}
}
