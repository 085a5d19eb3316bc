package tlog

import "github.com/gin-gonic/gin"

func AuditChallengeMismatch(c *gin.Context, clientID string) {
	Audit.Warn().
		Str("event", "pkce_challenge_mismatch").
		Str("client_id", clientID).
		Str("ip", c.ClientIP()).
		Send()
}

func AuditRefreshReuse(c *gin.Context, sessionID string) {
	Audit.Warn().
		Str("event", "refresh_token_reuse").
		Str("session_id", sessionID).
		Str("ip", c.ClientIP()).
		Send()
}

func AuditUntrustedRedirect(c *gin.Context, target string) {
	Audit.Warn().
		Str("event", "untrusted_redirect").
		Str("target", target).
		Str("ip", c.ClientIP()).
		Send()
}

func AuditClientSecretFailure(c *gin.Context, clientID string) {
	Audit.Warn().
		Str("event", "client_secret_failure").
		Str("client_id", clientID).
		Str("ip", c.ClientIP()).
		Send()
}

func AuditConsentDecision(c *gin.Context, clientID, userID string, approved bool) {
	Audit.Info().
		Str("event", "consent_decision").
		Str("client_id", clientID).
		Str("user_id", userID).
		Bool("approved", approved).
		Str("ip", c.ClientIP()).
		Send()
}

func AuditDeviceDecision(c *gin.Context, clientID, userID string, approved bool) {
	Audit.Info().
		Str("event", "device_decision").
		Str("client_id", clientID).
		Str("user_id", userID).
		Bool("approved", approved).
		Str("ip", c.ClientIP()).
		Send()
}
