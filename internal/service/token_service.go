package service

import (
	"fmt"
	"time"

	"github.com/janusauth/janus/internal/model"
	"github.com/janusauth/janus/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

type TokenServiceConfig struct {
	Issuer            string
	AccessTokenExpiry int
}

type MintedTokens struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	TokenType    string
	ExpiresIn    int
	Scope        string
}

// TokenService builds and signs the tokens handed out by the grant
// engines. Signing always goes through the key manager's current key.
type TokenService struct {
	config        TokenServiceConfig
	keys          *KeyService
	sessions      *SessionService
	resolveTenant TenantResolver
}

func NewTokenService(config TokenServiceConfig, keys *KeyService, sessions *SessionService, resolveTenant TenantResolver) *TokenService {
	return &TokenService{
		config:        config,
		keys:          keys,
		sessions:      sessions,
		resolveTenant: resolveTenant,
	}
}

// Mint issues the token set for a subject on a session. The refresh token
// is the only stateful piece: it is stored hashed on the session and is
// the single active value for it.
func (ts *TokenService) Mint(subject string, client *model.Client, session *model.Session, scopes []string, nonce string) (*MintedTokens, error) {
	accessToken, err := ts.signAccessToken(subject, client, session)
	if err != nil {
		return nil, err
	}

	minted := &MintedTokens{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   ts.config.AccessTokenExpiry,
		Scope:       joinScopes(scopes),
	}

	if containsScope(scopes, "openid") {
		idToken, err := ts.signIDToken(subject, client, nonce)
		if err != nil {
			return nil, err
		}
		minted.IDToken = idToken
	}

	refreshToken, err := utils.GetRandomString(64)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	if err := ts.sessions.SetRefresh(session.ID, utils.HashToken(refreshToken)); err != nil {
		return nil, err
	}
	minted.RefreshToken = refreshToken

	return minted, nil
}

// Refresh redeems a refresh token with rotation-on-use. A token that was
// already rotated out is treated as theft: the whole session is revoked.
func (ts *TokenService) Refresh(presented string, client *model.Client) (*MintedTokens, *model.Session, error) {
	hash := utils.HashToken(presented)

	session, reused, err := ts.sessions.FindByRefreshHash(hash)
	if err != nil {
		return nil, nil, err
	}

	if reused {
		log.Warn().Str("session_id", session.ID).Msg("Rotated refresh token presented again, revoking session")
		if err := ts.sessions.Revoke(session.ID); err != nil {
			log.Error().Err(err).Str("session_id", session.ID).Msg("Failed to revoke session")
		}
		return nil, session, ErrReuseDetected
	}

	now := time.Now().Unix()
	if session.Revoked {
		return nil, session, ErrSessionRevoked
	}
	if session.ExpiresAt <= now || session.RefreshExpiresAt <= now {
		return nil, session, ErrSessionExpired
	}
	if session.ClientID != client.ClientID {
		return nil, session, ErrTokenInvalid
	}

	newToken, err := utils.GetRandomString(64)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	// The conditional swap makes concurrent redemptions race safely, the
	// loser sees an invalid grant
	if err := ts.sessions.RotateRefresh(session.ID, hash, utils.HashToken(newToken)); err != nil {
		return nil, session, err
	}

	accessToken, err := ts.signAccessToken(session.UserID, client, session)
	if err != nil {
		return nil, session, err
	}

	return &MintedTokens{
		AccessToken:  accessToken,
		RefreshToken: newToken,
		TokenType:    "Bearer",
		ExpiresIn:    ts.config.AccessTokenExpiry,
	}, session, nil
}

func (ts *TokenService) Issuer() string {
	return ts.config.Issuer
}

func (ts *TokenService) signAccessToken(subject string, client *model.Client, session *model.Session) (string, error) {
	tenant, err := ts.resolveTenant(subject, session.ActiveTenantID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve tenant claims: %w", err)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":       ts.config.Issuer,
		"sub":       subject,
		"aud":       client.ClientID,
		"iat":       now.Unix(),
		"exp":       now.Add(time.Duration(ts.config.AccessTokenExpiry) * time.Second).Unix(),
		"sid":       session.ID,
		"tenant_id": tenant.TenantID,
		"org_ids":   tenant.OrganizationIDs,
	}

	return ts.sign(claims)
}

func (ts *TokenService) signIDToken(subject string, client *model.Client, nonce string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":       ts.config.Issuer,
		"sub":       subject,
		"aud":       client.ClientID,
		"iat":       now.Unix(),
		"auth_time": now.Unix(),
		"exp":       now.Add(time.Duration(ts.config.AccessTokenExpiry) * time.Second).Unix(),
	}

	if nonce != "" {
		claims["nonce"] = nonce
	}

	return ts.sign(claims)
}

func (ts *TokenService) sign(claims jwt.MapClaims) (string, error) {
	kid, key, err := ts.keys.Signer()
	if err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
