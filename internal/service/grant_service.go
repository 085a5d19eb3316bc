package service

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/janusauth/janus/internal/config"
	"github.com/janusauth/janus/internal/model"
	"github.com/janusauth/janus/internal/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type GrantServiceConfig struct {
	AuthCodeExpiry int
	Database       *gorm.DB
}

// GrantService drives the authorization-code+PKCE state machine. A code
// moves issued -> redeemed or issued -> expired, never backwards.
type GrantService struct {
	config   GrantServiceConfig
	registry *RegistryService
	sessions *SessionService
	tokens   *TokenService
}

func NewGrantService(config GrantServiceConfig, registry *RegistryService, sessions *SessionService, tokens *TokenService) *GrantService {
	return &GrantService{
		config:   config,
		registry: registry,
		sessions: sessions,
		tokens:   tokens,
	}
}

type AuthorizeInput struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	Scope               string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
	UserID              string
	ActiveTenantID      string
}

type AuthorizeResult struct {
	// RedirectTo carries the code and state back to the client on success
	RedirectTo string
	// ConsentPending means the request is suspended until the consent UI
	// calls DecideConsent with ConsentID
	ConsentPending bool
	ConsentID      string
}

// Start validates an authorization request and either issues a code or
// suspends pending consent. Validation failures before the redirect_uri
// check must never be redirected, the controller renders those in-page.
func (gs *GrantService) Start(input AuthorizeInput) (*AuthorizeResult, error) {
	client, err := gs.registry.Lookup(input.ClientID)
	if err != nil {
		return nil, err
	}

	if !gs.registry.HasRedirectURI(client, input.RedirectURI) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRedirectURI, input.RedirectURI)
	}

	// redirect_uri is validated from here on, later failures may redirect

	if !gs.registry.AllowsGrant(client, config.GrantAuthorizationCode) {
		return nil, ErrGrantNotAllowed
	}

	if input.ResponseType != "code" {
		return nil, ErrUnsupportedResponseType
	}

	// S256 only, plain would leak the verifier to anything that can see
	// the authorization request
	if input.CodeChallenge == "" || input.CodeChallengeMethod != "S256" {
		return nil, ErrInvalidChallenge
	}

	if client.ConsentRequired && !gs.hasConsent(input.UserID, client.ClientID) {
		pending := model.PendingAuthorization{
			ID:                  uuid.NewString(),
			UserID:              input.UserID,
			TenantID:            input.ActiveTenantID,
			ClientID:            client.ClientID,
			RedirectURI:         input.RedirectURI,
			Scope:               input.Scope,
			State:               input.State,
			Nonce:               input.Nonce,
			CodeChallenge:       input.CodeChallenge,
			CodeChallengeMethod: input.CodeChallengeMethod,
			ExpiresAt:           time.Now().Add(10 * time.Minute).Unix(),
			CreatedAt:           time.Now().Unix(),
		}

		if err := gs.config.Database.Create(&pending).Error; err != nil {
			return nil, fmt.Errorf("failed to create pending authorization: %w", err)
		}

		log.Debug().Str("client_id", client.ClientID).Str("user_id", input.UserID).Msg("Authorization suspended for consent")
		return &AuthorizeResult{ConsentPending: true, ConsentID: pending.ID}, nil
	}

	redirectTo, err := gs.issueCode(input)
	if err != nil {
		return nil, err
	}

	return &AuthorizeResult{RedirectTo: redirectTo}, nil
}

// DecideConsent resumes a suspended authorization. The consent UI is an
// external collaborator, it only ever calls back with a decision.
func (gs *GrantService) DecideConsent(consentID string, approved bool) (string, error) {
	var pending model.PendingAuthorization
	err := gs.config.Database.Where("id = ?", consentID).First(&pending).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrGrantExpired
	}
	if err != nil {
		return "", fmt.Errorf("failed to load pending authorization: %w", err)
	}

	// Decide exactly once
	result := gs.config.Database.Model(&model.PendingAuthorization{}).
		Where("id = ? AND decided = ?", consentID, false).
		Update("decided", true)
	if result.Error != nil {
		return "", fmt.Errorf("failed to update pending authorization: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return "", ErrGrantConsumed
	}

	if pending.ExpiresAt <= time.Now().Unix() {
		return "", ErrGrantExpired
	}

	if !approved {
		return errorRedirect(pending.RedirectURI, pending.State, "access_denied", "The user denied the request"), nil
	}

	grant := model.ConsentGrant{
		UserID:    pending.UserID,
		ClientID:  pending.ClientID,
		CreatedAt: time.Now().Unix(),
	}
	if err := gs.config.Database.Create(&grant).Error; err != nil {
		log.Warn().Err(err).Str("client_id", pending.ClientID).Msg("Failed to record consent grant")
	}

	return gs.issueCode(AuthorizeInput{
		ClientID:            pending.ClientID,
		RedirectURI:         pending.RedirectURI,
		Scope:               pending.Scope,
		State:               pending.State,
		Nonce:               pending.Nonce,
		CodeChallenge:       pending.CodeChallenge,
		CodeChallengeMethod: pending.CodeChallengeMethod,
		UserID:              pending.UserID,
		ActiveTenantID:      pending.TenantID,
	})
}

// Exchange redeems an authorization code for tokens. The code is consumed
// first with a conditional update so concurrent exchanges cannot both
// succeed, and it stays consumed no matter which later check fails.
func (gs *GrantService) Exchange(code string, client *model.Client, redirectURI string, codeVerifier string) (*MintedTokens, error) {
	result := gs.config.Database.Model(&model.AuthorizationRequest{}).
		Where("code = ? AND consumed = ?", code, false).
		Update("consumed", true)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to consume authorization code: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrGrantConsumed
	}

	var request model.AuthorizationRequest
	if err := gs.config.Database.Where("code = ?", code).First(&request).Error; err != nil {
		return nil, fmt.Errorf("failed to load authorization request: %w", err)
	}

	if request.ExpiresAt <= time.Now().Unix() {
		return nil, ErrGrantExpired
	}

	if request.ClientID != client.ClientID {
		return nil, ErrGrantConsumed
	}

	// Byte-exact match with the uri presented at authorization start
	if request.RedirectURI != redirectURI {
		return nil, ErrRedirectMismatch
	}

	if utils.S256Challenge(codeVerifier) != request.CodeChallenge {
		return nil, ErrChallengeMismatch
	}

	session, err := gs.sessions.Create(request.UserID, client.ClientID, request.TenantID)
	if err != nil {
		return nil, err
	}

	return gs.tokens.Mint(request.UserID, client, session, splitScopes(request.Scope), request.Nonce)
}

func (gs *GrantService) issueCode(input AuthorizeInput) (string, error) {
	code, err := utils.GetRandomString(43)
	if err != nil {
		return "", fmt.Errorf("failed to generate authorization code: %w", err)
	}

	now := time.Now()
	request := model.AuthorizationRequest{
		Code:                code,
		ClientID:            input.ClientID,
		UserID:              input.UserID,
		TenantID:            input.ActiveTenantID,
		RedirectURI:         input.RedirectURI,
		Scope:               input.Scope,
		Nonce:               input.Nonce,
		CodeChallenge:       input.CodeChallenge,
		CodeChallengeMethod: input.CodeChallengeMethod,
		ExpiresAt:           now.Add(time.Duration(gs.config.AuthCodeExpiry) * time.Second).Unix(),
		CreatedAt:           now.Unix(),
	}

	if err := gs.config.Database.Create(&request).Error; err != nil {
		return "", fmt.Errorf("failed to store authorization request: %w", err)
	}

	redirectURL, err := url.Parse(input.RedirectURI)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidRedirectURI, input.RedirectURI)
	}

	query := redirectURL.Query()
	query.Set("code", code)
	if input.State != "" {
		query.Set("state", input.State)
	}
	redirectURL.RawQuery = query.Encode()

	return redirectURL.String(), nil
}

func (gs *GrantService) hasConsent(userID string, clientID string) bool {
	var grant model.ConsentGrant
	err := gs.config.Database.
		Where("user_id = ? AND client_id = ?", userID, clientID).
		First(&grant).Error
	return err == nil
}

func errorRedirect(redirectURI string, state string, code string, description string) string {
	redirectURL, err := url.Parse(redirectURI)
	if err != nil {
		return ""
	}

	query := redirectURL.Query()
	query.Set("error", code)
	query.Set("error_description", description)
	if state != "" {
		query.Set("state", state)
	}
	redirectURL.RawQuery = query.Encode()
	return redirectURL.String()
}

// Scope helpers

func splitScopes(scopes string) []string {
	if scopes == "" {
		return []string{}
	}
	parts := strings.Split(scopes, " ")
	result := []string{}
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func joinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

func containsScope(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}
