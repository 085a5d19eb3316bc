package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/janusauth/janus/internal/config"
	"github.com/janusauth/janus/internal/model"
	"github.com/janusauth/janus/internal/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type RegistryServiceConfig struct {
	TrustedClients []config.TrustedClient
	Database       *gorm.DB
}

// RegistryService is the client registry. Reads dominate writes by a wide
// margin, so the whole client table is cached behind a RWMutex and the
// cache is rebuilt on every write.
type RegistryService struct {
	config RegistryServiceConfig
	mutex  sync.RWMutex
	cache  map[string]model.Client
}

func NewRegistryService(config RegistryServiceConfig) *RegistryService {
	return &RegistryService{
		config: config,
		cache:  make(map[string]model.Client),
	}
}

func (rs *RegistryService) Init() error {
	// Load persisted clients first so seeding sees earlier dynamic
	// registrations when checking redirect uris
	if err := rs.reloadCache(); err != nil {
		return err
	}
	if err := rs.seedTrustedClients(); err != nil {
		return err
	}
	return rs.reloadCache()
}

// Register creates a dynamically-registered third-party client. The
// returned secret is shown exactly once; only its bcrypt hash is stored.
func (rs *RegistryService) Register(name string, redirectURIs []string, kind string) (string, string, error) {
	if kind != config.ClientKindPublic && kind != config.ClientKindConfidential {
		return "", "", fmt.Errorf("%w: unknown client kind %q", ErrInvalidRedirectURI, kind)
	}

	if len(redirectURIs) == 0 {
		return "", "", fmt.Errorf("%w: at least one redirect uri is required", ErrInvalidRedirectURI)
	}

	for _, uri := range redirectURIs {
		if err := validateRedirectURI(uri, kind); err != nil {
			return "", "", err
		}
	}

	if err := rs.checkDuplicateURIs(redirectURIs, ""); err != nil {
		return "", "", err
	}

	clientID := uuid.NewString()

	var secret string
	var secretHash string

	if kind == config.ClientKindConfidential {
		var err error
		secret, err = utils.GetRandomString(43)
		if err != nil {
			return "", "", fmt.Errorf("failed to generate client secret: %w", err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return "", "", fmt.Errorf("failed to hash client secret: %w", err)
		}
		secretHash = string(hash)
	}

	urisJSON, err := json.Marshal(redirectURIs)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal redirect uris: %w", err)
	}

	grantsJSON, err := json.Marshal([]string{config.GrantAuthorizationCode, config.GrantRefreshToken})
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal grant types: %w", err)
	}

	now := time.Now().Unix()
	client := model.Client{
		ClientID:        clientID,
		Name:            name,
		Kind:            kind,
		Trust:           config.ClientTrustThirdParty,
		SecretHash:      secretHash,
		RedirectURIs:    string(urisJSON),
		GrantTypes:      string(grantsJSON),
		ConsentRequired: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := rs.config.Database.Create(&client).Error; err != nil {
		return "", "", fmt.Errorf("failed to create client: %w", err)
	}

	if err := rs.reloadCache(); err != nil {
		return "", "", err
	}

	log.Info().Str("client_id", clientID).Str("name", name).Str("kind", kind).Msg("Registered client")
	return clientID, secret, nil
}

func (rs *RegistryService) Lookup(clientID string) (*model.Client, error) {
	rs.mutex.RLock()
	defer rs.mutex.RUnlock()

	client, ok := rs.cache[clientID]
	if !ok {
		return nil, ErrUnknownClient
	}
	return &client, nil
}

func (rs *RegistryService) IsTrusted(clientID string) bool {
	client, err := rs.Lookup(clientID)
	if err != nil {
		return false
	}
	return client.Trust == config.ClientTrustTrusted
}

// Delete removes a dynamically-registered client. Trusted clients are
// seeded at boot and refuse deletion.
func (rs *RegistryService) Delete(clientID string) error {
	client, err := rs.Lookup(clientID)
	if err != nil {
		return err
	}

	if client.Trust == config.ClientTrustTrusted {
		return ErrTrustedClientImmutable
	}

	if err := rs.config.Database.Delete(&model.Client{}, "client_id = ?", clientID).Error; err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}

	return rs.reloadCache()
}

func (rs *RegistryService) VerifySecret(client *model.Client, secret string) bool {
	if client.Kind != config.ClientKindConfidential {
		// Public clients have no secret, PKCE is their security boundary
		return secret == ""
	}
	return bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(secret)) == nil
}

func (rs *RegistryService) AllowsGrant(client *model.Client, grantType string) bool {
	var grantTypes []string
	if err := json.Unmarshal([]byte(client.GrantTypes), &grantTypes); err != nil {
		log.Error().Err(err).Str("client_id", client.ClientID).Msg("Failed to unmarshal grant types")
		return false
	}

	for _, gt := range grantTypes {
		if gt == grantType {
			return true
		}
	}
	return false
}

func (rs *RegistryService) RedirectURIs(client *model.Client) []string {
	var uris []string
	if client.RedirectURIs == "" {
		return uris
	}
	if err := json.Unmarshal([]byte(client.RedirectURIs), &uris); err != nil {
		log.Error().Err(err).Str("client_id", client.ClientID).Msg("Failed to unmarshal redirect uris")
		return nil
	}
	return uris
}

func (rs *RegistryService) HasRedirectURI(client *model.Client, redirectURI string) bool {
	for _, uri := range rs.RedirectURIs(client) {
		if uri == redirectURI {
			return true
		}
	}
	return false
}

// Origins returns the set of origins from every registered redirect uri.
// The redirect validator consumes this as an immutable snapshot.
func (rs *RegistryService) Origins() map[string]struct{} {
	rs.mutex.RLock()
	defer rs.mutex.RUnlock()

	origins := make(map[string]struct{})
	for _, client := range rs.cache {
		var uris []string
		if client.RedirectURIs == "" {
			continue
		}
		if err := json.Unmarshal([]byte(client.RedirectURIs), &uris); err != nil {
			continue
		}
		for _, raw := range uris {
			parsed, err := url.Parse(raw)
			if err != nil || parsed.Scheme == "" || parsed.Host == "" {
				continue
			}
			origins[parsed.Scheme+"://"+parsed.Host] = struct{}{}
		}
	}
	return origins
}

func (rs *RegistryService) seedTrustedClients() error {
	for _, seed := range rs.config.TrustedClients {
		kind := seed.Kind
		if kind == "" {
			kind = config.ClientKindConfidential
		}

		grantTypes := seed.GrantTypes
		if len(grantTypes) == 0 {
			grantTypes = []string{config.GrantAuthorizationCode, config.GrantRefreshToken}
		}

		// An empty redirect set is only valid for device-flow-only clients
		if len(seed.RedirectURIs) == 0 {
			for _, gt := range grantTypes {
				if gt == config.GrantAuthorizationCode {
					return fmt.Errorf("trusted client %s: empty redirect set requires a device-flow-only client", seed.ID)
				}
			}
		}

		for _, uri := range seed.RedirectURIs {
			if err := validateRedirectURI(uri, kind); err != nil {
				return fmt.Errorf("trusted client %s: %w", seed.ID, err)
			}
		}

		if err := rs.checkDuplicateURIs(seed.RedirectURIs, seed.ID); err != nil {
			return fmt.Errorf("trusted client %s: %w", seed.ID, err)
		}

		var secretHash string
		if kind == config.ClientKindConfidential {
			if seed.Secret == "" {
				return fmt.Errorf("trusted client %s: confidential client has no secret", seed.ID)
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(seed.Secret), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("trusted client %s: failed to hash secret: %w", seed.ID, err)
			}
			secretHash = string(hash)
		}

		urisJSON, err := json.Marshal(seed.RedirectURIs)
		if err != nil {
			return fmt.Errorf("trusted client %s: %w", seed.ID, err)
		}

		grantsJSON, err := json.Marshal(grantTypes)
		if err != nil {
			return fmt.Errorf("trusted client %s: %w", seed.ID, err)
		}

		now := time.Now().Unix()
		client := model.Client{
			ClientID:        seed.ID,
			Name:            seed.Name,
			Kind:            kind,
			Trust:           config.ClientTrustTrusted,
			SecretHash:      secretHash,
			RedirectURIs:    string(urisJSON),
			GrantTypes:      string(grantsJSON),
			ConsentRequired: false,
			UpdatedAt:       now,
		}

		var existing model.Client
		err = rs.config.Database.Where("client_id = ?", seed.ID).First(&existing).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			client.CreatedAt = now
			if err := rs.config.Database.Create(&client).Error; err != nil {
				return fmt.Errorf("trusted client %s: failed to create: %w", seed.ID, err)
			}
			log.Info().Str("client_id", seed.ID).Msg("Seeded trusted client")
		} else if err == nil {
			client.CreatedAt = existing.CreatedAt
			// Save writes every column, a struct Updates would skip zero values
			// like consent_required = false
			if err := rs.config.Database.Save(&client).Error; err != nil {
				return fmt.Errorf("trusted client %s: failed to update: %w", seed.ID, err)
			}
			log.Info().Str("client_id", seed.ID).Msg("Updated trusted client")
		} else {
			return fmt.Errorf("trusted client %s: %w", seed.ID, err)
		}
	}

	return nil
}

func (rs *RegistryService) reloadCache() error {
	var clients []model.Client
	if err := rs.config.Database.Find(&clients).Error; err != nil {
		return fmt.Errorf("failed to load clients: %w", err)
	}

	cache := make(map[string]model.Client, len(clients))
	for _, client := range clients {
		cache[client.ClientID] = client
	}

	rs.mutex.Lock()
	rs.cache = cache
	rs.mutex.Unlock()
	return nil
}

func (rs *RegistryService) checkDuplicateURIs(redirectURIs []string, excludeClientID string) error {
	rs.mutex.RLock()
	defer rs.mutex.RUnlock()

	for _, client := range rs.cache {
		if client.ClientID == excludeClientID {
			continue
		}
		var uris []string
		if client.RedirectURIs == "" {
			continue
		}
		if err := json.Unmarshal([]byte(client.RedirectURIs), &uris); err != nil {
			continue
		}
		for _, existing := range uris {
			for _, candidate := range redirectURIs {
				if existing == candidate {
					// The same URI on two clients would make code
					// redemption ambiguous
					return fmt.Errorf("%w: %s", ErrDuplicateClient, candidate)
				}
			}
		}
	}
	return nil
}

func validateRedirectURI(raw string, kind string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRedirectURI, raw)
	}

	if !parsed.IsAbs() || parsed.Host == "" {
		return fmt.Errorf("%w: %s is not absolute", ErrInvalidRedirectURI, raw)
	}

	switch parsed.Scheme {
	case "https":
		return nil
	case "http":
		// Loopback http is permitted for CLI-style public clients only
		if kind == config.ClientKindPublic && isLoopbackHost(parsed.Hostname()) {
			return nil
		}
		return fmt.Errorf("%w: %s must use https", ErrInvalidRedirectURI, raw)
	default:
		return fmt.Errorf("%w: %s has unsupported scheme", ErrInvalidRedirectURI, raw)
	}
}

func isLoopbackHost(host string) bool {
	host = strings.ToLower(host)
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
