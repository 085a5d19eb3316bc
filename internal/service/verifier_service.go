package service

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

type VerifierServiceConfig struct {
	KeySetURL string
	Issuer    string
	// Audience is enforced when non-empty
	Audience string
	// CacheTTL is how long a fetched key set is considered fresh, in seconds
	CacheTTL int
	// StalenessCeiling bounds how long a stale key set may be served when
	// the key endpoint is unreachable, in seconds. Past it, fail closed.
	StalenessCeiling int
	HTTPClient       *http.Client
}

type keySet struct {
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// VerifierService validates issued tokens against the published key set.
// Every resource server embeds one of these, so it has to keep working
// through short key-manager outages.
type VerifierService struct {
	config VerifierServiceConfig
	client *http.Client
	mutex  sync.Mutex
	cached *keySet
}

func NewVerifierService(config VerifierServiceConfig) *VerifierService {
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	if config.CacheTTL <= 0 {
		config.CacheTTL = 3600
	}
	if config.StalenessCeiling <= 0 {
		config.StalenessCeiling = 86400
	}

	return &VerifierService{
		config: config,
		client: client,
	}
}

// Verify checks signature, expiry, issuer and audience. A token signed
// with a retired key verifies as long as that key is still published.
func (vs *VerifierService) Verify(tokenString string) (jwt.MapClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(vs.config.Issuer),
		jwt.WithExpirationRequired(),
	}
	if vs.config.Audience != "" {
		options = append(options, jwt.WithAudience(vs.config.Audience))
	}

	token, err := jwt.Parse(tokenString, vs.keyForToken, options...)
	if err != nil {
		if errors.Is(err, ErrKeyUnavailable) {
			return nil, ErrKeyUnavailable
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

func (vs *VerifierService) keyForToken(token *jwt.Token) (any, error) {
	kid, ok := token.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, errors.New("token has no kid header")
	}

	keys, err := vs.keySet(false)
	if err == nil {
		if key, found := keys[kid]; found {
			return key, nil
		}
	}

	// Unrecognized kid, refresh once in case a rotation just happened
	keys, err = vs.keySet(true)
	if err != nil {
		return nil, err
	}
	if key, found := keys[kid]; found {
		return key, nil
	}

	return nil, fmt.Errorf("unknown key id %s", kid)
}

func (vs *VerifierService) keySet(force bool) (map[string]*rsa.PublicKey, error) {
	vs.mutex.Lock()
	defer vs.mutex.Unlock()

	now := time.Now()

	if !force && vs.cached != nil && now.Sub(vs.cached.fetchedAt) < time.Duration(vs.config.CacheTTL)*time.Second {
		return vs.cached.keys, nil
	}

	keys, err := vs.fetchKeySet()
	if err != nil {
		// Serve the last-known-good set up to the staleness ceiling
		if vs.cached != nil && now.Sub(vs.cached.fetchedAt) < time.Duration(vs.config.StalenessCeiling)*time.Second {
			log.Warn().Err(err).Msg("Key set fetch failed, serving cached keys")
			return vs.cached.keys, nil
		}
		return nil, ErrKeyUnavailable
	}

	vs.cached = &keySet{keys: keys, fetchedAt: now}
	return keys, nil
}

func (vs *VerifierService) fetchKeySet() (map[string]*rsa.PublicKey, error) {
	res, err := vs.client.Get(vs.config.KeySetURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch key set: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("key set endpoint returned %s", res.Status)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read key set: %w", err)
	}

	var document struct {
		Keys []struct {
			Kty string `json:"kty"`
			Kid string `json:"kid"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.Unmarshal(body, &document); err != nil {
		return nil, fmt.Errorf("failed to parse key set: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(document.Keys))
	for _, entry := range document.Keys {
		if entry.Kty != "RSA" || entry.Kid == "" {
			continue
		}

		nBytes, err := base64.RawURLEncoding.DecodeString(entry.N)
		if err != nil {
			continue
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(entry.E)
		if err != nil {
			continue
		}

		e := 0
		for _, b := range eBytes {
			e = e<<8 | int(b)
		}

		keys[entry.Kid] = &rsa.PublicKey{
			N: new(big.Int).SetBytes(nBytes),
			E: e,
		}
	}

	if len(keys) == 0 {
		return nil, errors.New("key set contains no usable keys")
	}

	return keys, nil
}
