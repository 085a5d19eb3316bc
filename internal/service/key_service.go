package service

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/janusauth/janus/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type KeyServiceConfig struct {
	// Retirement is how long a rotated-out key keeps verifying, in seconds.
	// It must exceed the longest-lived token TTL.
	Retirement       int
	RotationInterval int
	Database         *gorm.DB
}

// signerSnapshot is immutable once published. Rotation swaps the whole
// snapshot so signing never races a half-updated key.
type signerSnapshot struct {
	KID string
	Key *rsa.PrivateKey
}

type KeyService struct {
	config     KeyServiceConfig
	current    atomic.Pointer[signerSnapshot]
	rotateLock sync.Mutex
}

func NewKeyService(config KeyServiceConfig) *KeyService {
	return &KeyService{
		config: config,
	}
}

func (ks *KeyService) Init() error {
	var current model.SigningKey
	err := ks.config.Database.Where("current = ?", true).First(&current).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Info().Msg("No current signing key, generating one")
		return ks.Rotate()
	}

	if err != nil {
		return fmt.Errorf("failed to load current signing key: %w", err)
	}

	key, err := parsePrivatePEM(current.PrivatePEM)
	if err != nil {
		return fmt.Errorf("failed to parse current signing key: %w", err)
	}

	ks.current.Store(&signerSnapshot{KID: current.KID, Key: key})
	log.Info().Str("kid", current.KID).Msg("Loaded current signing key")
	return nil
}

// Rotate generates a fresh key, marks it current and schedules the prior
// current key for retirement. The old key keeps verifying until its
// retirement window elapses.
func (ks *KeyService) Rotate() error {
	ks.rotateLock.Lock()
	defer ks.rotateLock.Unlock()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return fmt.Errorf("failed to generate RSA key: %w", err)
	}

	publicPEM, err := encodePublicPEM(&key.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to encode public key: %w", err)
	}

	now := time.Now().Unix()
	record := model.SigningKey{
		KID:        uuid.NewString(),
		Algorithm:  "RS256",
		PrivatePEM: encodePrivatePEM(key),
		PublicPEM:  publicPEM,
		Current:    true,
		NotBefore:  now,
		NotAfter:   0, // open-ended until rotated out
		CreatedAt:  now,
	}

	retireAt := now + int64(ks.config.Retirement)

	err = ks.config.Database.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.SigningKey{}).
			Where("current = ?", true).
			Updates(map[string]any{"current": false, "not_after": retireAt}).Error; err != nil {
			return err
		}
		return tx.Create(&record).Error
	})

	if err != nil {
		return fmt.Errorf("failed to persist signing key: %w", err)
	}

	ks.current.Store(&signerSnapshot{KID: record.KID, Key: key})
	log.Info().Str("kid", record.KID).Msg("Rotated signing key")
	return nil
}

// Signer returns the current signing key. The snapshot is safe to use
// concurrently with rotation.
func (ks *KeyService) Signer() (string, *rsa.PrivateKey, error) {
	snapshot := ks.current.Load()
	if snapshot == nil {
		return "", nil, ErrKeyUnavailable
	}
	return snapshot.KID, snapshot.Key, nil
}

// PublicKeys returns the verification keys for every non-expired key,
// including retired ones still inside their window.
func (ks *KeyService) PublicKeys() (map[string]*rsa.PublicKey, error) {
	records, err := ks.validKeys()
	if err != nil {
		return nil, err
	}

	keys := make(map[string]*rsa.PublicKey, len(records))
	for _, record := range records {
		public, err := parsePublicPEM(record.PublicPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key %s: %w", record.KID, err)
		}
		keys[record.KID] = public
	}
	return keys, nil
}

// PublishKeySet returns the JWKS document with public material only.
func (ks *KeyService) PublishKeySet() (map[string]any, error) {
	records, err := ks.validKeys()
	if err != nil {
		return nil, err
	}

	jwks := make([]any, 0, len(records))
	for _, record := range records {
		public, err := parsePublicPEM(record.PublicPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key %s: %w", record.KID, err)
		}

		eBytes := []byte{
			byte(public.E >> 16),
			byte(public.E >> 8),
			byte(public.E),
		}

		jwks = append(jwks, map[string]any{
			"kty": "RSA",
			"use": "sig",
			"alg": record.Algorithm,
			"kid": record.KID,
			"n":   base64.RawURLEncoding.EncodeToString(public.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(eBytes),
		})
	}

	return map[string]any{"keys": jwks}, nil
}

// RotateLoop periodically rotates the signing key. Run in a goroutine
// from the bootstrap when a rotation interval is configured.
func (ks *KeyService) RotateLoop() {
	ticker := time.NewTicker(time.Duration(ks.config.RotationInterval) * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if err := ks.Rotate(); err != nil {
			log.Error().Err(err).Msg("Scheduled key rotation failed")
		}
	}
}

func (ks *KeyService) validKeys() ([]model.SigningKey, error) {
	var records []model.SigningKey
	now := time.Now().Unix()
	err := ks.config.Database.
		Where("not_after = ? OR not_after > ?", 0, now).
		Order("created_at desc").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load signing keys: %w", err)
	}
	return records, nil
}

func encodePrivatePEM(key *rsa.PrivateKey) string {
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
}

func encodePublicPEM(key *rsa.PublicKey) (string, error) {
	bytes, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: bytes,
	})), nil
}

func parsePrivatePEM(contents string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(contents))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

func parsePublicPEM(contents string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(contents))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	public, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}
	return public, nil
}
