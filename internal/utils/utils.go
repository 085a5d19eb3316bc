package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/janusauth/janus/internal/config"
)

func ReadFile(path string) (string, error) {
	_, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	return string(contents), nil
}

func GetSecret(conf string, file string) string {
	if conf == "" && file == "" {
		return ""
	}

	if conf != "" {
		return conf
	}

	contents, err := ReadFile(file)
	if err != nil {
		return ""
	}

	return ParseSecretFile(contents)
}

func ParseSecretFile(contents string) string {
	lines := strings.Split(contents, "\n")

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		return strings.TrimSpace(line)
	}

	return ""
}

// These could definitely be improved A LOT but at least they are cryptographically secure
func GetRandomString(length int) (string, error) {
	if length < 1 {
		return "", errors.New("length must be greater than 0")
	}
	b := make([]byte, length)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(b)
	return state[:length], nil
}

// UserCodeAlphabet excludes glyphs that are easy to confuse when read
// aloud or typed from a TV screen (0/O, 1/I, vowels that form words).
const UserCodeAlphabet = "BCDFGHJKLMNPQRSTVWXZ23456789"

func GenerateUserCode() (string, error) {
	chars := make([]byte, 8)
	max := byte(len(UserCodeAlphabet))
	buf := make([]byte, 1)

	for i := range chars {
		// Rejection sampling to keep the distribution uniform
		for {
			if _, err := rand.Read(buf); err != nil {
				return "", err
			}
			if buf[0] < 252 { // 252 = 28 * 9, largest multiple of len(alphabet) below 256
				break
			}
		}
		chars[i] = UserCodeAlphabet[buf[0]%max]
	}

	return fmt.Sprintf("%s-%s", chars[:4], chars[4:]), nil
}

// HashToken is the storage form of opaque refresh and device codes. Only
// the digest ever touches the database.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// S256Challenge computes the PKCE code challenge for a verifier.
func S256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func ParseClientsFile(path string) ([]config.TrustedClient, error) {
	contents, err := ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read clients file: %w", err)
	}

	var clients []config.TrustedClient
	if err := json.Unmarshal([]byte(contents), &clients); err != nil {
		return nil, fmt.Errorf("failed to parse clients file: %w", err)
	}

	for i, client := range clients {
		if client.ID == "" {
			return nil, fmt.Errorf("client at index %d has no id", i)
		}
		secret := GetSecret(client.Secret, client.SecretFile)
		clients[i].Secret = secret
		clients[i].SecretFile = ""
	}

	return clients, nil
}
