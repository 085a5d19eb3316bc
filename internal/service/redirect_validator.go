package service

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

type Decision string

const (
	Allow Decision = "ALLOW"
	Deny  Decision = "DENY"
)

// reservedCallbackPattern matches OAuth callback handler paths. Sending a
// user there as a generic post-action redirect would make the client try
// to complete an exchange that does not exist, so those paths are denied
// even on trusted origins.
var reservedCallbackPattern = regexp.MustCompile(`(^|/)oauth/callback(/|$)`)

// RedirectValidator decides whether a candidate redirect target is safe.
// Validate is a pure function of the url and the origin snapshot, no I/O.
type RedirectValidator struct {
	serverOrigin string
}

func NewRedirectValidator(appURL string) (*RedirectValidator, error) {
	parsed, err := url.Parse(appURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid app url: %s", appURL)
	}

	return &RedirectValidator{
		serverOrigin: parsed.Scheme + "://" + parsed.Host,
	}, nil
}

// Validate applies the rules in order: empty input is denied; relative
// paths are allowed unless they hit a reserved callback path; absolute
// urls must be http or https, must avoid reserved callback paths and must
// land on the server's own origin or an origin from the registered
// redirect set. Unknown origins always deny.
func (v *RedirectValidator) Validate(raw string, origins map[string]struct{}) Decision {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Deny
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return Deny
	}

	if !parsed.IsAbs() {
		if reservedCallbackPattern.MatchString(parsed.Path) {
			return Deny
		}
		return Allow
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Deny
	}

	if reservedCallbackPattern.MatchString(parsed.Path) {
		return Deny
	}

	origin := parsed.Scheme + "://" + parsed.Host
	if origin == v.serverOrigin {
		return Allow
	}

	if _, ok := origins[origin]; ok {
		return Allow
	}

	return Deny
}
