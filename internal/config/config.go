package config

// Version information, set at build time

var Version = "development"
var CommitHash = "development"
var BuildTimestamp = "0000-00-00T00:00:00Z"

// Session cookie name, the browser-trust anchor set by the login flow

var SessionCookieName = "janus-session"

// Grant type identifiers

const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
	GrantDeviceCode        = "urn:ietf:params:oauth:grant-type:device_code"
)

// Client kinds and trust levels

const (
	ClientKindPublic       = "public"
	ClientKindConfidential = "confidential"

	ClientTrustTrusted    = "trusted"
	ClientTrustThirdParty = "third_party"
)

// Main app config

type Config struct {
	Port                int    `mapstructure:"port" validate:"required"`
	Address             string `mapstructure:"address" validate:"required,ip4_addr"`
	AppURL              string `mapstructure:"app-url" validate:"required,url"`
	LoginURL            string `mapstructure:"login-url"`
	DatabasePath        string `mapstructure:"database-path" validate:"required"`
	ClientsFile         string `mapstructure:"clients-file"`
	AdminAPIToken       string `mapstructure:"admin-api-token"`
	AdminAPITokenFile   string `mapstructure:"admin-api-token-file"`
	LogLevel            string `mapstructure:"log-level" validate:"oneof=trace debug info warn error fatal panic"`
	LogJSON             bool   `mapstructure:"log-json"`
	AccessTokenExpiry   int    `mapstructure:"access-token-expiry"`
	RefreshTokenExpiry  int    `mapstructure:"refresh-token-expiry"`
	SessionExpiry       int    `mapstructure:"session-expiry"`
	AuthCodeExpiry      int    `mapstructure:"auth-code-expiry"`
	DeviceCodeExpiry    int    `mapstructure:"device-code-expiry"`
	DevicePollInterval  int    `mapstructure:"device-poll-interval"`
	KeyRetirement       int    `mapstructure:"key-retirement" validate:"gtfield=AccessTokenExpiry"`
	KeyRotationInterval int    `mapstructure:"key-rotation-interval"`
	TrustedProxies      string `mapstructure:"trusted-proxies"`
	DisableSweeper      bool   `mapstructure:"disable-sweeper"`
}

// Trusted clients are seeded at boot from a JSON file and are immutable
// for the lifetime of the process.

type TrustedClient struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Kind         string   `json:"kind"`
	Secret       string   `json:"secret,omitempty"`
	SecretFile   string   `json:"secret_file,omitempty"`
	RedirectURIs []string `json:"redirect_uris"`
	GrantTypes   []string `json:"grant_types"`
}

// Identity of the user attached to the current request, resolved by the
// identity middleware from the session cookie. The login step itself is
// handled by an upstream credential verifier.

type Identity struct {
	UserID         string
	SessionID      string
	ActiveTenantID string
	Email          string
	Name           string
	IsLoggedIn     bool
}

// TenantClaims are the multi-tenant claims embedded into access tokens.

type TenantClaims struct {
	TenantID        string
	OrganizationIDs []string
}

// Log config for the stream loggers

type LogStreamConfig struct {
	Enabled bool
	Level   string
}

type LogStreams struct {
	App   LogStreamConfig
	HTTP  LogStreamConfig
	Audit LogStreamConfig
}

type LogConfig struct {
	Level   string
	Json    bool
	Streams LogStreams
}
