package config

import "time"

type OAuthConfig interface {
	GetRefreshTokenLength() int
	GetDefaultAccessTokenExpiry() time.Duration
	GetDefaultRefreshTokenExpiry() time.Duration
	GetIssuer() string
	GetAudience() string
	GetSigningSecret() string
	GetSigningKeyFile() string
}

type OAuth struct {
	AccessTokenTTL     time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"30s" env-description:"Lifetime of issued access tokens"`
	RefreshTokenTTL    time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"60s" env-description:"Lifetime of issued refresh tokens"`
	RefreshTokenLength int           `yaml:"refresh_token_length" env:"REFRESH_TOKEN_LENGTH" env-default:"32" env-description:"Random bytes per refresh token"`
	Issuer             string        `yaml:"token_issuer" env:"TOKEN_ISSUER" env-description:"iss claim (defaults to BASE_URL)"`
	Audience           string        `yaml:"token_audience" env:"TOKEN_AUDIENCE" env-default:"api" env-description:"aud claim"`
	SigningSecret      string        `yaml:"token_signing_secret" env:"TOKEN_SIGNING_SECRET" env-description:"HS256 secret, an ephemeral RSA key is used when empty"`
	SigningKeyFile     string        `yaml:"token_signing_key_file" env:"TOKEN_SIGNING_KEY_FILE" env-description:"PEM encoded RSA private key for RS256 signing"`
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetRefreshTokenLength() int {
	if o.RefreshTokenLength <= 0 {
		return 32 // 32 bytes = 256 bits
	}
	return o.RefreshTokenLength
}

func (o OAuth) GetDefaultAccessTokenExpiry() time.Duration {
	if o.AccessTokenTTL <= 0 {
		return 30 * time.Second
	}
	return o.AccessTokenTTL
}

func (o OAuth) GetDefaultRefreshTokenExpiry() time.Duration {
	if o.RefreshTokenTTL <= 0 {
		return 60 * time.Second
	}
	return o.RefreshTokenTTL
}

func (o OAuth) GetIssuer() string {
	return o.Issuer
}

func (o OAuth) GetAudience() string {
	return o.Audience
}

func (o OAuth) GetSigningSecret() string {
	return o.SigningSecret
}

func (o OAuth) GetSigningKeyFile() string {
	return o.SigningKeyFile
}
