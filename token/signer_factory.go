package token

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-password-auth/internal/config"
)

// NewSignerFromConfig picks the signer described by the OAuth configuration:
// an HS256 secret, a PEM key file, or an ephemeral RSA key generated now.
// Tokens signed with an ephemeral key stop validating when the process restarts.
func NewSignerFromConfig(cfg config.OAuthConfig) (Signer, error) {
	if secret := cfg.GetSigningSecret(); secret != "" {
		return NewHMACSigner(secret), nil
	}

	if path := cfg.GetSigningKeyFile(); path != "" {
		pemData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("[NewSignerFromConfig] failed to read signing key: %w", err)
		}
		keyPair, err := LoadKeyPairFromPEM(uuid.NewSHA1(uuid.NameSpaceURL, pemData).String(), pemData)
		if err != nil {
			return nil, fmt.Errorf("[NewSignerFromConfig] failed to load signing key: %w", err)
		}
		return NewKeyPairSigner(keyPair), nil
	}

	keyPair, err := GenerateRSAKeyPair(uuid.New().String(), 2048)
	if err != nil {
		return nil, fmt.Errorf("[NewSignerFromConfig] failed to generate ephemeral key: %w", err)
	}
	return NewKeyPairSigner(keyPair), nil
}
