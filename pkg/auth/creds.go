package auth

import (
	"github.com/google/uuid"

	"polymarket-sdk/pkg/apierr"
	"polymarket-sdk/pkg/types"
)

// Credentials is the L2 API key triple issued by the L1 handshake. The
// key is a UUID; the secret is URL-safe base64. Credentials are held by
// the authenticated client and revealed only when composing an outbound
// header or a user-channel subscribe frame — never logged.
type Credentials struct {
	Key        string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// Validate checks the triple is complete and the key parses as a UUID.
func (c Credentials) Validate() error {
	if c.Key == "" || c.Secret == "" || c.Passphrase == "" {
		return apierr.Validationf("credentials must have key, secret, and passphrase")
	}
	if _, err := uuid.Parse(c.Key); err != nil {
		return apierr.Validationf("credential key %q is not a UUID", c.Key)
	}
	return nil
}

// WSAuth renders the triple as the user-channel subscribe side field.
func (c Credentials) WSAuth() *types.WSAuth {
	return &types.WSAuth{
		ApiKey:     c.Key,
		Secret:     c.Secret,
		Passphrase: c.Passphrase,
	}
}
