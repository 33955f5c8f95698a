package clients

import (
	"errors"
	"strings"

	"github.com/jrsteele09/go-mfa-grant/oauth2"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidScope = errors.New("invalid scope")

type Client struct {
	ID          string             `json:"id" yaml:"id"`
	Description string             `json:"description" yaml:"description"`
	SecretHash  string             `json:"-" yaml:"secret_hash"`            // bcrypt hash, empty for public clients
	GrantTypes  []oauth2.GrantType `json:"grantTypes" yaml:"grant_types"` // Grant types this client may use
	Scopes      []string           `json:"scopes" yaml:"scopes"`          // Allowed scopes for this client
}

// IsPublic returns true if the client has no secret
func (c *Client) IsPublic() bool {
	return c.SecretHash == ""
}

// CheckSecret compares a presented secret with the stored hash.
// Public clients only accept an empty secret.
func (c *Client) CheckSecret(secret string) bool {
	if c.IsPublic() {
		return secret == ""
	}
	return bcrypt.CompareHashAndPassword([]byte(c.SecretHash), []byte(secret)) == nil
}

// AllowsGrant checks if the client may use the grant type
func (c *Client) AllowsGrant(grantType oauth2.GrantType) bool {
	for _, g := range c.GrantTypes {
		if g == grantType {
			return true
		}
	}
	return false
}

// HasScope checks if the client has permission for a specific scope
func (c *Client) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ValidateScopes checks if all requested scopes are allowed for this client
func (c *Client) ValidateScopes(requestedScopes string) error {
	for _, scope := range strings.Fields(requestedScopes) {
		if !c.HasScope(scope) {
			return ErrInvalidScope
		}
	}
	return nil
}

// HashSecret produces the bcrypt hash stored in SecretHash.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
