package oauth2

import (
	"fmt"
	"net/url"
)

// UserInfoMapping optionally renames provider userinfo JSON fields
// onto the canonical identity fields. An empty field name means "use
// the default" (sub/email/name/picture).
type UserInfoMapping struct {
	SubjectField string
	EmailField   string
	NameField    string
	PictureField string
}

// ProviderConfig configures one OAuth2 identity provider.
type ProviderConfig struct {
	ProviderID            string
	ClientID              string
	ClientSecret          string
	RedirectURI           string
	AuthorizationEndpoint string
	TokenEndpoint         string
	UserInfoEndpoint      string
	Scopes                []string
	UsePKCE               bool
	AuthParams            map[string]string
	UserInfoMapping       UserInfoMapping
}

// Validate checks the fields required to run the authorization-code
// flow are present and well-formed.
func (c *ProviderConfig) Validate() error {
	if c.ProviderID == "" {
		return fmt.Errorf("provider id is required")
	}
	if c.ClientID == "" {
		return fmt.Errorf("client id is required")
	}
	if c.AuthorizationEndpoint == "" {
		return fmt.Errorf("authorization endpoint is required")
	}
	if c.TokenEndpoint == "" {
		return fmt.Errorf("token endpoint is required")
	}
	if _, err := url.Parse(c.AuthorizationEndpoint); err != nil {
		return fmt.Errorf("invalid authorization endpoint: %w", err)
	}
	if _, err := url.Parse(c.TokenEndpoint); err != nil {
		return fmt.Errorf("invalid token endpoint: %w", err)
	}
	return nil
}
