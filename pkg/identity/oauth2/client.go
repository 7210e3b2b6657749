package oauth2

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	xoauth2 "golang.org/x/oauth2"

	"github.com/agentstack/ras-go/pkg/identity"
)

// ErrStateNotFound is returned by StateStore.Take when a state is
// missing, already consumed, or expired.
var ErrStateNotFound = errors.New("oauth2 state not found")

// AuthorizationURL is the out-of-band result of StartFlow.
type AuthorizationURL struct {
	URL   string
	State string
}

// CallbackRequest is the wire shape of an OAuth2 callback.
type CallbackRequest struct {
	ProviderID       string
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// TokenResponse is the token endpoint's JSON response.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// userInfoResponse is the raw userinfo JSON object; every field,
// mapped or not, is copied into the canonical identity's Metadata.
type userInfoResponse struct {
	fields map[string]any
}

func (u *userInfoResponse) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &u.fields)
}

func (u *userInfoResponse) str(key string) string {
	v, _ := u.fields[key].(string)
	return v
}

// Client drives the Authorization Code + PKCE flow against any number
// of providers, keyed by provider id.
type Client struct {
	httpClient *http.Client
	stateStore StateStore
	stateTTL   time.Duration
	providers  map[string]*ProviderConfig
}

// NewClient constructs an OAuth2 Client. httpTimeout bounds every
// outbound call to a provider's token/userinfo endpoint.
func NewClient(store StateStore, stateTTL, httpTimeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: httpTimeout},
		stateStore: store,
		stateTTL:   stateTTL,
		providers:  make(map[string]*ProviderConfig),
	}
}

// RegisterProvider adds a provider configuration, keyed by its ProviderID.
func (c *Client) RegisterProvider(cfg *ProviderConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("register provider %s: %w", cfg.ProviderID, err)
	}
	c.providers[cfg.ProviderID] = cfg
	return nil
}

func (c *Client) provider(id string) (*ProviderConfig, error) {
	cfg, ok := c.providers[id]
	if !ok {
		return nil, fmt.Errorf("unknown oauth2 provider: %s", id)
	}
	return cfg, nil
}

// StartFlow generates the authorization URL for providerID, minting
// and storing a fresh state (and PKCE verifier, if enabled).
func (c *Client) StartFlow(providerID string, additionalParams map[string]string) (*AuthorizationURL, error) {
	cfg, err := c.provider(providerID)
	if err != nil {
		return nil, err
	}

	var pkce *PKCEChallenge
	if cfg.UsePKCE {
		pkce, err = NewPKCEChallenge()
		if err != nil {
			return nil, err
		}
	}

	state := &State{
		ID:          newStateID(),
		ProviderID:  cfg.ProviderID,
		RedirectURI: cfg.RedirectURI,
		ExpiresAt:   time.Now().Add(c.stateTTL),
	}
	if pkce != nil {
		state.CodeVerifier = pkce.CodeVerifier
	}
	if err := c.stateStore.Store(state); err != nil {
		return nil, fmt.Errorf("store oauth2 state: %w", err)
	}

	// golang.org/x/oauth2 supplies the standard response_type/client_id/
	// redirect_uri/scope/state params; PKCE and provider-specific extras
	// are layered on top since AuthCodeURL has no hook for either.
	base := xoauth2.Config{
		ClientID:    cfg.ClientID,
		RedirectURL: cfg.RedirectURI,
		Scopes:      cfg.Scopes,
		Endpoint:    xoauth2.Endpoint{AuthURL: cfg.AuthorizationEndpoint},
	}

	var opts []xoauth2.AuthCodeOption
	if pkce != nil {
		opts = append(opts,
			xoauth2.SetAuthURLParam("code_challenge", pkce.CodeChallenge),
			xoauth2.SetAuthURLParam("code_challenge_method", pkce.CodeChallengeMethod))
	}
	for k, v := range cfg.AuthParams {
		opts = append(opts, xoauth2.SetAuthURLParam(k, v))
	}
	for k, v := range additionalParams {
		opts = append(opts, xoauth2.SetAuthURLParam(k, v))
	}

	rawURL := base.AuthCodeURL(state.ID, opts...)
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse authorization url: %w", err)
	}

	return &AuthorizationURL{URL: u.String(), State: state.ID}, nil
}

// HandleCallback validates the state, exchanges the code for tokens,
// fetches userinfo, and returns the canonical identity.
func (c *Client) HandleCallback(ctx context.Context, req CallbackRequest) (identity.CanonicalIdentity, error) {
	cfg, err := c.provider(req.ProviderID)
	if err != nil {
		return identity.CanonicalIdentity{}, err
	}

	state, err := c.stateStore.Take(req.State)
	if err != nil {
		return identity.CanonicalIdentity{}, identity.NewInvalidStateError()
	}
	if state.ProviderID != cfg.ProviderID {
		return identity.CanonicalIdentity{}, identity.NewInvalidStateError()
	}

	if req.Error != "" {
		return identity.CanonicalIdentity{}, identity.NewCallbackError(req.Error, req.ErrorDescription)
	}

	token, err := c.exchangeCode(ctx, cfg, req.Code, state.CodeVerifier)
	if err != nil {
		return identity.CanonicalIdentity{}, err
	}

	return c.getUserInfo(ctx, cfg, token.AccessToken)
}

func (c *Client) exchangeCode(ctx context.Context, cfg *ProviderConfig, code, codeVerifier string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", cfg.ClientID)
	form.Set("client_secret", cfg.ClientSecret)
	form.Set("redirect_uri", cfg.RedirectURI)
	if codeVerifier != "" {
		form.Set("code_verifier", codeVerifier)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, identity.NewProviderError(err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, identity.NewProviderError(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, identity.NewTokenExchangeFailedError(string(body))
	}

	var tok TokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, identity.NewProviderError(fmt.Errorf("decode token response: %w", err))
	}
	return &tok, nil
}

func (c *Client) getUserInfo(ctx context.Context, cfg *ProviderConfig, accessToken string) (identity.CanonicalIdentity, error) {
	if cfg.UserInfoEndpoint == "" {
		return identity.CanonicalIdentity{}, identity.NewProviderError(fmt.Errorf("provider %s has no userinfo endpoint configured", cfg.ProviderID))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.UserInfoEndpoint, bytes.NewReader(nil))
	if err != nil {
		return identity.CanonicalIdentity{}, identity.NewProviderError(err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return identity.CanonicalIdentity{}, identity.NewProviderError(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return identity.CanonicalIdentity{}, identity.NewUserInfoFailedError(string(body))
	}

	info := &userInfoResponse{}
	if err := json.Unmarshal(body, info); err != nil {
		return identity.CanonicalIdentity{}, identity.NewProviderError(fmt.Errorf("decode userinfo response: %w", err))
	}

	subjectField := cfg.UserInfoMapping.SubjectField
	if subjectField == "" {
		subjectField = "sub"
	}
	emailField := cfg.UserInfoMapping.EmailField
	if emailField == "" {
		emailField = "email"
	}
	nameField := cfg.UserInfoMapping.NameField
	if nameField == "" {
		nameField = "name"
	}
	pictureField := cfg.UserInfoMapping.PictureField
	if pictureField == "" {
		pictureField = "picture"
	}

	metadata := make(map[string]any, len(info.fields)+1)
	for k, v := range info.fields {
		metadata[k] = v
	}
	if picture := info.str(pictureField); picture != "" {
		metadata["picture"] = picture
	}

	return identity.CanonicalIdentity{
		ProviderID:  cfg.ProviderID,
		Subject:     info.str(subjectField),
		Email:       info.str(emailField),
		DisplayName: info.str(nameField),
		Metadata:    metadata,
	}, nil
}
