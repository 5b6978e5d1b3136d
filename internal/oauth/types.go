package oauth

// PKCE code challenge methods
const (
	// PKCEMethodS256 is the only supported code challenge method.
	// The plain method is rejected per OAuth 2.1.
	PKCEMethodS256 = "S256"
)

// Client types
const (
	ClientTypePublic       = "public"
	ClientTypeConfidential = "confidential"
)

// Token endpoint auth methods
const (
	TokenEndpointAuthMethodNone        = "none"
	TokenEndpointAuthMethodSecretBasic = "client_secret_basic"
	TokenEndpointAuthMethodSecretPost  = "client_secret_post"
)

// SupportedTokenAuthMethods lists the token endpoint auth methods clients may register with.
var SupportedTokenAuthMethods = []string{
	TokenEndpointAuthMethodNone,
	TokenEndpointAuthMethodSecretBasic,
	TokenEndpointAuthMethodSecretPost,
}

// Grant types
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

// Well-known metadata paths
const (
	MetadataPathAuthorizationServer = "/.well-known/oauth-authorization-server"
	MetadataPathProtectedResource   = "/.well-known/oauth-protected-resource"
)

// MinStateLength is the minimum accepted length for the state parameter.
// Shorter values provide too little CSRF entropy.
const MinStateLength = 8

// Identity is the authenticated principal a valid access token resolves to.
// It is attached to the request context by the ValidateToken middleware and
// consumed by tool handlers.
type Identity struct {
	UserID    string
	ClientID  string
	SessionID string
	Scope     string
}

// TokenResponse is the JSON body returned by the token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// tokenRequest is the decoded body of a token endpoint request. The endpoint
// accepts both form-encoded and JSON bodies; some MCP clients send JSON.
type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code"`
	RedirectURI  string `json:"redirect_uri"`
	CodeVerifier string `json:"code_verifier"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}
