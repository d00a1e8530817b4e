package checklist

import (
	"net/http"
	"sync"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

const (
	HeaderClientId        = "X-WS-Client-ID"
	HeaderAuthToken       = "X-Auth-Token"
	HeaderNamespacePrefix = "X-Namespace-Prefix"
	HeaderNamespace       = "X-Namespace"
)

// holds the client id and auth token for a session.
// the active namespace is read from the namespace context on each call
type CredentialContext struct {
	clientId  Id
	namespace *NamespaceContext

	stateLock sync.Mutex
	token     string
}

func NewCredentialContext(clientId Id, token string, namespace *NamespaceContext) *CredentialContext {
	return &CredentialContext{
		clientId:  clientId,
		namespace: namespace,
		token:     token,
	}
}

func (self *CredentialContext) ClientId() Id {
	return self.clientId
}

func (self *CredentialContext) Token() string {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.token
}

func (self *CredentialContext) SetToken(token string) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.token = token
}

// the header set for every outbound request and the push handshake. performs no io
func (self *CredentialContext) Headers() http.Header {
	key := self.namespace.Key()
	header := http.Header{}
	header.Set(HeaderClientId, self.clientId.String())
	header.Set(HeaderAuthToken, self.Token())
	header.Set(HeaderNamespacePrefix, key.Prefix)
	header.Set(HeaderNamespace, key.Name)
	return header
}

type TokenClaims struct {
	Username  string
	Subject   string
	ExpiresAt *time.Time
}

// tokens are not required to be jwts.
// when they are, the claims are read for display only and never verified here
func ParseTokenUnverified(token string) (*TokenClaims, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	parser := gojwt.NewParser()
	jwt, _, err := parser.ParseUnverified(token, gojwt.MapClaims{})
	if err != nil {
		return nil, err
	}

	claims := jwt.Claims.(gojwt.MapClaims)

	tokenClaims := &TokenClaims{}
	if username, ok := claims["username"].(string); ok {
		tokenClaims.Username = username
	}
	if subject, err := claims.GetSubject(); err == nil {
		tokenClaims.Subject = subject
	}
	if expiresAt, err := claims.GetExpirationTime(); err == nil && expiresAt != nil {
		t := expiresAt.Time
		tokenClaims.ExpiresAt = &t
	}
	return tokenClaims, nil
}
