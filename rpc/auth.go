package rpc

import (
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"voteledger/core/types"
)

// Scopes granted to operator tokens for privileged token methods.
const (
	ScopeMint   = "token:mint"
	ScopeBurn   = "token:burn"
	ScopeFreeze = "token:freeze"
	ScopePause  = "token:pause"
)

const defaultLeeway = 2 * time.Minute

// Claims are the bearer token claims. Subject names the account the caller
// acts for; Scope is a space separated list of privileges.
type Claims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) scopes() []string {
	return strings.Fields(c.Scope)
}

func (c *Claims) hasScope(required string) bool {
	for _, scope := range c.scopes() {
		if scope == required {
			return true
		}
	}
	return false
}

type authenticator struct {
	secret []byte
	leeway time.Duration
}

func newAuthenticator(secret string, leeway time.Duration) *authenticator {
	if leeway <= 0 {
		leeway = defaultLeeway
	}
	return &authenticator{secret: []byte(strings.TrimSpace(secret)), leeway: leeway}
}

func (a *authenticator) authenticate(r *http.Request) (*Claims, *RPCError) {
	if len(a.secret) == 0 {
		return nil, unauthorized("RPC authentication not configured")
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, unauthorized("missing Authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil, unauthorized("Authorization header must use Bearer scheme")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, unauthorized("missing bearer token")
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(a.leeway), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("token invalid")
		}
		return nil, &RPCError{Code: codeUnauthorized, Message: "invalid bearer token", Data: err.Error(), status: http.StatusUnauthorized}
	}
	return claims, nil
}

func (a *authenticator) requireScope(r *http.Request, scope string) (*Claims, *RPCError) {
	claims, rpcErr := a.authenticate(r)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if !claims.hasScope(scope) {
		return nil, forbidden("token lacks scope " + scope)
	}
	return claims, nil
}

// requireAccount checks that the caller's token was issued to account.
func (a *authenticator) requireAccount(r *http.Request, account types.AccountID) *RPCError {
	claims, rpcErr := a.authenticate(r)
	if rpcErr != nil {
		return rpcErr
	}
	subject, err := types.ParseAccountID(claims.Subject)
	if err != nil {
		return forbidden("token subject is not an account")
	}
	if subject != account {
		return forbidden("token subject does not match acting account")
	}
	return nil
}

// IssueToken signs an HS256 token for subject with the given scopes. It is
// used by operators and tests to mint credentials for the RPC server.
func IssueToken(secret, subject string, scopes []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Scope: strings.Join(scopes, " "),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
