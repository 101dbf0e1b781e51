package session

import (
	"context"
	"fmt"

	"github.com/go-chi/jwtauth/v5"

	"github.com/tendant/simple-account/pkg/accounterr"
	"github.com/tendant/simple-account/pkg/token"
)

// Claim names carried in the bearer JWT. The JWT is a sealed envelope
// around the AUTH token value; session state lives in the tokens table, so
// the JWT itself carries no expiry.
const (
	ClaimAuth  = "auth"
	ClaimAgent = "agent"
	ClaimToken = "token"
)

// Codec signs and opens the bearer credential handed to clients.
type Codec struct {
	auth   *jwtauth.JWTAuth
	issuer string
}

// NewCodec builds an HS256 codec. issuer goes into the "auth" claim and is
// checked on decode.
func NewCodec(secret []byte, issuer string) *Codec {
	return &Codec{
		auth:   jwtauth.New("HS256", secret, nil),
		issuer: issuer,
	}
}

// JWTAuth exposes the underlying verifier for chi middleware wiring.
func (c *Codec) JWTAuth() *jwtauth.JWTAuth {
	return c.auth
}

// EncodeLogin seals an AUTH token value into a signed bearer string.
func (c *Codec) EncodeLogin(tokenValue string, reqInfo token.RequestInfo) (string, error) {
	claims := map[string]interface{}{
		ClaimAuth:  c.issuer,
		ClaimAgent: agentOf(reqInfo),
		ClaimToken: tokenValue,
	}
	_, signed, err := c.auth.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("failed to encode session claims: %w", err)
	}
	return signed, nil
}

// DecodeLogin verifies a bearer string and returns the AUTH token value
// inside it. Any signature or shape problem surfaces as invalid_token.
func (c *Codec) DecodeLogin(bearer string) (string, error) {
	jwtToken, err := jwtauth.VerifyToken(c.auth, bearer)
	if err != nil {
		return "", accounterr.Wrap(err, accounterr.ErrCodeInvalidToken, "bearer verification failed")
	}

	claims, err := jwtToken.AsMap(context.Background())
	if err != nil {
		return "", accounterr.Wrap(err, accounterr.ErrCodeInvalidToken, "bearer claims unreadable")
	}

	issuer, _ := claims[ClaimAuth].(string)
	if issuer != c.issuer {
		return "", accounterr.New(accounterr.ErrCodeInvalidToken)
	}
	value, _ := claims[ClaimToken].(string)
	if value == "" {
		return "", accounterr.New(accounterr.ErrCodeInvalidToken)
	}
	return value, nil
}

func agentOf(reqInfo token.RequestInfo) string {
	if reqInfo.UserAgentInfo == nil {
		return ""
	}
	agent, _ := reqInfo.UserAgentInfo["userAgent"].(string)
	return agent
}
