package blur

// auth.go - wallet login.
//
//	POST /auth/challenge → message to sign
//	POST /auth/login     → access token (JWT)

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/alejandrodnm/poolbid/internal/domain"
)

// Login signs the marketplace challenge with signer and returns an access token.
func (c *Client) Login(ctx context.Context, signer domain.Signer) (string, error) {
	address := domain.NormalizeAddress(signer.Address())

	var challenge challengeResponse
	if err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/challenge",
		body:   challengeRequest{WalletAddress: address},
	}, &challenge); err != nil {
		return "", fmt.Errorf("blur.Login %s: challenge: %w", address, err)
	}

	signature, err := signer.SignMessage([]byte(challenge.Message))
	if err != nil {
		return "", fmt.Errorf("blur.Login %s: sign challenge: %w", address, err)
	}

	var login loginResponse
	if err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body: loginRequest{
			Message:       challenge.Message,
			WalletAddress: address,
			ExpiresOn:     challenge.ExpiresOn,
			HMAC:          challenge.HMAC,
			Signature:     signature,
		},
	}, &login); err != nil {
		return "", fmt.Errorf("blur.Login %s: login: %w", address, err)
	}
	if login.AccessToken == "" {
		return "", fmt.Errorf("blur.Login %s: empty access token", address)
	}
	return login.AccessToken, nil
}

// TokenValid implements ports.Authenticator.
func (c *Client) TokenValid(token string, now time.Time) bool {
	return TokenValid(token, now)
}

// TokenValid reports whether a cached access token is still usable at now.
// The signature is not verified: only the marketplace can do that, and an
// invalid token simply fails the first authenticated call.
func TokenValid(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return now.Before(exp.Time)
}
