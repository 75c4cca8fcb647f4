package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier resolves a bearer token into claims.
type TokenVerifier interface {
	Verify(token string) (Claims, error)
}

// Verifier accepts this service's HS256 session tokens and, when a JWKS URL is
// configured, asymmetric Supabase access tokens.
type Verifier struct {
	jwks   keyfunc.Keyfunc
	parser *jwt.Parser
}

// NewVerifier builds a verifier. An empty jwksURL limits it to HS256 session tokens.
func NewVerifier(jwksURL string) (*Verifier, error) {
	v := &Verifier{}
	jwksURL = strings.TrimSpace(jwksURL)
	if jwksURL == "" {
		return v, nil
	}
	kf, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to init JWKS keyfunc: %w", err)
	}
	v.jwks = kf
	v.parser = jwt.NewParser(
		jwt.WithLeeway(defaultLeeway),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name, jwt.SigningMethodES256.Name}),
	)
	return v, nil
}

// Verify checks the token against the session secret first, then JWKS.
func (v *Verifier) Verify(token string) (Claims, error) {
	claims, err := VerifyJWT(token)
	if err == nil {
		return claims, nil
	}
	if v == nil || v.jwks == nil {
		return Claims{}, ErrInvalidToken
	}

	var remote supabaseClaims
	parsed, err := v.parser.ParseWithClaims(token, &remote, v.jwks.Keyfunc)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if remote.Subject == "" {
		return Claims{}, errors.Join(ErrInvalidToken, errors.New("token missing sub"))
	}
	return Claims{
		Email:            remote.Email,
		Name:             remote.Metadata.FullName,
		Picture:          remote.Metadata.AvatarURL,
		RegisteredClaims: remote.RegisteredClaims,
	}, nil
}

type supabaseClaims struct {
	Email    string `json:"email"`
	Metadata struct {
		FullName  string `json:"full_name"`
		AvatarURL string `json:"avatar_url"`
	} `json:"user_metadata"`
	jwt.RegisteredClaims
}
