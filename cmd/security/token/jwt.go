package token

import (
	"errors"
	"strings"
	"time"

	"webapp/cmd/internal/ids"

	"github.com/golang-jwt/jwt/v5"
)

type jwtManager struct {
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration
	secret    []byte
}

// NewJWTManager builds a Manager issuing HS256 JWTs.
func NewJWTManager(cfg Config) (Manager, error) {
	if len(cfg.JWTSecret) < minJWTSecretBytes {
		return nil, ErrConfig
	}
	return &jwtManager{
		issuer:    cfg.Issuer,
		ttl:       cfg.TTL,
		clockSkew: cfg.ClockSkew,
		secret:    []byte(cfg.JWTSecret),
	}, nil
}

func (m *jwtManager) Create(subject string, now time.Time) (string, error) {
	if err := ValidateSubject(subject); err != nil {
		return "", &CreationError{Err: err}
	}

	jti, err := ids.NewULID(now)
	if err != nil {
		return "", &CreationError{Err: err}
	}

	claims := jwt.RegisteredClaims{
		Issuer:    m.issuer,
		Subject:   subject,
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", &CreationError{Err: err}
	}
	return signed, nil
}

func (m *jwtManager) Validate(candidate string, now time.Time) (Claims, error) {
	if err := precheck(candidate); err != nil {
		return Claims{}, err
	}

	p := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(m.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	var claims jwt.RegisteredClaims
	_, err := p.ParseWithClaims(candidate, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		// Three segments that fail to decode are malformed; anything else never was a JWT.
		if errors.Is(err, jwt.ErrTokenMalformed) && strings.Count(candidate, ".") == 2 {
			return Claims{}, malformed(err)
		}
		return Claims{}, invalid(err)
	}

	if claims.Subject == "" {
		return Claims{}, invalid(errors.New("missing subject"))
	}

	out := Claims{
		Subject: claims.Subject,
		TokenID: claims.ID,
		Issuer:  claims.Issuer,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
