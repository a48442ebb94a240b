package token

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"webapp/cmd/internal/ids"

	paseto "aidanwoods.dev/go-paseto"
)

const (
	pasetoV4PublicHeader = "v4.public."

	// Ed25519 signature appended to the signed message.
	pasetoV4SigBytes = 64
)

type pasetoV4PublicManager struct {
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration

	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
}

// NewPasetoV4PublicManager builds a Manager based on PASETO v4.public.
//
// It uses an Ed25519 asymmetric keypair and enforces issuer and validity-window rules.
func NewPasetoV4PublicManager(cfg Config) (Manager, error) {
	secret, err := paseto.NewV4AsymmetricSecretKeyFromHex(cfg.PasetoV4SecretKeyHex)
	if err != nil {
		return nil, ErrConfig
	}

	return &pasetoV4PublicManager{
		issuer:    cfg.Issuer,
		ttl:       cfg.TTL,
		clockSkew: cfg.ClockSkew,
		secret:    secret,
		public:    secret.Public(),
	}, nil
}

func (m *pasetoV4PublicManager) Create(subject string, now time.Time) (string, error) {
	if err := ValidateSubject(subject); err != nil {
		return "", &CreationError{Err: err}
	}

	jti, err := ids.NewULID(now)
	if err != nil {
		return "", &CreationError{Err: err}
	}

	tok := paseto.NewToken()
	tok.SetIssuer(m.issuer)
	tok.SetSubject(subject)
	tok.SetJti(jti)
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(now.Add(m.ttl))

	return tok.V4Sign(m.secret, nil), nil
}

func (m *pasetoV4PublicManager) Validate(candidate string, now time.Time) (Claims, error) {
	if err := precheck(candidate); err != nil {
		return Claims{}, err
	}
	if err := pasetoV4Structure(candidate); err != nil {
		return Claims{}, err
	}

	// Fresh parser per call so rules never accumulate across validations.
	// Validating slightly in the future tolerates nbf/iat skew; expiry gets stricter by the same amount.
	p := paseto.NewParserWithoutExpiryCheck()
	p.AddRule(paseto.IssuedBy(m.issuer))
	p.AddRule(paseto.ValidAt(now.Add(m.clockSkew)))

	parsed, err := p.ParseV4Public(m.public, candidate, nil)
	if err != nil {
		return Claims{}, invalid(err)
	}

	sub, err := parsed.GetSubject()
	if err != nil || sub == "" {
		return Claims{}, invalid(errors.New("missing subject"))
	}
	jti, _ := parsed.GetJti()
	iat, _ := parsed.GetIssuedAt()
	exp, err := parsed.GetExpiration()
	if err != nil {
		return Claims{}, invalid(errors.New("missing expiration"))
	}

	return Claims{
		Subject:   sub,
		TokenID:   jti,
		Issuer:    m.issuer,
		IssuedAt:  iat,
		ExpiresAt: exp,
	}, nil
}

// pasetoV4Structure separates undecodable v4.public tokens (malformed) from
// strings that never claimed to be one (invalid).
func pasetoV4Structure(candidate string) error {
	if !strings.HasPrefix(candidate, pasetoV4PublicHeader) {
		return invalid(errors.New("not a v4.public token"))
	}

	body := strings.TrimPrefix(candidate, pasetoV4PublicHeader)
	if i := strings.IndexByte(body, '.'); i >= 0 {
		body = body[:i]
	}

	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return malformed(err)
	}
	if len(raw) <= pasetoV4SigBytes {
		return malformed(errors.New("payload shorter than signature"))
	}
	return nil
}
