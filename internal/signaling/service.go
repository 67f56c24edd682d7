package signaling

import (
	"errors"
	"time"

	twjwt "github.com/twilio/twilio-go/client/jwt"
)

var ErrCredentials = errors.New("signaling: carrier credentials not configured")

// Config holds the carrier-side key material for browser voice tokens.
type Config struct {
	AccountSID   string
	APIKeySID    string
	APIKeySecret string
	TwiMLAppSID  string
	TokenTTL     time.Duration
}

// Token is a short-lived browser signaling credential.
type Token struct {
	Identity  string    `json:"identity"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service mints per-agent signaling tokens for the browser softphone.
// Tokens are never persisted; expiry alone bounds their lifetime.
type Service struct {
	cfg   Config
	clock func() time.Time
}

func NewService(cfg Config) *Service {
	return &Service{cfg: cfg, clock: time.Now}
}

// Issue mints a voice-capable token whose identity is the agent's user id.
// The identity is what inbound routing dials and what outbound call webhooks
// report back, so it must be stable per agent.
func (s *Service) Issue(userID string) (Token, error) {
	if userID == "" {
		return Token{}, errors.New("signaling: empty user id")
	}
	if s.cfg.AccountSID == "" || s.cfg.APIKeySID == "" || s.cfg.APIKeySecret == "" || s.cfg.TwiMLAppSID == "" {
		return Token{}, ErrCredentials
	}

	ttl := s.cfg.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	token := twjwt.CreateAccessToken(twjwt.AccessTokenParams{
		AccountSid:    s.cfg.AccountSID,
		SigningKeySid: s.cfg.APIKeySID,
		Secret:        s.cfg.APIKeySecret,
		Identity:      userID,
		Ttl:           ttl.Seconds(),
	})
	token.AddGrant(&twjwt.VoiceGrant{
		Incoming: twjwt.Incoming{Allow: true},
		Outgoing: twjwt.Outgoing{ApplicationSid: s.cfg.TwiMLAppSID},
	})

	signed, err := token.ToJwt()
	if err != nil {
		return Token{}, err
	}
	return Token{
		Identity:  userID,
		Token:     signed,
		ExpiresAt: s.clock().UTC().Add(ttl),
	}, nil
}
