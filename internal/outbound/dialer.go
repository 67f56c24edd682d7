package outbound

import (
	"context"
	"errors"
	"fmt"

	"calldesk-platform/internal/config"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

var ErrDialFailed = errors.New("outbound: carrier dial failed")

// Dialer places carrier-side calls for click-to-call, where the agent asks
// the server to originate instead of dialing from the browser leg.
type Dialer interface {
	StartCall(ctx context.Context, to string) (string, error)
}

// DialerFunc adapts a function to the Dialer interface (test doubles).
type DialerFunc func(ctx context.Context, to string) (string, error)

func (f DialerFunc) StartCall(ctx context.Context, to string) (string, error) {
	return f(ctx, to)
}

// TwilioDialer originates calls through the voice application, so the
// created call runs the same webhook flow as a browser-placed one.
type TwilioDialer struct {
	api *twilio.RestClient

	from           string
	applicationSID string
	statusCallback string
}

func NewTwilioDialer(cfg config.TwilioConfig) *TwilioDialer {
	api := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioDialer{
		api:            api,
		from:           cfg.FromNumber,
		applicationSID: cfg.TwiMLAppSID,
		statusCallback: cfg.StatusCallbackURL,
	}
}

func (d *TwilioDialer) StartCall(ctx context.Context, to string) (string, error) {
	if to == "" {
		return "", fmt.Errorf("%w: to is required", ErrDialFailed)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDialFailed, err)
	}

	params := &openapi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(d.from)
	params.SetApplicationSid(d.applicationSID)
	if d.statusCallback != "" {
		params.SetStatusCallback(d.statusCallback)
		params.SetStatusCallbackEvent([]string{"ringing", "answered", "completed"})
	}

	resp, err := d.api.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDialFailed, err)
	}
	if resp.Sid == nil || *resp.Sid == "" {
		return "", fmt.Errorf("%w: carrier returned no call sid", ErrDialFailed)
	}
	return *resp.Sid, nil
}
