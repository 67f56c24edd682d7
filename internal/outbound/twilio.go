package outbound

import (
	"context"
	"errors"
	"fmt"
	"time"

	"calldesk-platform/internal/config"
	"calldesk-platform/pkg/logger"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioChannel sends SMS through the carrier REST API with bounded retries.
//
// Retry policy: transport failures and carrier 5xx are retried up to
// cfg.SendAttempts with a short backoff; carrier 4xx (invalid number, opt-out)
// never is. Both surface as ErrSendFailed once exhausted.
type TwilioChannel struct {
	api *twilio.RestClient

	from           string
	statusCallback string
	attempts       int
	backoff        time.Duration
}

func NewTwilioChannel(cfg config.TwilioConfig) *TwilioChannel {
	api := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioChannel{
		api:            api,
		from:           cfg.FromNumber,
		statusCallback: cfg.StatusCallbackURL,
		attempts:       cfg.SendAttempts,
		backoff:        500 * time.Millisecond,
	}
}

func (t *TwilioChannel) SendSMS(ctx context.Context, to, body string) (string, error) {
	if to == "" || body == "" {
		return "", fmt.Errorf("%w: to and body are required", ErrSendFailed)
	}

	params := &openapi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(to)
	params.SetBody(body)
	if t.statusCallback != "" {
		params.SetStatusCallback(t.statusCallback)
	}

	var lastErr error
	for attempt := 1; attempt <= t.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrSendFailed, err)
		}

		resp, err := t.api.Api.CreateMessage(params)
		if err == nil {
			if resp.Sid == nil || *resp.Sid == "" {
				return "", fmt.Errorf("%w: carrier returned no message sid", ErrSendFailed)
			}
			return *resp.Sid, nil
		}
		lastErr = err

		if !retryable(err) {
			break
		}
		logger.From(ctx).Warn("sms send attempt failed", "to", to, "attempt", attempt, "err", err)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrSendFailed, ctx.Err())
		case <-time.After(t.backoff * time.Duration(attempt)):
		}
	}

	return "", fmt.Errorf("%w: %v", ErrSendFailed, lastErr)
}

// retryable: carrier-side rejections (4xx) are final; everything else is
// treated as transient.
func retryable(err error) bool {
	var restErr *twclient.TwilioRestError
	if errors.As(err, &restErr) {
		return restErr.Status >= 500
	}
	return true
}
