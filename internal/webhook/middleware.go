package webhook

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"calldesk-platform/internal/audit"
	"calldesk-platform/internal/metrics"
	"calldesk-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	twclient "github.com/twilio/twilio-go/client"
)

var ErrBadSignature = errors.New("webhook: invalid carrier signature")

// SignatureVerifier authenticates carrier webhooks before any handler runs.
//
// The carrier signs the exact public URL plus the sorted form params with the
// account auth token. publicBaseURL must match what the carrier was given
// (scheme, host, port), since the router usually sits behind a proxy and
// cannot trust Host from the request.
//
// A failed check writes nothing: the request is rejected with 403 before the
// body reaches any service.
type SignatureVerifier struct {
	validator twclient.RequestValidator
	baseURL   string
	audit     *audit.Service
}

func NewSignatureVerifier(authToken, publicBaseURL string, auditSvc *audit.Service) *SignatureVerifier {
	return &SignatureVerifier{
		validator: twclient.NewRequestValidator(authToken),
		baseURL:   strings.TrimRight(publicBaseURL, "/"),
		audit:     auditSvc,
	}
}

func (v *SignatureVerifier) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.FromGin(c)

		sig := c.GetHeader("X-Twilio-Signature")
		if sig == "" || !v.verify(c.Request, sig) {
			metrics.WebhookEventsTotal.WithLabelValues(kindFromPath(c.FullPath()), "rejected").Inc()
			log.Warn("carrier webhook rejected", "path", c.Request.URL.Path, "ip", c.ClientIP())
			if v.audit != nil {
				meta := fmt.Sprintf(`{"path":%q,"signature":%q}`, c.Request.URL.Path, sig)
				_ = v.audit.LogWebhookRejected(c.Request.Context(), c.ClientIP(), "invalid carrier signature", meta)
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": ErrBadSignature.Error()})
			return
		}
		c.Next()
	}
}

func (v *SignatureVerifier) verify(r *http.Request, signature string) bool {
	if err := r.ParseForm(); err != nil {
		return false
	}
	params := make(map[string]string, len(r.PostForm))
	for k, vals := range r.PostForm {
		if len(vals) > 0 {
			params[k] = vals[0]
		}
	}
	url := v.baseURL + r.URL.RequestURI()
	return v.validator.Validate(url, params, signature)
}

func kindFromPath(path string) string {
	switch {
	case strings.HasSuffix(path, "/voice"):
		return "voice"
	case strings.HasSuffix(path, "/status"):
		return "status"
	case strings.HasSuffix(path, "/sms-status"):
		return "sms_status"
	case strings.HasSuffix(path, "/sms"):
		return "sms"
	default:
		return "unknown"
	}
}
