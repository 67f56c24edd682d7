package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calldesk_webhook_events_total",
			Help: "Carrier webhook events by type and result",
		},
		[]string{"type", "result"}, // voice|status|sms|sms_status , applied|duplicate|rejected|error
	)

	OutboundSMSTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calldesk_outbound_sms_total",
			Help: "Outbound SMS submissions by final submit status",
		},
		[]string{"status"}, // sending|failed
	)

	SignalingTokensIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "calldesk_signaling_tokens_issued_total",
			Help: "Browser signaling tokens issued",
		},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		WebhookEventsTotal,
		OutboundSMSTotal,
		SignalingTokensIssuedTotal,
	)
}
