package webhook

import (
	"context"
	"errors"
	"net/http"
	"time"

	"calldesk-platform/internal/alerts"
	"calldesk-platform/internal/calls"
	"calldesk-platform/internal/messaging"
	"calldesk-platform/internal/metrics"
	"calldesk-platform/internal/notify"
	"calldesk-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Router turns authenticated carrier webhooks into service calls.
//
// Delivery semantics: the carrier retries until it sees 2xx, so every handler
// is replay-safe. A claim short-circuits retries cheaply; if the claim store
// errors the claim is skipped and the services' own idempotence (unique
// carrier ids, monotonic ranks) absorbs the replay. Duplicates answer 200
// without reprocessing. Handlers that fail after claiming drop the claim
// before answering 5xx, so the carrier's retry is not swallowed as a
// duplicate.
type Router struct {
	Calls    *calls.Service
	Messages *messaging.Service
	Alerts   *alerts.Service
	Notify   *notify.Service

	// AgentForInbound picks the client identity to ring for an inbound
	// caller, given the resolved lead id (may be empty for unmatched
	// callers). Injected so agent availability stays out of this adapter.
	AgentForInbound func(ctx context.Context, leadID string) (string, bool)

	Claims   EventClaims
	DedupTTL time.Duration

	// FromNumber is the caller id presented on agent-placed calls.
	FromNumber string
}

const defaultDedupTTL = 24 * time.Hour

// claim reserves an event key. Errors fail open: the durable dedup layer in
// the services catches what the claim store misses.
func (h *Router) claim(ctx context.Context, key string) bool {
	if h.Claims == nil {
		return true
	}
	ttl := h.DedupTTL
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	ok, err := h.Claims.Claim(ctx, key, ttl)
	if err != nil {
		return true
	}
	return ok
}

// release drops a claim after a failed handler. Best effort: if the drop
// itself fails, the TTL expires the claim eventually.
func (h *Router) release(ctx context.Context, key string) {
	if h.Claims == nil {
		return
	}
	_ = h.Claims.Release(ctx, key)
}

// HandleVoice answers the initial voice webhook with TwiML.
//
// Two shapes arrive here: a PSTN caller dialing the company number, and an
// agent's browser leg dialing out through the voice application (From is
// "client:<identity>", To is the destination number).
func (h *Router) HandleVoice(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseVoiceForm(c.Request)
	if err != nil || form.CallSid == "" {
		metrics.WebhookEventsTotal.WithLabelValues("voice", "error").Inc()
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	ctx := c.Request.Context()

	var res VoiceResponse
	if identity, ok := form.FromClient(); ok {
		call, err := h.Calls.StartOutbound(ctx, calls.OutboundEvent{
			CarrierCallID: form.CallSid,
			UserID:        identity,
			From:          h.FromNumber,
			To:            form.To,
		})
		if err != nil {
			metrics.WebhookEventsTotal.WithLabelValues("voice", "error").Inc()
			log.Error("outbound call create failed", "call_sid", form.CallSid, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call setup failed"})
			return
		}
		log.Info("outbound call started", "call_id", call.ID, "user_id", identity)
		res = VoiceResponse{Action: ActionDialNumber, DialTarget: form.To, CallerID: h.FromNumber}
	} else {
		call, _, err := h.Calls.ApplyStatus(ctx, calls.StatusEvent{
			CarrierCallID: form.CallSid,
			CarrierStatus: "ringing",
			Direction:     calls.DirectionInbound,
			From:          form.From,
			To:            form.To,
		})
		if err != nil {
			metrics.WebhookEventsTotal.WithLabelValues("voice", "error").Inc()
			log.Error("inbound call create failed", "call_sid", form.CallSid, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call setup failed"})
			return
		}

		res = VoiceResponse{Action: ActionSayHangup, SayText: "No agents are available. Please try again later."}
		if h.AgentForInbound != nil {
			if identity, ok := h.AgentForInbound(ctx, call.LeadID); ok {
				res = VoiceResponse{Action: ActionDialClient, DialTarget: identity}
			}
		}
		if call.Unmatched() {
			log.Info("inbound call from unknown number", "call_id", call.ID, "from", form.From)
		}
	}

	twiml, err := RenderTwiML(res)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("voice", "error").Inc()
		log.Error("twiml render failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}

	metrics.WebhookEventsTotal.WithLabelValues("voice", "applied").Inc()
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, twiml)
}

// HandleCallStatus applies call progress and recording callbacks.
func (h *Router) HandleCallStatus(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseCallStatusForm(c.Request)
	if err != nil || form.CallSid == "" {
		metrics.WebhookEventsTotal.WithLabelValues("status", "error").Inc()
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	ctx := c.Request.Context()

	claimKey := "evt:call:" + form.CallSid + ":" + form.CallStatus + ":" + form.RecordingURL
	if !h.claim(ctx, claimKey) {
		metrics.WebhookEventsTotal.WithLabelValues("status", "duplicate").Inc()
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	// Recording-ready callbacks carry no CallStatus.
	if form.CallStatus == "" && form.RecordingURL != "" {
		if _, err := h.Calls.AttachRecording(ctx, form.CallSid, form.RecordingURL); err != nil {
			if errors.Is(err, calls.ErrNotFound) {
				c.JSON(http.StatusOK, gin.H{"status": "ignored"})
				return
			}
			metrics.WebhookEventsTotal.WithLabelValues("status", "error").Inc()
			log.Error("recording attach failed", "call_sid", form.CallSid, "err", err)
			h.release(ctx, claimKey)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "recording failed"})
			return
		}
		metrics.WebhookEventsTotal.WithLabelValues("status", "applied").Inc()
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	_, applied, err := h.Calls.ApplyStatus(ctx, calls.StatusEvent{
		CarrierCallID:   form.CallSid,
		CarrierStatus:   form.CallStatus,
		Direction:       directionFromCarrier(form.Direction),
		From:            form.From,
		To:              form.To,
		DurationSeconds: form.DurationSeconds,
		RecordingURL:    form.RecordingURL,
	})
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("status", "error").Inc()
		log.Error("call status apply failed", "call_sid", form.CallSid, "status", form.CallStatus, "err", err)
		h.release(ctx, claimKey)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "status apply failed"})
		return
	}

	result := "applied"
	if !applied {
		result = "duplicate"
	}
	metrics.WebhookEventsTotal.WithLabelValues("status", result).Inc()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleSMS records an inbound SMS and acknowledges immediately. Alert
// fan-out runs async so the carrier never waits on the qualification scan.
func (h *Router) HandleSMS(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseSMSForm(c.Request)
	if err != nil || form.MessageSid == "" || form.From == "" {
		metrics.WebhookEventsTotal.WithLabelValues("sms", "error").Inc()
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	ctx := c.Request.Context()

	claimKey := "evt:sms:" + form.MessageSid
	if !h.claim(ctx, claimKey) {
		metrics.WebhookEventsTotal.WithLabelValues("sms", "duplicate").Inc()
		c.Header("Content-Type", "application/xml")
		c.String(http.StatusOK, EmptyTwiML())
		return
	}

	m, err := h.Messages.Receive(ctx, form.From, form.Body, form.MessageSid)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("sms", "error").Inc()
		log.Error("inbound sms persist failed", "message_sid", form.MessageSid, "err", err)
		h.release(ctx, claimKey)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "persist failed"})
		return
	}

	if h.Alerts != nil {
		go func(m messaging.Message) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, _, err := h.Alerts.CreateForInbound(ctx, m); err != nil {
				log.Error("inbound alert create failed", "message_id", m.ID, "err", err)
			}
		}(m)
	}

	metrics.WebhookEventsTotal.WithLabelValues("sms", "applied").Inc()
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, EmptyTwiML())
}

// HandleSMSStatus mirrors delivery callbacks onto the ledger and, when the
// message was a dispatch notification, onto its notification record.
func (h *Router) HandleSMSStatus(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseSMSStatusForm(c.Request)
	if err != nil || form.MessageSid == "" {
		metrics.WebhookEventsTotal.WithLabelValues("sms_status", "error").Inc()
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	ctx := c.Request.Context()

	claimKey := "evt:smsstatus:" + form.MessageSid + ":" + form.Status
	if !h.claim(ctx, claimKey) {
		metrics.WebhookEventsTotal.WithLabelValues("sms_status", "duplicate").Inc()
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	_, applied, err := h.Messages.UpdateDelivery(ctx, form.MessageSid, form.Status)
	if err != nil {
		if errors.Is(err, messaging.ErrNotFound) {
			// Callbacks can outlive their message after retention cleanup.
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		metrics.WebhookEventsTotal.WithLabelValues("sms_status", "error").Inc()
		log.Error("delivery update failed", "message_sid", form.MessageSid, "err", err)
		h.release(ctx, claimKey)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}

	if h.Notify != nil {
		if target, ok := messaging.DeliveryStatusFromCarrier(form.Status); ok {
			if _, _, err := h.Notify.UpdateDelivery(ctx, form.MessageSid, target); err != nil {
				log.Error("notification delivery update failed", "message_sid", form.MessageSid, "err", err)
			}
		}
	}

	result := "applied"
	if !applied {
		result = "duplicate"
	}
	metrics.WebhookEventsTotal.WithLabelValues("sms_status", result).Inc()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func directionFromCarrier(d string) calls.Direction {
	switch d {
	case "inbound":
		return calls.DirectionInbound
	case "outbound-api", "outbound-dial", "outbound":
		return calls.DirectionOutbound
	default:
		return ""
	}
}
