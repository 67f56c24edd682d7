package httpapi

import (
	"errors"
	"net/http"
	"time"

	"calldesk-platform/internal/alerts"
	"calldesk-platform/internal/audit"
	"calldesk-platform/internal/auth"
	"calldesk-platform/internal/calls"
	"calldesk-platform/internal/history"
	"calldesk-platform/internal/leads"
	"calldesk-platform/internal/messaging"
	"calldesk-platform/internal/metrics"
	"calldesk-platform/internal/notify"
	"calldesk-platform/internal/outbound"
	"calldesk-platform/internal/signaling"
	"calldesk-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth      *auth.Manager
	Signaling *signaling.Service
	Calls     *calls.Service
	Messages  *messaging.Service
	Alerts    *alerts.Service
	Notify    *notify.Service
	History   *history.Service
	Audit     *audit.Service

	Dialer outbound.Dialer
	Leads  leads.Directory

	// FromNumber is the caller id for server-originated calls.
	FromNumber string
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Signaling ---

// SignalingToken mints a browser voice token for the authenticated agent.
func (h Handlers) SignalingToken(c *gin.Context) {
	if h.Signaling == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "signaling not configured"})
		return
	}
	userID, err := auth.UserID(c.Request.Context())
	if err != nil || userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	tok, err := h.Signaling.Issue(userID)
	if err != nil {
		if errors.Is(err, signaling.ErrCredentials) {
			logger.FromGin(c).Error("signaling credentials missing")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "signaling unavailable"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}

	metrics.SignalingTokensIssuedTotal.Inc()
	if h.Audit != nil {
		role, _ := auth.Role(c.Request.Context())
		_ = h.Audit.LogTokenIssued(c.Request.Context(), userID, role, c.ClientIP())
	}
	c.JSON(http.StatusOK, tok)
}

// --- Calls ---

type startCallRequest struct {
	LeadID string `json:"lead_id"`
	Phone  string `json:"phone"`
}

// StartCall originates a click-to-call for the authenticated agent. The
// carrier connects the agent's browser leg through the voice application;
// status webhooks drive the session from here.
func (h Handlers) StartCall(c *gin.Context) {
	if h.Calls == nil || h.Dialer == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calls not configured"})
		return
	}
	userID, err := auth.UserID(c.Request.Context())
	if err != nil || userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	to := req.Phone
	if to == "" && req.LeadID != "" && h.Leads != nil {
		lead, err := h.Leads.Get(c.Request.Context(), req.LeadID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "lead not found"})
			return
		}
		to = lead.Phone
	}
	if to == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone or lead_id required"})
		return
	}

	carrierCallID, err := h.Dialer.StartCall(c.Request.Context(), to)
	if err != nil {
		logger.FromGin(c).Error("click-to-call dial failed", "to", to, "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "carrier dial failed"})
		return
	}

	call, err := h.Calls.StartOutbound(c.Request.Context(), calls.OutboundEvent{
		CarrierCallID: carrierCallID,
		UserID:        userID,
		From:          h.FromNumber,
		To:            to,
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call record failed"})
		return
	}
	c.JSON(http.StatusOK, call)
}

// ListLeadCalls returns a lead's call history.
func (h Handlers) ListLeadCalls(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calls not configured"})
		return
	}
	leadID := c.Param("lead_id")
	if leadID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "lead_id required"})
		return
	}
	rows, err := h.Calls.ListByLead(c.Request.Context(), leadID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": rows})
}

// --- Messaging ---

type sendSMSRequest struct {
	LeadID string `json:"lead_id"`
	Phone  string `json:"phone"`
	Body   string `json:"body"`
}

// SendSMS submits an outbound SMS on a lead's conversation.
func (h Handlers) SendSMS(c *gin.Context) {
	if h.Messages == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "messaging not configured"})
		return
	}
	var req sendSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Body == "" || (req.LeadID == "" && req.Phone == "") {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "body and lead_id or phone required"})
		return
	}

	m, err := h.Messages.Send(c.Request.Context(), req.LeadID, req.Phone, req.Body)
	if err != nil {
		if errors.Is(err, outbound.ErrSendFailed) {
			// The failed attempt is already on the ledger.
			metrics.OutboundSMSTotal.WithLabelValues("failed").Inc()
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "carrier rejected message", "message": m})
			return
		}
		if errors.Is(err, messaging.ErrInvalidInput) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "send failed"})
		return
	}
	metrics.OutboundSMSTotal.WithLabelValues("sending").Inc()
	c.JSON(http.StatusOK, m)
}

// ListConversation returns a lead's messages in chronological order.
func (h Handlers) ListConversation(c *gin.Context) {
	if h.Messages == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "messaging not configured"})
		return
	}
	leadID := c.Param("lead_id")
	if leadID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "lead_id required"})
		return
	}
	msgs, err := h.Messages.List(c.Request.Context(), leadID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// --- History ---

func (h Handlers) LeadTimeline(c *gin.Context) {
	if h.History == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history not configured"})
		return
	}
	leadID := c.Param("lead_id")
	entries, err := h.History.Timeline(c.Request.Context(), leadID)
	if err != nil {
		if errors.Is(err, history.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "lead_id required"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "timeline failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"timeline": entries})
}

func (h Handlers) LeadCallsSummary(c *gin.Context) {
	if h.History == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history not configured"})
		return
	}
	sum, err := h.History.Summary(c.Request.Context(), c.Param("lead_id"))
	if err != nil {
		if errors.Is(err, history.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "lead_id required"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

// --- Alerts ---

func (h Handlers) ListAlerts(c *gin.Context) {
	if h.Alerts == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "alerts not configured"})
		return
	}
	open, err := h.Alerts.ListOpen(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": open})
}

func (h Handlers) MarkAlertRead(c *gin.Context) {
	if h.Alerts == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "alerts not configured"})
		return
	}
	a, err := h.Alerts.MarkRead(c.Request.Context(), c.Param("alert_id"))
	if err != nil {
		if errors.Is(err, alerts.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, a)
}

type assignAlertRequest struct {
	UserID     string     `json:"user_id"`
	FollowUpAt *time.Time `json:"follow_up_at,omitempty"`
}

func (h Handlers) AssignAlert(c *gin.Context) {
	if h.Alerts == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "alerts not configured"})
		return
	}
	var req assignAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	a, err := h.Alerts.Assign(c.Request.Context(), c.Param("alert_id"), req.UserID, req.FollowUpAt)
	if err != nil {
		switch {
		case errors.Is(err, alerts.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		case errors.Is(err, alerts.ErrInvalidInput):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		}
		return
	}
	c.JSON(http.StatusOK, a)
}

// --- Notifications ---

type contactPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type notifyAppointmentRequest struct {
	AppointmentID string         `json:"appointment_id"`
	LeadID        string         `json:"lead_id"`
	Address       string         `json:"address"`
	ScheduledAt   time.Time      `json:"scheduled_at"`
	Salesperson   contactPayload `json:"salesperson"`
}

func (h Handlers) NotifyAppointment(c *gin.Context) {
	if h.Notify == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "notify not configured"})
		return
	}
	var req notifyAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	n, err := h.Notify.NotifyAppointment(c.Request.Context(), notify.Appointment{
		ID:          req.AppointmentID,
		LeadID:      req.LeadID,
		Address:     req.Address,
		ScheduledAt: req.ScheduledAt,
	}, notify.Contact(req.Salesperson))
	h.writeNotifyResult(c, n, err)
}

type notifyVendorRequest struct {
	DispatchID string         `json:"dispatch_id"`
	LeadID     string         `json:"lead_id"`
	Vendor     contactPayload `json:"vendor"`
}

func (h Handlers) NotifyVendorDispatch(c *gin.Context) {
	if h.Notify == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "notify not configured"})
		return
	}
	var req notifyVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	n, err := h.Notify.NotifyVendorDispatch(c.Request.Context(), req.DispatchID, req.LeadID, notify.Contact(req.Vendor))
	h.writeNotifyResult(c, n, err)
}

// ResendNotification re-sends a notification verbatim and audits the actor.
func (h Handlers) ResendNotification(c *gin.Context) {
	if h.Notify == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "notify not configured"})
		return
	}
	id := c.Param("notification_id")
	n, err := h.Notify.Resend(c.Request.Context(), id)
	if err != nil && errors.Is(err, notify.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	if h.Audit != nil && n.ID != "" {
		userID, _ := auth.UserID(c.Request.Context())
		role, _ := auth.Role(c.Request.Context())
		_ = h.Audit.LogManualResend(c.Request.Context(), userID, role, c.ClientIP(), n.ID, `{"original":"`+id+`"}`)
	}
	h.writeNotifyResult(c, n, err)
}

func (h Handlers) NotificationHistory(c *gin.Context) {
	if h.Notify == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "notify not configured"})
		return
	}
	list, err := h.Notify.History(c.Request.Context(), c.Param("correlation_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

func (h Handlers) writeNotifyResult(c *gin.Context, n notify.Notification, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, n)
	case errors.Is(err, notify.ErrInvalidInput):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, outbound.ErrSendFailed):
		// Recorded with failed status; the caller can resend.
		metrics.OutboundSMSTotal.WithLabelValues("failed").Inc()
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "carrier rejected message", "notification": n})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "notify failed"})
	}
}
