package webhook

import (
	"net/http"
	"strconv"
	"strings"
)

// Twilio posts application/x-www-form-urlencoded. These structs capture the
// subset of fields the router cares about; everything else is ignored.
// Ref: https://www.twilio.com/docs/voice/twiml
//
// Keep them minimal and adapter-only. Business logic lives in the services.

// VoiceForm is the initial webhook for a call reaching the TwiML application,
// both a PSTN caller dialing in and an agent's browser dialing out.
type VoiceForm struct {
	CallSid    string
	AccountSid string
	From       string
	To         string
	Direction  string
	CallStatus string
	CallerName string
}

// FromClient reports whether the call originates from a browser softphone leg
// and, if so, the client identity that placed it.
func (f VoiceForm) FromClient() (string, bool) {
	if strings.HasPrefix(f.From, "client:") {
		return strings.TrimPrefix(f.From, "client:"), true
	}
	return "", false
}

func ParseVoiceForm(r *http.Request) (VoiceForm, error) {
	if err := r.ParseForm(); err != nil {
		return VoiceForm{}, err
	}
	return VoiceForm{
		CallSid:    r.PostFormValue("CallSid"),
		AccountSid: r.PostFormValue("AccountSid"),
		From:       strings.TrimSpace(r.PostFormValue("From")),
		To:         strings.TrimSpace(r.PostFormValue("To")),
		Direction:  r.PostFormValue("Direction"),
		CallStatus: r.PostFormValue("CallStatus"),
		CallerName: r.PostFormValue("CallerName"),
	}, nil
}

// CallStatusForm is a call progress callback. RecordingUrl rides along on
// recording-ready callbacks, which carry no CallStatus.
type CallStatusForm struct {
	CallSid         string
	CallStatus      string
	Direction       string
	From            string
	To              string
	DurationSeconds int
	RecordingURL    string
}

func ParseCallStatusForm(r *http.Request) (CallStatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return CallStatusForm{}, err
	}
	f := CallStatusForm{
		CallSid:      r.PostFormValue("CallSid"),
		CallStatus:   r.PostFormValue("CallStatus"),
		Direction:    r.PostFormValue("Direction"),
		From:         strings.TrimSpace(r.PostFormValue("From")),
		To:           strings.TrimSpace(r.PostFormValue("To")),
		RecordingURL: r.PostFormValue("RecordingUrl"),
	}
	if v := r.PostFormValue("CallDuration"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.DurationSeconds = n
		}
	}
	return f, nil
}

// SMSForm is an inbound SMS webhook.
type SMSForm struct {
	MessageSid string
	From       string
	To         string
	Body       string
}

func ParseSMSForm(r *http.Request) (SMSForm, error) {
	if err := r.ParseForm(); err != nil {
		return SMSForm{}, err
	}
	sid := r.PostFormValue("MessageSid")
	if sid == "" {
		sid = r.PostFormValue("SmsSid")
	}
	return SMSForm{
		MessageSid: sid,
		From:       strings.TrimSpace(r.PostFormValue("From")),
		To:         strings.TrimSpace(r.PostFormValue("To")),
		Body:       r.PostFormValue("Body"),
	}, nil
}

// SMSStatusForm is an outbound SMS delivery callback.
type SMSStatusForm struct {
	MessageSid string
	Status     string
	ErrorCode  string
}

func ParseSMSStatusForm(r *http.Request) (SMSStatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return SMSStatusForm{}, err
	}
	sid := r.PostFormValue("MessageSid")
	if sid == "" {
		sid = r.PostFormValue("SmsSid")
	}
	status := r.PostFormValue("MessageStatus")
	if status == "" {
		status = r.PostFormValue("SmsStatus")
	}
	return SMSStatusForm{
		MessageSid: sid,
		Status:     status,
		ErrorCode:  r.PostFormValue("ErrorCode"),
	}, nil
}
