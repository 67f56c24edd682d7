package webhook

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
)

// Minimal TwiML response builder for the verbs this router emits.
// Only include primitives we need at the adapter boundary.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlReject struct {
	XMLName xml.Name `xml:"Reject"`
	Reason  string   `xml:"reason,attr,omitempty"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type twimlDial struct {
	XMLName  xml.Name     `xml:"Dial"`
	CallerID string       `xml:"callerId,attr,omitempty"`
	Number   string       `xml:"Number,omitempty"`
	Client   *twimlClient `xml:"Client,omitempty"`
}

type twimlClient struct {
	Identity string `xml:",chardata"`
}

// VoiceResponse describes what the router wants the carrier to do with a call.
type VoiceResponse struct {
	Action VoiceAction

	// DialTarget is a client identity for ActionDialClient or a PSTN number
	// for ActionDialNumber.
	DialTarget string
	CallerID   string
	SayText    string
}

type VoiceAction string

const (
	ActionDialClient VoiceAction = "dial_client"
	ActionDialNumber VoiceAction = "dial_number"
	ActionReject     VoiceAction = "reject"
	ActionSayHangup  VoiceAction = "say_hangup"
)

func RenderTwiML(res VoiceResponse) (string, error) {
	var r twimlResponse

	switch res.Action {
	case ActionReject:
		r.Verbs = append(r.Verbs, twimlReject{Reason: "busy"})
	case ActionSayHangup:
		if res.SayText != "" {
			r.Verbs = append(r.Verbs, twimlSay{Text: res.SayText})
		}
		r.Verbs = append(r.Verbs, twimlHangup{})
	case ActionDialClient:
		if strings.TrimSpace(res.DialTarget) == "" {
			return "", errors.New("webhook: client identity required for dial")
		}
		r.Verbs = append(r.Verbs, twimlDial{
			CallerID: res.CallerID,
			Client:   &twimlClient{Identity: res.DialTarget},
		})
	case ActionDialNumber:
		if strings.TrimSpace(res.DialTarget) == "" {
			return "", errors.New("webhook: number required for dial")
		}
		r.Verbs = append(r.Verbs, twimlDial{
			CallerID: res.CallerID,
			Number:   res.DialTarget,
		})
	default:
		return "", errors.New("webhook: unknown voice action")
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// EmptyTwiML acknowledges a messaging webhook without further instructions.
func EmptyTwiML() string {
	return xml.Header + "<Response></Response>"
}
