package webhook

import (
	"strings"
	"testing"
)

func TestRenderTwiML_DialClient(t *testing.T) {
	out, err := RenderTwiML(VoiceResponse{Action: ActionDialClient, DialTarget: "agent-7"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "<Dial>") || !strings.Contains(out, "<Client>agent-7</Client>") {
		t.Fatalf("unexpected twiml:\n%s", out)
	}
}

func TestRenderTwiML_DialNumberWithCallerID(t *testing.T) {
	out, err := RenderTwiML(VoiceResponse{Action: ActionDialNumber, DialTarget: "+15551230000", CallerID: "+15559990000"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, `callerId="+15559990000"`) || !strings.Contains(out, "<Number>+15551230000</Number>") {
		t.Fatalf("unexpected twiml:\n%s", out)
	}
}

func TestRenderTwiML_SayHangup(t *testing.T) {
	out, err := RenderTwiML(VoiceResponse{Action: ActionSayHangup, SayText: "Goodbye."})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "<Say>Goodbye.</Say>") || !strings.Contains(out, "<Hangup>") {
		t.Fatalf("unexpected twiml:\n%s", out)
	}
}

func TestRenderTwiML_DialRequiresTarget(t *testing.T) {
	if _, err := RenderTwiML(VoiceResponse{Action: ActionDialClient}); err == nil {
		t.Fatalf("expected error for empty dial target")
	}
}
