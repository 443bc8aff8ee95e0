package signal

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseEnvelope_UnifiedShape(t *testing.T) {
	raw := []byte(`{"type":"offer","from":"spoofed","to":"dev-1","payload":{"sdp":"v=0...","type":"offer"}}`)

	env, err := ParseEnvelope(raw)
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}

	if env.Type != TypeOffer {
		t.Errorf("Type = %v, want offer", env.Type)
	}
	if env.To != "dev-1" {
		t.Errorf("To = %q, want dev-1", env.To)
	}

	var payload sdpPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("payload unmarshal: %v", err)
	}
	if payload.SDP != "v=0..." {
		t.Errorf("payload.SDP = %q", payload.SDP)
	}
}

func TestParseEnvelope_LegacyOffer(t *testing.T) {
	// Old clients put the SDP at the top level instead of inside payload.
	raw := []byte(`{"type":"offer","to":"dev-1","sdp":"v=0 legacy"}`)

	env, err := ParseEnvelope(raw)
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}

	var payload sdpPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("payload unmarshal: %v", err)
	}
	if payload.SDP != "v=0 legacy" {
		t.Errorf("payload.SDP = %q, want v=0 legacy", payload.SDP)
	}
	if payload.Type != "offer" {
		t.Errorf("payload.Type = %q, want offer", payload.Type)
	}
}

func TestParseEnvelope_LegacyAnswer(t *testing.T) {
	raw := []byte(`{"type":"answer","to":"client-1","sdp":"v=0 reply"}`)

	env, err := ParseEnvelope(raw)
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}

	var payload sdpPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("payload unmarshal: %v", err)
	}
	if payload.Type != "answer" {
		t.Errorf("payload.Type = %q, want answer", payload.Type)
	}
}

func TestParseEnvelope_LegacyICECandidate(t *testing.T) {
	raw := []byte(`{"type":"ice-candidate","to":"dev-1","candidate":{"candidate":"candidate:1 1 UDP"},"sdpMLineIndex":0,"sdpMid":"0"}`)

	env, err := ParseEnvelope(raw)
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}

	var payload icePayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("payload unmarshal: %v", err)
	}
	if len(payload.Candidate) == 0 {
		t.Error("payload.Candidate empty, want legacy candidate carried over")
	}
	if payload.SDPMLineIndex == nil || *payload.SDPMLineIndex != 0 {
		t.Errorf("payload.SDPMLineIndex = %v, want 0", payload.SDPMLineIndex)
	}
	if payload.SDPMid == nil || *payload.SDPMid != "0" {
		t.Errorf("payload.SDPMid = %v, want \"0\"", payload.SDPMid)
	}
}

func TestParseEnvelope_UnifiedPayloadWins(t *testing.T) {
	// When both shapes are present the unified payload is authoritative.
	raw := []byte(`{"type":"offer","to":"dev-1","sdp":"legacy","payload":{"sdp":"unified","type":"offer"}}`)

	env, err := ParseEnvelope(raw)
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}

	var payload sdpPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("payload unmarshal: %v", err)
	}
	if payload.SDP != "unified" {
		t.Errorf("payload.SDP = %q, want unified", payload.SDP)
	}
}

func TestParseEnvelope_UnknownType(t *testing.T) {
	raw := []byte(`{"type":"teleport","to":"dev-1"}`)

	if _, err := ParseEnvelope(raw); !errors.Is(err, ErrUnknownType) {
		t.Errorf("ParseEnvelope() error = %v, want ErrUnknownType", err)
	}
}

func TestParseEnvelope_MalformedJSON(t *testing.T) {
	if _, err := ParseEnvelope([]byte(`{not json`)); !errors.Is(err, ErrMalformedMessage) {
		t.Errorf("ParseEnvelope() error = %v, want ErrMalformedMessage", err)
	}
}

func TestParseEnvelope_DisconnectNoPayload(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type":"disconnect","to":""}`))
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}
	if env.Type != TypeDisconnect {
		t.Errorf("Type = %v, want disconnect", env.Type)
	}
}

func TestMessageType_Valid(t *testing.T) {
	valid := []MessageType{
		TypeOffer, TypeAnswer, TypeICECandidate,
		TypeControlCommand, TypeDisconnect, TypeRemoteControlRequest,
	}
	for _, mt := range valid {
		if !mt.Valid() {
			t.Errorf("%q.Valid() = false, want true", mt)
		}
	}
	if MessageType("ping").Valid() {
		t.Error(`"ping".Valid() = true, want false`)
	}
}
