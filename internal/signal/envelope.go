package signal

import (
	"encoding/json"
	"fmt"
)

// MessageType identifies a canonical envelope variant. The set is closed:
// anything else is rejected at the normalization boundary.
type MessageType string

// Canonical envelope types.
const (
	TypeOffer                MessageType = "offer"
	TypeAnswer               MessageType = "answer"
	TypeICECandidate         MessageType = "ice-candidate"
	TypeControlCommand       MessageType = "control-command"
	TypeDisconnect           MessageType = "disconnect"
	TypeRemoteControlRequest MessageType = "remote-control-request"
)

// Valid reports whether t is a member of the canonical type set.
func (t MessageType) Valid() bool {
	switch t {
	case TypeOffer, TypeAnswer, TypeICECandidate,
		TypeControlCommand, TypeDisconnect, TypeRemoteControlRequest:
		return true
	}
	return false
}

// Envelope is the canonical signaling message relayed between peers.
// From is always overwritten by the router with the verified sender
// identity; the value supplied on the wire is never trusted.
type Envelope struct {
	Type    MessageType     `json:"type"`
	From    string          `json:"from"`
	To      string          `json:"to"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wireMessage is the superset of shapes accepted at the boundary: the
// unified envelope plus the legacy per-type events that carry SDP or ICE
// fields at the top level instead of inside payload.
type wireMessage struct {
	Type    string          `json:"type"`
	From    string          `json:"from"`
	To      string          `json:"to"`
	Payload json.RawMessage `json:"payload"`

	// Legacy offer/answer shape.
	SDP *string `json:"sdp"`

	// Legacy ice-candidate shape.
	Candidate     json.RawMessage `json:"candidate"`
	SDPMLineIndex *int            `json:"sdpMLineIndex"`
	SDPMid        *string         `json:"sdpMid"`
}

// sdpPayload is the canonical payload for offer and answer envelopes.
type sdpPayload struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// icePayload is the canonical payload for ice-candidate envelopes.
type icePayload struct {
	Candidate     json.RawMessage `json:"candidate"`
	SDPMLineIndex *int            `json:"sdpMLineIndex,omitempty"`
	SDPMid        *string         `json:"sdpMid,omitempty"`
}

// ParseEnvelope normalizes raw wire bytes into a canonical envelope.
// Legacy shapes are reshaped exactly once, here; routing logic downstream
// only ever sees the canonical form.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var wire wireMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	msgType := MessageType(wire.Type)
	if !msgType.Valid() {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownType, wire.Type)
	}

	env := Envelope{
		Type:    msgType,
		From:    wire.From,
		To:      wire.To,
		Payload: wire.Payload,
	}

	// Reshape legacy top-level fields into the canonical payload when no
	// unified payload was supplied.
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		switch msgType {
		case TypeOffer, TypeAnswer:
			if wire.SDP != nil {
				p, err := json.Marshal(sdpPayload{SDP: *wire.SDP, Type: wire.Type})
				if err != nil {
					return Envelope{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
				}
				env.Payload = p
			}
		case TypeICECandidate:
			if len(wire.Candidate) > 0 {
				p, err := json.Marshal(icePayload{
					Candidate:     wire.Candidate,
					SDPMLineIndex: wire.SDPMLineIndex,
					SDPMid:        wire.SDPMid,
				})
				if err != nil {
					return Envelope{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
				}
				env.Payload = p
			}
		case TypeControlCommand, TypeDisconnect, TypeRemoteControlRequest:
			// No legacy shape for these; an empty payload is valid.
		}
	}

	return env, nil
}
