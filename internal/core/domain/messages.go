package domain

import (
	"encoding/json"
	"fmt"
)

// MessageType discriminates broadcast envelopes on the shared channel.
type MessageType string

const (
	// MessageLoginCheckRequest asks every peer whether it currently holds a
	// session for the given username.
	MessageLoginCheckRequest MessageType = "login_check_request"
	// MessageLoginCheckResponse answers a login check request.
	MessageLoginCheckResponse MessageType = "login_check_response"
	// MessageForceLogout evicts matching sessions from other peers.
	MessageForceLogout MessageType = "force_logout"
	// MessageSessionUpdate announces a login or logout. Informational only.
	MessageSessionUpdate MessageType = "session_update"
)

// Message is the wire envelope exchanged on the broadcast channel. Payload
// holds the type-specific body.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// LoginCheckRequest is broadcast before a login attempt to discover peers
// already holding a session for the username.
type LoginCheckRequest struct {
	Username  string `json:"username"`
	RequestID string `json:"request_id"`
	FromTab   string `json:"from_tab"`
}

// LoginCheckResponse is a peer's answer to a login check request, correlated
// by RequestID. Responses arriving after the collection window closes are
// discarded.
type LoginCheckResponse struct {
	RequestID string `json:"request_id"`
	HasUser   bool   `json:"has_user"`
	Username  string `json:"username,omitempty"`
	TabID     string `json:"tab_id"`
}

// ForceLogout instructs peers holding a session for Username to drop it.
// A nil TargetTabs means every peer except the sender; receivers always
// ignore their own broadcasts.
type ForceLogout struct {
	Username   string   `json:"username"`
	FromTab    string   `json:"from_tab"`
	TargetTabs []string `json:"target_tabs,omitempty"`
}

// Targets reports whether the eviction applies to the given tab.
func (f ForceLogout) Targets(tabID string) bool {
	if f.FromTab == tabID {
		return false
	}
	if len(f.TargetTabs) == 0 {
		return true
	}
	for _, target := range f.TargetTabs {
		if target == tabID {
			return true
		}
	}
	return false
}

// SessionUpdateLogin and SessionUpdateLogout are the actions carried by a
// session update announcement.
const (
	SessionUpdateLogin  = "login"
	SessionUpdateLogout = "logout"
)

// SessionUpdate announces a session lifecycle change to sibling peers.
type SessionUpdate struct {
	Action   string `json:"action"`
	Username string `json:"username"`
	TabID    string `json:"tab_id"`
}

// NewMessage wraps a typed body into a wire envelope.
func NewMessage(messageType MessageType, body any) (Message, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", messageType, err)
	}
	return Message{Type: messageType, Payload: payload}, nil
}

// DecodePayload unmarshals the envelope payload into the supplied body.
func (m Message) DecodePayload(body any) error {
	if err := json.Unmarshal(m.Payload, body); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}

// ConflictCheck is the outcome of a client-side login conflict probe. It is a
// lower bound: peers that are slow or unreachable inside the collection
// window are not counted.
type ConflictCheck struct {
	HasConflict bool
	Conflicts   []LoginCheckResponse
}
