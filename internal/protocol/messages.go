// Package protocol defines the JSON wire format: one envelope per
// WebSocket text frame, a typed payload per message type.
package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageType identifies the payload schema of an envelope.
type MessageType string

const (
	// Client to server messages
	TypeJoin   MessageType = "join"
	TypeAction MessageType = "action"
	TypeTopUp  MessageType = "top_up"
	TypePing   MessageType = "ping"

	// Server to client messages
	TypeWelcome            MessageType = "welcome"
	TypeJoinAck            MessageType = "join_ack"
	TypeHandStarted        MessageType = "hand_started"
	TypeActionRequest      MessageType = "action_request"
	TypeActionApplied      MessageType = "action_applied"
	TypeHandCompleted      MessageType = "hand_completed"
	TypeTopUpAck           MessageType = "top_up_ack"
	TypePong               MessageType = "pong"
	TypePlayerDisconnected MessageType = "player_disconnected"
	TypePlayerReconnected  MessageType = "player_reconnected"
	TypePlayerRemoved      MessageType = "player_removed"
	TypeError              MessageType = "error"
)

func (mt MessageType) String() string {
	return string(mt)
}

// Envelope is the frame structure. Payload stays raw until the
// dispatcher knows the type.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope marshals a typed payload into an envelope.
func NewEnvelope(messageType MessageType, payload interface{}) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", messageType, err)
	}
	return &Envelope{Type: messageType, Payload: raw}, nil
}

// Encode renders the envelope as one wire frame.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Client → Server payloads

type JoinPayload struct {
	Name     string `json:"name"`
	PlayerID string `json:"player_id,omitempty"`
}

type ActionPayload struct {
	HandID string `json:"hand_id"`
	Action string `json:"action"`
	Amount int    `json:"amount"`
}

type TopUpPayload struct{}

type PingPayload struct{}

// Server → Client payloads

// SeatInfo is one seat in the welcome table snapshot. Empty seats are
// null in the array.
type SeatInfo struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Stack    int    `json:"stack"`
	Seat     int    `json:"seat"`
}

// TableSnapshot is the table view sent in welcome frames.
type TableSnapshot struct {
	Seats                []*SeatInfo `json:"seats"`
	CurrentHand          *string     `json:"current_hand"`
	Pot                  int         `json:"pot"`
	CommunityCards       []string    `json:"community_cards"`
	DealerButtonPosition int         `json:"dealer_button_position"`
}

type WelcomePayload struct {
	PlayerID string        `json:"player_id"`
	Table    TableSnapshot `json:"table"`
}

type JoinAckPayload struct {
	PlayerID string `json:"player_id"`
	Seat     int    `json:"seat"`
}

// HandPlayerInfo is one participant in hand_started. HoleCards are
// masked as "??" for everyone but the recipient.
type HandPlayerInfo struct {
	PlayerID  string   `json:"player_id"`
	Stack     int      `json:"stack"`
	HoleCards []string `json:"hole_cards"`
}

type HandStartedPayload struct {
	HandID             string           `json:"hand_id"`
	Players            []HandPlayerInfo `json:"players"`
	SmallBlind         int              `json:"small_blind"`
	BigBlind           int              `json:"big_blind"`
	DealerPosition     int              `json:"dealer_position"`
	CurrentPlayerToAct string           `json:"current_player_to_act"`
	MinRaise           int              `json:"min_raise"`
}

type ActionRequestPayload struct {
	HandID          string   `json:"hand_id"`
	PossibleActions []string `json:"possible_actions"`
	CallAmount      int      `json:"call_amount"`
	MinRaise        int      `json:"min_raise"`
	MaxRaise        int      `json:"max_raise"`
	TimeoutMs       int      `json:"timeout_ms"`
}

type ActionAppliedPayload struct {
	HandID          string `json:"hand_id"`
	PlayerID        string `json:"player_id"`
	Action          string `json:"action"`
	Amount          int    `json:"amount"`
	NewStack        int    `json:"new_stack"`
	Pot             int    `json:"pot"`
	NextPlayerToAct string `json:"next_player_to_act"`
}

// WinnerInfo is one payout line of hand_completed. HandRank is empty
// when the pot was won uncontested.
type WinnerInfo struct {
	PlayerID  string `json:"player_id"`
	AmountWon int    `json:"amount_won"`
	HandRank  string `json:"hand_rank,omitempty"`
}

type PotDistributionEntry struct {
	PotIndex int    `json:"pot_index"`
	WinnerID string `json:"winner_id"`
	Amount   int    `json:"amount"`
}

type HandCompletedPayload struct {
	HandID          string                 `json:"hand_id"`
	Winners         []WinnerInfo           `json:"winners"`
	PotDistribution []PotDistributionEntry `json:"pot_distribution"`
	UpdatedStacks   map[string]int         `json:"updated_stacks"`
}

type TopUpAckPayload struct {
	PlayerID string `json:"player_id"`
	NewStack int    `json:"new_stack"`
}

type PongPayload struct{}

type PlayerDisconnectedPayload struct {
	PlayerID             string `json:"player_id"`
	RemainingGraceTimeMs int    `json:"remaining_grace_time_ms"`
}

type PlayerReconnectedPayload struct {
	PlayerID string `json:"player_id"`
}

type PlayerRemovedPayload struct {
	PlayerID string `json:"player_id"`
	Seat     int    `json:"seat"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
