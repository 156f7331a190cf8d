package protocol

import (
	"encoding/json"
	"testing"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(TypeJoinAck, JoinAckPayload{PlayerID: "p1", Seat: 1})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}

	frame, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var decoded Envelope
	if err := json.Unmarshal(frame, &decoded); err != nil {
		t.Fatalf("Unmarshal envelope: %v", err)
	}
	if decoded.Type != TypeJoinAck {
		t.Errorf("type = %s, want join_ack", decoded.Type)
	}

	var payload JoinAckPayload
	if err := json.Unmarshal(decoded.Payload, &payload); err != nil {
		t.Fatalf("Unmarshal payload: %v", err)
	}
	if payload.PlayerID != "p1" || payload.Seat != 1 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestEnvelopeWireShape(t *testing.T) {
	env, err := NewEnvelope(TypeError, ErrorPayload{Code: CodeTableFull, Message: "both seats are occupied"})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	frame, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(frame, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := raw["type"]; !ok {
		t.Error(`frame missing "type" field`)
	}
	if _, ok := raw["payload"]; !ok {
		t.Error(`frame missing "payload" field`)
	}

	var payload map[string]string
	if err := json.Unmarshal(raw["payload"], &payload); err != nil {
		t.Fatalf("Unmarshal payload: %v", err)
	}
	if payload["code"] != "table_full" {
		t.Errorf("code = %q, want table_full", payload["code"])
	}
}

func TestHandStartedPayloadFields(t *testing.T) {
	p := HandStartedPayload{
		HandID: "hand_x",
		Players: []HandPlayerInfo{
			{PlayerID: "p0", Stack: 398, HoleCards: []string{"As", "Kd"}},
			{PlayerID: "p1", Stack: 396, HoleCards: []string{"??", "??"}},
		},
		SmallBlind:         2,
		BigBlind:           4,
		DealerPosition:     0,
		CurrentPlayerToAct: "p0",
		MinRaise:           4,
	}

	frame, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(frame, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, field := range []string{
		"hand_id", "players", "small_blind", "big_blind",
		"dealer_position", "current_player_to_act", "min_raise",
	} {
		if _, ok := raw[field]; !ok {
			t.Errorf("missing field %q", field)
		}
	}
}

func TestWinnerInfoOmitsEmptyRank(t *testing.T) {
	frame, err := json.Marshal(WinnerInfo{PlayerID: "p1", AmountWon: 6})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(frame, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := raw["hand_rank"]; ok {
		t.Error("uncontested winner should omit hand_rank")
	}
}
