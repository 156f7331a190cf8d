package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardroom/headsup/internal/protocol"
	"github.com/cardroom/headsup/internal/randutil"
)

func newTestServer(t *testing.T, clock quartz.Clock) (*Server, string) {
	t.Helper()
	cfg := DefaultConfig()
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	srv := New(cfg, logger, clock, randutil.New(99))

	ts := httptest.NewServer(http.HandlerFunc(srv.handleWebSocket))
	t.Cleanup(ts.Close)

	return srv, "ws" + strings.TrimPrefix(ts.URL, "http")
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialTestClient(t *testing.T, url string) *testClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(messageType protocol.MessageType, payload interface{}) {
	c.t.Helper()
	env, err := protocol.NewEnvelope(messageType, payload)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(env))
}

func (c *testClient) sendRaw(frame string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

// expect reads frames until one of the wanted type arrives, failing
// after a few seconds.
func (c *testClient) expect(messageType protocol.MessageType) json.RawMessage {
	c.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(c.t, c.conn.SetReadDeadline(deadline))
		var env protocol.Envelope
		require.NoError(c.t, c.conn.ReadJSON(&env), "waiting for %s", messageType)
		if env.Type == messageType {
			return env.Payload
		}
	}
}

func contextWithTimeout(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestWelcomeAndJoin(t *testing.T) {
	_, url := newTestServer(t, quartz.NewReal())

	alice := dialTestClient(t, url)
	welcome := decode[protocol.WelcomePayload](t, alice.expect(protocol.TypeWelcome))
	require.NotEmpty(t, welcome.PlayerID)
	assert.Equal(t, 0, welcome.Table.Pot)
	assert.Equal(t, 0, welcome.Table.DealerButtonPosition)
	assert.Nil(t, welcome.Table.CurrentHand)

	alice.send(protocol.TypeJoin, protocol.JoinPayload{Name: "Alice"})
	ack := decode[protocol.JoinAckPayload](t, alice.expect(protocol.TypeJoinAck))
	assert.Equal(t, welcome.PlayerID, ack.PlayerID)
	assert.Equal(t, 0, ack.Seat)

	// Joining again re-acks the same seat.
	alice.send(protocol.TypeJoin, protocol.JoinPayload{Name: "Alice"})
	again := decode[protocol.JoinAckPayload](t, alice.expect(protocol.TypeJoinAck))
	assert.Equal(t, ack, again)
}

func TestHandStartsWhenBothSeated(t *testing.T) {
	_, url := newTestServer(t, quartz.NewReal())

	alice := dialTestClient(t, url)
	aliceWelcome := decode[protocol.WelcomePayload](t, alice.expect(protocol.TypeWelcome))
	alice.send(protocol.TypeJoin, protocol.JoinPayload{Name: "Alice"})
	alice.expect(protocol.TypeJoinAck)

	bob := dialTestClient(t, url)
	bobWelcome := decode[protocol.WelcomePayload](t, bob.expect(protocol.TypeWelcome))
	bob.send(protocol.TypeJoin, protocol.JoinPayload{Name: "Bob"})
	bobAck := decode[protocol.JoinAckPayload](t, bob.expect(protocol.TypeJoinAck))
	assert.Equal(t, 1, bobAck.Seat)

	started := decode[protocol.HandStartedPayload](t, alice.expect(protocol.TypeHandStarted))
	assert.Equal(t, 2, started.SmallBlind)
	assert.Equal(t, 4, started.BigBlind)
	assert.Equal(t, 0, started.DealerPosition)
	assert.Equal(t, 4, started.MinRaise)
	assert.Equal(t, aliceWelcome.PlayerID, started.CurrentPlayerToAct)
	require.Len(t, started.Players, 2)

	// Alice sees her own cards and a masked view of Bob's.
	for _, p := range started.Players {
		require.Len(t, p.HoleCards, 2)
		if p.PlayerID == aliceWelcome.PlayerID {
			assert.NotEqual(t, "??", p.HoleCards[0])
		} else {
			assert.Equal(t, []string{"??", "??"}, p.HoleCards)
		}
	}
	// Blinds are already posted in the announced stacks.
	for _, p := range started.Players {
		switch p.PlayerID {
		case aliceWelcome.PlayerID:
			assert.Equal(t, 398, p.Stack)
		case bobWelcome.PlayerID:
			assert.Equal(t, 396, p.Stack)
		}
	}

	// The dealer acts first preflop and gets the prompt.
	request := decode[protocol.ActionRequestPayload](t, alice.expect(protocol.TypeActionRequest))
	assert.Equal(t, started.HandID, request.HandID)
	assert.ElementsMatch(t, []string{"fold", "call", "raise"}, request.PossibleActions)
	assert.Equal(t, 2, request.CallAmount)
	assert.Equal(t, 30000, request.TimeoutMs)
}

func TestSimpleFoldCompletesHandAndRotates(t *testing.T) {
	_, url := newTestServer(t, quartz.NewReal())

	alice := dialTestClient(t, url)
	aliceWelcome := decode[protocol.WelcomePayload](t, alice.expect(protocol.TypeWelcome))
	alice.send(protocol.TypeJoin, protocol.JoinPayload{Name: "Alice"})

	bob := dialTestClient(t, url)
	bobWelcome := decode[protocol.WelcomePayload](t, bob.expect(protocol.TypeWelcome))
	bob.send(protocol.TypeJoin, protocol.JoinPayload{Name: "Bob"})

	started := decode[protocol.HandStartedPayload](t, alice.expect(protocol.TypeHandStarted))
	request := decode[protocol.ActionRequestPayload](t, alice.expect(protocol.TypeActionRequest))

	alice.send(protocol.TypeAction, protocol.ActionPayload{
		HandID: request.HandID,
		Action: "fold",
		Amount: 0,
	})

	applied := decode[protocol.ActionAppliedPayload](t, bob.expect(protocol.TypeActionApplied))
	assert.Equal(t, aliceWelcome.PlayerID, applied.PlayerID)
	assert.Equal(t, "fold", applied.Action)
	assert.Equal(t, 0, applied.Amount)
	assert.Equal(t, 6, applied.Pot)
	assert.Equal(t, 398, applied.NewStack)

	completed := decode[protocol.HandCompletedPayload](t, bob.expect(protocol.TypeHandCompleted))
	assert.Equal(t, started.HandID, completed.HandID)
	require.Len(t, completed.Winners, 1)
	assert.Equal(t, bobWelcome.PlayerID, completed.Winners[0].PlayerID)
	assert.Equal(t, 6, completed.Winners[0].AmountWon)
	assert.Equal(t, 402, completed.UpdatedStacks[bobWelcome.PlayerID])
	assert.Equal(t, 398, completed.UpdatedStacks[aliceWelcome.PlayerID])

	// Both seats are still funded, so the next hand auto-starts with
	// the button rotated.
	next := decode[protocol.HandStartedPayload](t, bob.expect(protocol.TypeHandStarted))
	assert.NotEqual(t, started.HandID, next.HandID)
	assert.Equal(t, 1, next.DealerPosition)
	assert.Equal(t, bobWelcome.PlayerID, next.CurrentPlayerToAct)
}

func TestProtocolErrors(t *testing.T) {
	_, url := newTestServer(t, quartz.NewReal())

	client := dialTestClient(t, url)
	client.expect(protocol.TypeWelcome)

	client.sendRaw("{not json")
	errPayload := decode[protocol.ErrorPayload](t, client.expect(protocol.TypeError))
	assert.Equal(t, protocol.CodeInvalidJSON, errPayload.Code)

	client.sendRaw(`{"type":"dance","payload":{}}`)
	errPayload = decode[protocol.ErrorPayload](t, client.expect(protocol.TypeError))
	assert.Equal(t, protocol.CodeInvalidMessageType, errPayload.Code)

	client.send(protocol.TypeJoin, protocol.JoinPayload{Name: ""})
	errPayload = decode[protocol.ErrorPayload](t, client.expect(protocol.TypeError))
	assert.Equal(t, protocol.CodeInvalidInput, errPayload.Code)

	// Acting without a seat is unauthorized.
	client.send(protocol.TypeAction, protocol.ActionPayload{HandID: "x", Action: "fold"})
	errPayload = decode[protocol.ErrorPayload](t, client.expect(protocol.TypeError))
	assert.Equal(t, protocol.CodeUnauthorized, errPayload.Code)
}

func TestThirdSeatRejected(t *testing.T) {
	_, url := newTestServer(t, quartz.NewReal())

	for _, name := range []string{"Alice", "Bob"} {
		c := dialTestClient(t, url)
		c.expect(protocol.TypeWelcome)
		c.send(protocol.TypeJoin, protocol.JoinPayload{Name: name})
		c.expect(protocol.TypeJoinAck)
	}

	carol := dialTestClient(t, url)
	carol.expect(protocol.TypeWelcome)
	carol.send(protocol.TypeJoin, protocol.JoinPayload{Name: "Carol"})
	errPayload := decode[protocol.ErrorPayload](t, carol.expect(protocol.TypeError))
	assert.Equal(t, protocol.CodeTableFull, errPayload.Code)
}

func TestInvalidActionRejectedWithoutStateChange(t *testing.T) {
	_, url := newTestServer(t, quartz.NewReal())

	alice := dialTestClient(t, url)
	alice.expect(protocol.TypeWelcome)
	alice.send(protocol.TypeJoin, protocol.JoinPayload{Name: "Alice"})

	bob := dialTestClient(t, url)
	bob.expect(protocol.TypeWelcome)
	bob.send(protocol.TypeJoin, protocol.JoinPayload{Name: "Bob"})

	request := decode[protocol.ActionRequestPayload](t, alice.expect(protocol.TypeActionRequest))

	// Wrong hand id.
	alice.send(protocol.TypeAction, protocol.ActionPayload{HandID: "hand_bogus", Action: "fold"})
	errPayload := decode[protocol.ErrorPayload](t, alice.expect(protocol.TypeError))
	assert.Equal(t, protocol.CodeInvalidHand, errPayload.Code)

	// Negative amount.
	alice.send(protocol.TypeAction, protocol.ActionPayload{HandID: request.HandID, Action: "raise", Amount: -5})
	errPayload = decode[protocol.ErrorPayload](t, alice.expect(protocol.TypeError))
	assert.Equal(t, protocol.CodeInvalidAmount, errPayload.Code)

	// Below-minimum raise.
	alice.send(protocol.TypeAction, protocol.ActionPayload{HandID: request.HandID, Action: "raise", Amount: 3})
	errPayload = decode[protocol.ErrorPayload](t, alice.expect(protocol.TypeError))
	assert.Equal(t, protocol.CodeInvalidAction, errPayload.Code)

	// Out of turn.
	bob.send(protocol.TypeAction, protocol.ActionPayload{HandID: request.HandID, Action: "fold"})
	errPayload = decode[protocol.ErrorPayload](t, bob.expect(protocol.TypeError))
	assert.Equal(t, protocol.CodeInvalidAction, errPayload.Code)

	// The hand is still live and still waiting on the dealer.
	alice.send(protocol.TypeAction, protocol.ActionPayload{HandID: request.HandID, Action: "call", Amount: 2})
	applied := decode[protocol.ActionAppliedPayload](t, bob.expect(protocol.TypeActionApplied))
	assert.Equal(t, "call", applied.Action)
	assert.Equal(t, 8, applied.Pot)
}

func TestPingPong(t *testing.T) {
	_, url := newTestServer(t, quartz.NewReal())

	client := dialTestClient(t, url)
	client.expect(protocol.TypeWelcome)
	client.send(protocol.TypePing, protocol.PingPayload{})
	client.expect(protocol.TypePong)
}

func TestTopUpBetweenHands(t *testing.T) {
	srv, url := newTestServer(t, quartz.NewReal())

	alice := dialTestClient(t, url)
	welcome := decode[protocol.WelcomePayload](t, alice.expect(protocol.TypeWelcome))
	alice.send(protocol.TypeJoin, protocol.JoinPayload{Name: "Alice"})
	alice.expect(protocol.TypeJoinAck)

	// Short-stack the player directly; no hand is running with one
	// seat filled, so the top-up is served.
	session := srv.Session()
	session.mu.Lock()
	player, err := session.table.Player(welcome.PlayerID)
	require.NoError(t, err)
	player.Stack = 10
	session.mu.Unlock()

	alice.send(protocol.TypeTopUp, protocol.TopUpPayload{})
	ack := decode[protocol.TopUpAckPayload](t, alice.expect(protocol.TypeTopUpAck))
	assert.Equal(t, 400, ack.NewStack)

	// A second request above the threshold leaves the stack alone.
	alice.send(protocol.TypeTopUp, protocol.TopUpPayload{})
	ack = decode[protocol.TopUpAckPayload](t, alice.expect(protocol.TypeTopUpAck))
	assert.Equal(t, 400, ack.NewStack)
}

func TestDisconnectThenReconnectWithinGrace(t *testing.T) {
	_, url := newTestServer(t, quartz.NewReal())

	alice := dialTestClient(t, url)
	aliceWelcome := decode[protocol.WelcomePayload](t, alice.expect(protocol.TypeWelcome))
	alice.send(protocol.TypeJoin, protocol.JoinPayload{Name: "Alice"})

	bob := dialTestClient(t, url)
	bob.expect(protocol.TypeWelcome)
	bob.send(protocol.TypeJoin, protocol.JoinPayload{Name: "Bob"})
	bob.expect(protocol.TypeHandStarted)

	// Drop Alice's transport without a close handshake.
	require.NoError(t, alice.conn.Close())

	disc := decode[protocol.PlayerDisconnectedPayload](t, bob.expect(protocol.TypePlayerDisconnected))
	assert.Equal(t, aliceWelcome.PlayerID, disc.PlayerID)
	assert.Equal(t, 30000, disc.RemainingGraceTimeMs)

	// Reconnect and reclaim the seat by player id.
	alice2 := dialTestClient(t, url)
	alice2.expect(protocol.TypeWelcome)
	alice2.send(protocol.TypeJoin, protocol.JoinPayload{Name: "Alice", PlayerID: aliceWelcome.PlayerID})

	recon := decode[protocol.PlayerReconnectedPayload](t, bob.expect(protocol.TypePlayerReconnected))
	assert.Equal(t, aliceWelcome.PlayerID, recon.PlayerID)

	ack := decode[protocol.JoinAckPayload](t, alice2.expect(protocol.TypeJoinAck))
	assert.Equal(t, aliceWelcome.PlayerID, ack.PlayerID)
	assert.Equal(t, 0, ack.Seat)

	// Alice is still the actor and gets her prompt again.
	alice2.expect(protocol.TypeActionRequest)
}

func TestReconnectClaimRejections(t *testing.T) {
	_, url := newTestServer(t, quartz.NewReal())

	alice := dialTestClient(t, url)
	aliceWelcome := decode[protocol.WelcomePayload](t, alice.expect(protocol.TypeWelcome))
	alice.send(protocol.TypeJoin, protocol.JoinPayload{Name: "Alice"})
	alice.expect(protocol.TypeJoinAck)

	// Claiming an id that was never seated.
	stranger := dialTestClient(t, url)
	stranger.expect(protocol.TypeWelcome)
	stranger.send(protocol.TypeJoin, protocol.JoinPayload{Name: "X", PlayerID: "no-such-id"})
	errPayload := decode[protocol.ErrorPayload](t, stranger.expect(protocol.TypeError))
	assert.Equal(t, protocol.CodePlayerNotFound, errPayload.Code)

	// Claiming a seat whose owner still has a live connection.
	stranger.send(protocol.TypeJoin, protocol.JoinPayload{Name: "X", PlayerID: aliceWelcome.PlayerID})
	errPayload = decode[protocol.ErrorPayload](t, stranger.expect(protocol.TypeError))
	assert.Equal(t, protocol.CodePlayerAlreadyConnected, errPayload.Code)
}

func TestGraceExpiryForcesFoldThenRemoval(t *testing.T) {
	mock := quartz.NewMock(t)
	srv, url := newTestServer(t, mock)

	alice := dialTestClient(t, url)
	aliceWelcome := decode[protocol.WelcomePayload](t, alice.expect(protocol.TypeWelcome))
	alice.send(protocol.TypeJoin, protocol.JoinPayload{Name: "Alice"})

	bob := dialTestClient(t, url)
	bobWelcome := decode[protocol.WelcomePayload](t, bob.expect(protocol.TypeWelcome))
	bob.send(protocol.TypeJoin, protocol.JoinPayload{Name: "Bob"})
	bob.expect(protocol.TypeHandStarted)

	require.NoError(t, alice.conn.Close())
	bob.expect(protocol.TypePlayerDisconnected)

	// The grace timer is armed by the disconnect handler; wait for it
	// before driving the clock.
	require.Eventually(t, func() bool {
		return srv.Session().timers.HasActive(aliceWelcome.PlayerID)
	}, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := contextWithTimeout(t)
	defer cancel()
	mock.Advance(30 * time.Second).MustWait(ctx)

	// Grace expiry folds the absent player; the hand completes in
	// Bob's favor.
	applied := decode[protocol.ActionAppliedPayload](t, bob.expect(protocol.TypeActionApplied))
	assert.Equal(t, aliceWelcome.PlayerID, applied.PlayerID)
	assert.Equal(t, "fold", applied.Action)

	completed := decode[protocol.HandCompletedPayload](t, bob.expect(protocol.TypeHandCompleted))
	require.Len(t, completed.Winners, 1)
	assert.Equal(t, bobWelcome.PlayerID, completed.Winners[0].PlayerID)

	mock.Advance(60 * time.Second).MustWait(ctx)

	removed := decode[protocol.PlayerRemovedPayload](t, bob.expect(protocol.TypePlayerRemoved))
	assert.Equal(t, aliceWelcome.PlayerID, removed.PlayerID)
	assert.Equal(t, 0, removed.Seat)

	srv.Session().mu.Lock()
	_, err := srv.Session().table.Player(aliceWelcome.PlayerID)
	srv.Session().mu.Unlock()
	assert.Error(t, err, "removed player should be unseated")
}

// TestBlindsAllInSettleAtDeal covers the deal where both blinds put
// both seats all-in: nobody is due to act, the board has already run
// out, and the session must settle the hand instead of prompting.
func TestBlindsAllInSettleAtDeal(t *testing.T) {
	cfg := DefaultConfig()
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	s := NewSession(cfg, logger, quartz.NewReal(), randutil.New(11))

	alice, err := s.table.Seat("id-a", "alice")
	require.NoError(t, err)
	bob, err := s.table.Seat("id-b", "bob")
	require.NoError(t, err)
	alice.Stack = 2
	bob.Stack = 2

	s.mu.Lock()
	s.startHandLocked()
	s.mu.Unlock()

	// Every dealt hand has settled; play stops once a stack is empty.
	require.Nil(t, s.table.Hand())
	assert.Equal(t, 4, alice.Stack+bob.Stack)
	assert.Equal(t, 0, alice.Stack*bob.Stack, "the busted seat should hold nothing")
}
