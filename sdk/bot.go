package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/cardroom/headsup/internal/protocol"
)

// Bot is a uniform-random player: it joins, answers every action
// request with a uniformly chosen legal action, tops up when short,
// and reclaims its seat with the assigned player id after transport
// loss.
type Bot struct {
	client *Client
	logger *log.Logger
	rng    *rand.Rand
	name   string

	mu       sync.Mutex
	playerID string
	stack    int
	bigBlind int
}

// NewBot creates a bot for the given server URL and display name.
func NewBot(serverURL, name string, rng *rand.Rand, logger *log.Logger) *Bot {
	b := &Bot{
		client: NewClient(serverURL, logger.WithPrefix("client")),
		logger: logger.WithPrefix("bot"),
		rng:    rng,
		name:   name,
	}
	b.register()
	return b
}

// Run connects and plays until the context is cancelled, redialing
// with the assigned player id on transport loss.
func (b *Bot) Run(ctx context.Context) error {
	for {
		if err := b.client.Connect(); err != nil {
			b.logger.Warn("connect failed, retrying", "error", err)
		}

		for b.client.IsConnected() {
			select {
			case <-ctx.Done():
				return b.client.Disconnect()
			case <-time.After(250 * time.Millisecond):
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}

func (b *Bot) register() {
	b.client.On(protocol.TypeWelcome, b.onWelcome)
	b.client.On(protocol.TypeJoinAck, b.onJoinAck)
	b.client.On(protocol.TypeHandStarted, b.onHandStarted)
	b.client.On(protocol.TypeActionRequest, b.onActionRequest)
	b.client.On(protocol.TypeHandCompleted, b.onHandCompleted)
	b.client.On(protocol.TypeError, b.onError)
}

func (b *Bot) onWelcome(env *protocol.Envelope) {
	var p protocol.WelcomePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		b.logger.Error("bad welcome payload", "error", err)
		return
	}

	b.mu.Lock()
	rejoinID := b.playerID
	b.mu.Unlock()

	if err := b.client.Join(b.name, rejoinID); err != nil {
		b.logger.Error("join failed", "error", err)
	}
}

func (b *Bot) onJoinAck(env *protocol.Envelope) {
	var p protocol.JoinAckPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		b.logger.Error("bad join_ack payload", "error", err)
		return
	}

	b.mu.Lock()
	b.playerID = p.PlayerID
	b.mu.Unlock()
	b.logger.Info("seated", "player", p.PlayerID, "seat", p.Seat)
}

func (b *Bot) onHandStarted(env *protocol.Envelope) {
	var p protocol.HandStartedPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		b.logger.Error("bad hand_started payload", "error", err)
		return
	}

	b.mu.Lock()
	b.bigBlind = p.BigBlind
	for _, info := range p.Players {
		if info.PlayerID == b.playerID {
			b.stack = info.Stack
		}
	}
	b.mu.Unlock()
}

// onActionRequest picks uniformly among the offered actions. Raises
// pick a uniform size in [min_raise, max_raise].
func (b *Bot) onActionRequest(env *protocol.Envelope) {
	var p protocol.ActionRequestPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		b.logger.Error("bad action_request payload", "error", err)
		return
	}
	if len(p.PossibleActions) == 0 {
		return
	}

	action := p.PossibleActions[b.rng.IntN(len(p.PossibleActions))]
	amount := 0
	switch action {
	case "call":
		amount = p.CallAmount
	case "raise":
		amount = b.raiseSize(p.MinRaise, p.MaxRaise)
	}

	b.logger.Debug("acting", "hand", p.HandID, "action", action, "amount", amount)
	if err := b.client.Act(p.HandID, action, amount); err != nil {
		b.logger.Error("action send failed", "error", err)
	}
}

// raiseSize picks a uniform raise in [min, max]. The maximum is the
// stack, so anything at or past it means moving all-in.
func (b *Bot) raiseSize(min, max int) int {
	if min >= max {
		return max
	}
	return min + b.rng.IntN(max-min+1)
}

func (b *Bot) onHandCompleted(env *protocol.Envelope) {
	var p protocol.HandCompletedPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		b.logger.Error("bad hand_completed payload", "error", err)
		return
	}

	b.mu.Lock()
	if stack, ok := p.UpdatedStacks[b.playerID]; ok {
		b.stack = stack
	}
	short := b.bigBlind > 0 && b.stack < 5*b.bigBlind
	b.mu.Unlock()

	if short {
		b.logger.Info("stack short, requesting top-up", "stack", b.stack)
		if err := b.client.TopUp(); err != nil {
			b.logger.Error("top-up send failed", "error", err)
		}
	}
}

func (b *Bot) onError(env *protocol.Envelope) {
	var p protocol.ErrorPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return
	}
	b.logger.Warn("server error", "code", p.Code, "message", p.Message)
}

// PlayerID returns the server-assigned id, empty before the first
// join_ack.
func (b *Bot) PlayerID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.playerID
}

// Stack returns the last stack the server reported.
func (b *Bot) Stack() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stack
}

// String identifies the bot in logs.
func (b *Bot) String() string {
	return fmt.Sprintf("bot(%s)", b.name)
}
