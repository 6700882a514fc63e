// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package erldist

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erldist/erldist/bridge"
	"github.com/erldist/erldist/etf"
	"github.com/erldist/erldist/internal/distproto"
	"github.com/erldist/erldist/term"
	"github.com/rs/zerolog"
)

// State is one of Connection's lifecycle states, spec §4.F "State
// machine".
type State int32

const (
	StateInit State = iota
	StateConnecting
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const rawSubscriberBuffer = 64

// Message is one inbound frame delivered to a raw subscriber: either
// the decoded Term or a delivery failure (ReceiveFailed), never both.
type Message struct {
	Term term.Term
	Err  error
}

// InboundCallHandler answers a `{:call, id, sender, args}` frame
// (spec §4.F "Inbound call dispatch"). The returned Term is encoded
// with 4.D and SENT back to sender; a non-nil error is converted to
// `{:error, message_binary}` instead.
type InboundCallHandler func(ctx context.Context, args term.Term) (term.Term, error)

// Connection is the actor described in spec §4.F: single-owner
// mutable state, one background reader task spawned lazily on the
// first subscription, send, RPC or handler registration, bounded
// drop-oldest delivery to raw subscribers and a one-slot reply channel
// per RPC waiter. All exported methods are safe for concurrent use;
// only the reader goroutine ever touches the socket for reads, and
// write serialisation is left to the Transport (the TCP transport
// holds its own write mutex).
type Connection struct {
	local        *Node
	remote       string
	transport    Transport
	policy       bridge.Policy
	log          zerolog.Logger
	selfPid      term.Pid
	registeredAs string
	createdAt    time.Time

	state atomic.Int32

	readerOnce sync.Once
	readerDone chan struct{}

	subMu  sync.Mutex
	subs   map[int]chan Message
	nextID int

	pending sync.Map // call-id (uint64) -> chan distproto.RexReply
	callSeq atomic.Uint64

	handlerMu sync.Mutex
	handler   InboundCallHandler

	closeOnce sync.Once
}

// newConnection drives the connection through the Init -> Connecting
// -> Ready sequence spec §4.F's state machine documents, performing
// registerAs's local bookkeeping registration as the step gating
// Connecting -> Ready. registerAs may be empty, meaning this
// connection's self-pid is reachable only by SEND, never REG_SEND.
func newConnection(local *Node, remote string, transport Transport, policy bridge.Policy, log zerolog.Logger, registerAs string) (*Connection, error) {
	c := &Connection{
		local:      local,
		remote:     remote,
		transport:  transport,
		policy:     policy,
		log:        log,
		selfPid:    local.newSelfPid(),
		readerDone: make(chan struct{}),
		subs:       make(map[int]chan Message),
		createdAt:  time.Now(),
	}
	c.state.Store(int32(StateInit))
	c.transitionTo(StateConnecting)

	if err := validateRegisterAs(registerAs); err != nil {
		return nil, err
	}
	c.registeredAs = registerAs

	c.transitionTo(StateReady)
	return c, nil
}

// transitionTo mutates c.state and logs the move, per SPEC_FULL.md
// §4.F's "every state transition is logged" addition.
func (c *Connection) transitionTo(s State) {
	c.state.Store(int32(s))
	c.log.Debug().
		Str("node", c.local.Name).
		Str("remote", c.remote).
		Str("state", s.String()).
		Dur("elapsed", time.Since(c.createdAt)).
		Msg("connection: state transition")
}

const maxRegisteredNameLength = 255

// validateRegisterAs is the registration step itself: there is no
// remote name server to negotiate with (spec.md's Non-goals exclude
// full generality over the distribution protocol's control messages),
// so registration is local bookkeeping — it only rejects a name this
// connection could never recognise on an inbound REG_SEND frame.
func validateRegisterAs(name string) error {
	if name == "" {
		return nil
	}
	if len(name) > maxRegisteredNameLength {
		return wrapf(ErrRegisterFailed, "register_as: name %q exceeds %d bytes", name, maxRegisteredNameLength)
	}
	for i := 0; i < len(name); i++ {
		if name[i] == 0 {
			return wrapf(ErrRegisterFailed, "register_as: name %q contains a NUL byte", name)
		}
	}
	return nil
}

// State reports the connection's current lifecycle state.
func (c *Connection) State() State {
	return State(c.state.Load())
}

func (c *Connection) checkOpen() error {
	if State(c.state.Load()) == StateClosed {
		return ErrNotConnected
	}
	return nil
}

// ensureReader spawns the single reader task on first use, per spec
// §4.F "Reader task" ("on first consumer subscription or on first
// send").
func (c *Connection) ensureReader() {
	c.readerOnce.Do(func() {
		go c.readLoop()
	})
}

func (c *Connection) readLoop() {
	defer close(c.readerDone)
	for {
		frame, err := c.transport.Recv(context.Background())
		if err != nil {
			c.log.Debug().Err(err).Str("remote", c.remote).Msg("reader: transport closed")
			c.fail(wrapf(ErrReceiveFailed, "reader: transport closed"))
			return
		}
		c.dispatch(frame)
	}
}

// dispatch classifies one inbound frame. A frame carries two terms
// back to back (the control tuple, then the message), mirroring the
// real distribution protocol's control-message framing; a zero-length
// frame is the TICK liveness heartbeat and carries no term at all.
func (c *Connection) dispatch(frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("reader: recovered panic")
			c.fail(wrapf(ErrReceiveFailed, "reader: panic: %v", r))
		}
	}()

	if len(frame) == 0 {
		c.log.Debug().Msg("reader: tick")
		return
	}

	buf := etf.FromBytes(frame)
	control, err := etf.Decode(buf)
	if err != nil {
		c.broadcast(Message{Err: wrapf(ErrReceiveFailed, "reader: decode control: %v", err)})
		return
	}
	msg, err := etf.Decode(buf)
	if err != nil {
		c.broadcast(Message{Err: wrapf(ErrReceiveFailed, "reader: decode message: %v", err)})
		return
	}

	if !c.addressedToSelf(control) {
		c.log.Debug().Interface("control", control).Msg("reader: frame not addressed to this connection, dropping")
		return
	}

	if reply, ok := distproto.MatchRexReply(msg); ok {
		if ch, ok := c.pending.Load(reply.CallID); ok {
			ch.(chan distproto.RexReply) <- reply
			return
		}
		c.log.Debug().Uint64("call_id", reply.CallID).Msg("reader: rex reply with no waiter")
		return
	}

	if call, ok := distproto.MatchInboundCall(msg); ok {
		go c.handleInboundCall(call)
		return
	}

	if _, payload, ok := distproto.UnwrapSend(msg); ok {
		c.broadcast(Message{Term: payload})
		return
	}
	c.broadcast(Message{Term: msg})
}

// addressedToSelf reports whether an inbound frame's control tuple
// names this connection's self-pid (SEND) or registered public name
// (REG_SEND). A control shape neither builder recognises is never
// dropped here; it falls through to msg classification unfiltered.
func (c *Connection) addressedToSelf(control term.Term) bool {
	if to, ok := distproto.MatchSendControl(control); ok {
		return to == c.selfPid
	}
	if _, toName, ok := distproto.MatchRegSendControl(control); ok {
		return c.registeredAs != "" && toName == c.registeredAs
	}
	return true
}

func (c *Connection) fail(err error) {
	c.broadcast(Message{Err: err})
	c.pending.Range(func(_, v interface{}) bool {
		close(v.(chan distproto.RexReply))
		return true
	})
}

func (c *Connection) broadcast(m Message) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- m:
		default:
			// Drop-oldest: make room for the newest frame rather than
			// block the reader on a slow subscriber.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- m:
			default:
			}
		}
	}
}

func (c *Connection) subscribe() (int, chan Message) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextID
	c.nextID++
	ch := make(chan Message, rawSubscriberBuffer)
	c.subs[id] = ch
	return id, ch
}

func (c *Connection) unsubscribe(id int) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if ch, ok := c.subs[id]; ok {
		delete(c.subs, id)
		close(ch)
	}
}

// Messages returns a channel of every inbound frame not consumed by
// the RPC/inbound-call machinery, decoded as term.Term. Call stop to
// release the subscription; the channel is closed afterward.
func (c *Connection) Messages() (msgs <-chan Message, stop func()) {
	c.ensureReader()
	id, ch := c.subscribe()
	return ch, func() { c.unsubscribe(id) }
}

// MessagesAs adapts Messages to decode each payload as T via the
// connection's policy, per spec §4.F / §6 "messages_as".
func MessagesAs[T any](c *Connection) (<-chan TypedMessage[T], func()) {
	raw, stop := c.Messages()
	out := make(chan TypedMessage[T], rawSubscriberBuffer)
	go func() {
		defer close(out)
		for m := range raw {
			if m.Err != nil {
				out <- TypedMessage[T]{Err: m.Err}
				continue
			}
			value, err := decodeFromTerm[T](m.Term, c.policy)
			out <- TypedMessage[T]{Value: value, Err: err}
		}
	}()
	return out, stop
}

// TypedMessage is the MessagesAs element type.
type TypedMessage[T any] struct {
	Value T
	Err   error
}

func decodeFromTerm[T any](t term.Term, policy bridge.Policy) (T, error) {
	buf, err := encodeTermToBuffer(t)
	if err != nil {
		var zero T
		return zero, err
	}
	return bridge.Decode[T](etf.FromBytes(buf.Bytes()), policy)
}

// Send transmits a raw Term to target (a registered name string, for
// REG_SEND, or a term.Pid, for SEND), wrapped as `{sender_pid,
// payload}` per spec §4.F "Send".
func (c *Connection) Send(ctx context.Context, target interface{}, payload term.Term) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	c.ensureReader()

	control, err := c.controlFor(target)
	if err != nil {
		return err
	}
	envelope := distproto.WrapSend(c.selfPid, payload)
	return c.sendEnvelope(ctx, control, envelope)
}

func (c *Connection) controlFor(target interface{}) (term.Term, error) {
	switch t := target.(type) {
	case term.Pid:
		return distproto.BuildSendControl(t), nil
	case string:
		return distproto.BuildRegSendControl(c.selfPid, t), nil
	default:
		return nil, fmt.Errorf("erldist: send: unsupported target type %T", target)
	}
}

// SendTyped encodes value under policy (the connection's policy if the
// zero Policy is passed) and sends it the way Send does.
func SendTyped[T any](ctx context.Context, c *Connection, target interface{}, value T, policy bridge.Policy) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if policy == (bridge.Policy{}) {
		policy = c.policy
	}
	buf, err := bridge.Encode(value, policy)
	if err != nil {
		return err
	}
	t, err := decodeBufferAsTerm(buf)
	if err != nil {
		return err
	}
	return c.Send(ctx, target, t)
}

// sendEnvelope encodes control followed by message into one frame, the
// way a real distribution packet carries a control tuple immediately
// followed by the message it governs.
func (c *Connection) sendEnvelope(ctx context.Context, control, message term.Term) error {
	buf := etf.New()
	if err := etf.Encode(control, buf); err != nil {
		return err
	}
	if err := etf.Encode(message, buf); err != nil {
		return err
	}
	if err := c.transport.Send(ctx, buf.Bytes()); err != nil {
		return wrapf(ErrSendFailed, "send: %v", err)
	}
	return nil
}

// RPC issues a `:rex`-tagged remote call and returns the decoded
// reply Term, per spec §4.F "RPC". Correlation uses the monotonic
// call-id embedded in the request's reference (spec.md §9's redesign
// flag), so multiple concurrent RPCs may safely share one connection.
func (c *Connection) RPC(ctx context.Context, module, function string, args term.Term) (term.Term, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	c.ensureReader()

	callID := c.callSeq.Add(1)
	waiter := make(chan distproto.RexReply, 1)
	c.pending.Store(callID, waiter)
	defer c.pending.Delete(callID)

	start := time.Now()
	req := distproto.BuildCallRequest(c.selfPid, callID, module, function, args, c.selfPid)
	control := distproto.BuildRegSendControl(c.selfPid, "rex")
	if err := c.sendEnvelope(ctx, control, req); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case reply, ok := <-waiter:
		if !ok {
			return nil, ErrNoResponse
		}
		c.log.Debug().
			Str("node", c.local.Name).
			Str("remote", c.remote).
			Uint64("call_id", callID).
			Dur("elapsed", time.Since(start)).
			Msg("rpc complete")
		if reply.BadRPC {
			return nil, &BadRPC{Reason: stringer{reply.Payload}}
		}
		return reply.Payload, nil
	case <-c.readerDone:
		return nil, ErrNoResponse
	}
}

type stringer struct{ t term.Term }

func (s stringer) String() string { return s.t.String() }

// RPCDecoded is RPC followed by a 4.E decode of the reply into T.
func RPCDecoded[T any](ctx context.Context, c *Connection, module, function string, args term.Term) (T, error) {
	reply, err := c.RPC(ctx, module, function, args)
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeFromTerm[T](reply, c.policy)
}

// RegisterHandler installs the handler invoked for every inbound
// `{:call, id, sender, args}` frame addressed to this connection's
// self-pid (spec §4.F "Inbound call dispatch"). A connection exposes
// exactly one local pid, so there is exactly one handler slot.
func (c *Connection) RegisterHandler(handler InboundCallHandler) {
	c.handlerMu.Lock()
	c.handler = handler
	c.handlerMu.Unlock()
	c.ensureReader()
}

func (c *Connection) handleInboundCall(call distproto.InboundCall) {
	c.handlerMu.Lock()
	handler := c.handler
	c.handlerMu.Unlock()

	var result term.Term
	if handler == nil {
		result = distproto.BuildErrorResult(fmt.Errorf("erldist: no handler registered for call %d", call.ID))
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		value, err := handler(ctx, call.Args)
		cancel()
		if err != nil {
			result = distproto.BuildErrorResult(err)
		} else {
			result = value
		}
	}

	envelope := distproto.WrapSend(c.selfPid, result)
	control := distproto.BuildSendControl(call.Sender)
	if err := c.sendEnvelope(context.Background(), control, envelope); err != nil {
		c.log.Warn().Err(err).Msg("inbound call: failed to send reply")
	}
}

// Close terminates the connection. Subsequent operations return
// ErrNotConnected. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.transitionTo(StateClosed)
		err = c.transport.Close()
		c.subMu.Lock()
		for id, ch := range c.subs {
			delete(c.subs, id)
			close(ch)
		}
		c.subMu.Unlock()
	})
	return err
}
