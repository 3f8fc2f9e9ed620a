// Package bus is a small in-process pub/sub bus with MQTT-style topics.
//
// Subscriptions may use "+" (exactly one level) and "#" (all remaining
// levels, last token only). Retained messages are stored per concrete topic
// and replayed to new matching subscribers; publishing a retained message
// with a nil payload clears it. Delivery never blocks the publisher: when a
// subscriber queue is full the oldest queued message is dropped.
package bus

import (
	"context"
	"sync"
	"sync/atomic"
)

// -----------------------------------------------------------------------------
// Tokens + Topics
// -----------------------------------------------------------------------------

// Token is one topic level: a string or an integer.
type Token = any

// Topic is a sequence of tokens.
type Topic []Token

const (
	wildOne = "+"
	wildAll = "#"
)

// T builds a topic. It panics on token types that cannot key a map.
func T(tokens ...Token) Topic {
	for _, tok := range tokens {
		switch tok.(type) {
		case string, int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64, bool:
		default:
			panic("bus: unsupported topic token type")
		}
	}
	return Topic(tokens)
}

func (t Topic) Len() int       { return len(t) }
func (t Topic) At(i int) Token { return t[i] }

// Append returns a new topic with extra tokens; t is not modified.
func (t Topic) Append(tokens ...Token) Topic {
	out := make(Topic, 0, len(t)+len(tokens))
	out = append(out, t...)
	return append(out, T(tokens...)...)
}

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic  Topic
	ch     chan *Message
	conn   *Connection
	closed bool // guarded by Bus.mu
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// deliver enqueues m, evicting the oldest message when the queue is full.
func (s *Subscription) deliver(m *Message) {
	select {
	case s.ch <- m:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- m:
	default:
	}
}

// -----------------------------------------------------------------------------
// Trie node
// -----------------------------------------------------------------------------

type node struct {
	children map[Token]*node
	subs     []*Subscription
	retained *Message
}

func (n *node) child(tok Token, create bool) *node {
	if c, ok := n.children[tok]; ok || !create {
		return c
	}
	if n.children == nil {
		n.children = make(map[Token]*node)
	}
	c := &node{}
	n.children[tok] = c
	return c
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu    sync.Mutex
	subs  *node // subscription patterns
	ret   *node // retained messages by concrete topic
	qLen  int
	reqID uint32
}

// NewBus creates a new bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{subs: &node{}, ret: &node{}, qLen: queueLen}
}

// NewMessage builds a message; it does not publish it.
func (b *Bus) NewMessage(t Topic, payload any, retained bool) *Message {
	return &Message{Topic: t, Payload: payload, Retained: retained}
}

// Publish delivers msg to every matching subscription and updates the
// retained store when msg.Retained is set.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg.Retained {
		b.storeRetained(msg)
	}
	matchSubs(b.subs, msg.Topic, func(s *Subscription) { s.deliver(msg) })
}

func (b *Bus) storeRetained(msg *Message) {
	if msg.Payload == nil {
		b.clearRetained(msg.Topic)
		return
	}
	n := b.ret
	for _, tok := range msg.Topic {
		n = n.child(tok, true)
	}
	n.retained = msg
}

func (b *Bus) clearRetained(t Topic) {
	n := b.ret
	path := make([]*node, 0, len(t))
	for _, tok := range t {
		path = append(path, n)
		if n = n.child(tok, false); n == nil {
			return
		}
	}
	n.retained = nil
	// Prune empty branches bottom-up.
	for i := len(t) - 1; i >= 0; i-- {
		parent, c := path[i], path[i].children[t[i]]
		if c.retained != nil || len(c.children) > 0 {
			break
		}
		delete(parent.children, t[i])
	}
}

// matchSubs walks subscription patterns that match the concrete topic t.
func matchSubs(n *node, t Topic, fn func(*Subscription)) {
	if h := n.child(wildAll, false); h != nil {
		for _, s := range h.subs {
			fn(s)
		}
	}
	if len(t) == 0 {
		for _, s := range n.subs {
			fn(s)
		}
		return
	}
	if c := n.child(t[0], false); c != nil {
		matchSubs(c, t[1:], fn)
	}
	if c := n.child(wildOne, false); c != nil {
		matchSubs(c, t[1:], fn)
	}
}

// matchRetained walks retained messages whose concrete topics match pattern p.
func matchRetained(n *node, p Topic, fn func(*Message)) {
	if len(p) == 0 {
		if n.retained != nil {
			fn(n.retained)
		}
		return
	}
	switch p[0] {
	case wildAll:
		walkRetained(n, fn)
	case wildOne:
		for _, c := range n.children {
			matchRetained(c, p[1:], fn)
		}
	default:
		if c := n.child(p[0], false); c != nil {
			matchRetained(c, p[1:], fn)
		}
	}
}

func walkRetained(n *node, fn func(*Message)) {
	if n.retained != nil {
		fn(n.retained)
	}
	for _, c := range n.children {
		walkRetained(c, fn)
	}
}

func (b *Bus) addSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.subs
	for _, tok := range sub.topic {
		n = n.child(tok, true)
	}
	n.subs = append(n.subs, sub)

	matchRetained(b.ret, sub.topic, sub.deliver)
}

func (b *Bus) removeSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	defer close(sub.ch)

	n := b.subs
	path := make([]*node, 0, len(sub.topic))
	for _, tok := range sub.topic {
		path = append(path, n)
		if n = n.child(tok, false); n == nil {
			return
		}
	}
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}
	for i := len(sub.topic) - 1; i >= 0; i-- {
		parent, c := path[i], path[i].children[sub.topic[i]]
		if len(c.subs) > 0 || len(c.children) > 0 {
			break
		}
		delete(parent.children, sub.topic[i])
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	id   string
	mu   sync.Mutex
	subs []*Subscription
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) NewMessage(t Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(t, payload, retained)
}

// Publish sends a message via the bus.
func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

// Subscribe registers a subscription owned by this connection.
func (c *Connection) Subscribe(t Topic) *Subscription {
	sub := &Subscription{
		topic: t,
		ch:    make(chan *Message, c.bus.qLen),
		conn:  c,
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	c.bus.addSubscription(sub)
	return sub
}

// Unsubscribe removes a subscription and closes its channel. Calling it more
// than once is harmless.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.bus.removeSubscription(sub)
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
}

// Disconnect closes all subscriptions owned by the connection.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, s := range subs {
		c.bus.removeSubscription(s)
	}
}

// -----------------------------------------------------------------------------
// Request–Reply
// -----------------------------------------------------------------------------

// Request assigns a private reply topic to msg, subscribes to it and
// publishes msg. The caller owns the returned subscription.
func (c *Connection) Request(msg *Message) *Subscription {
	id := atomic.AddUint32(&c.bus.reqID, 1)
	msg.ReplyTo = T("_reply", c.id, int(id))
	sub := c.Subscribe(msg.ReplyTo)
	c.Publish(msg)
	return sub
}

// RequestWait publishes msg and waits for the first reply or ctx expiry.
func (c *Connection) RequestWait(ctx context.Context, msg *Message) (*Message, error) {
	sub := c.Request(msg)
	defer c.Unsubscribe(sub)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case m := <-sub.Channel():
		return m, nil
	}
}

// Reply publishes payload to req.ReplyTo. Requests without a reply topic are
// ignored.
func (c *Connection) Reply(req *Message, payload any, retained bool) {
	if len(req.ReplyTo) == 0 {
		return
	}
	c.Publish(c.NewMessage(req.ReplyTo, payload, retained))
}
