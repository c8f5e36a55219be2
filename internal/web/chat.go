package web

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rainagent/rain/internal/agent"
	"github.com/rainagent/rain/internal/knowledge"
	"github.com/rainagent/rain/internal/tools"
)

const (
	maxSessions = 100

	// chatTimeout bounds one agent run. When it passes the agent answers with
	// its stop message rather than an error.
	chatTimeout = 5 * time.Minute
)

// Invoker is the part of *agent.Executor the console needs.
type Invoker interface {
	Invoke(ctx context.Context, input string, observer tools.Observer) (*agent.Response, error)
}

// AgentFactory builds an agent from the credentials a user submitted.
type AgentFactory func(creds agent.Credentials) (Invoker, error)

// ChatMessage is a single turn in the conversation.
type ChatMessage struct {
	Role     string `json:"role"` // "user" or "assistant"
	Content  string `json:"content"`
	HTML     string `json:"html"`
	Thoughts string `json:"thoughts,omitempty"`
	Error    bool   `json:"error,omitempty"`
	Time     string `json:"time"`
}

// ── ChatSession (one browser) ──

// ChatSession is the state of one browser session: its transcript and,
// once credentials were submitted, its agent. Nothing here is persisted.
type ChatSession struct {
	id  string
	hub *EventHub

	runMu sync.Mutex // serializes Chat calls

	mu       sync.Mutex
	lastSeen time.Time
	history  []ChatMessage
	agent    Invoker
}

func newChatSession(id string, now time.Time) *ChatSession {
	return &ChatSession{id: id, hub: NewEventHub(), lastSeen: now}
}

// ID returns the session cookie value.
func (s *ChatSession) ID() string { return s.id }

// Hub is the session's live event stream.
func (s *ChatSession) Hub() *EventHub { return s.hub }

// Initialize attaches a freshly built agent. The transcript is kept.
func (s *ChatSession) Initialize(a Invoker) {
	s.mu.Lock()
	s.agent = a
	s.mu.Unlock()
	s.hub.Publish(Event{Type: "initialized", Message: knowledge.UI().Initialized})
}

// Initialized reports whether an agent is attached.
func (s *ChatSession) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agent != nil
}

// Messages returns a copy of the transcript.
func (s *ChatSession) Messages() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatMessage, len(s.history))
	copy(out, s.history)
	return out
}

// Chat records userMsg, runs the agent, and records its answer. Agent
// failures become an assistant turn with Error set; the returned error is
// only ErrNotInitialized.
func (s *ChatSession) Chat(ctx context.Context, userMsg string) (ChatMessage, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.mu.Lock()
	a := s.agent
	s.mu.Unlock()
	if a == nil {
		return ChatMessage{}, ErrNotInitialized
	}

	s.append(ChatMessage{Role: "user", Content: userMsg})
	s.hub.Publish(Event{Type: "thinking", Message: knowledge.UI().Thinking})

	ctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()

	resp, err := a.Invoke(ctx, userMsg, func(step tools.Step) {
		s.hub.Publish(Event{Type: "step", Message: string(step.Kind), Data: step})
	})

	var reply ChatMessage
	if err != nil {
		reply = ChatMessage{Role: "assistant", Content: knowledge.UI().ErrorPrefix + err.Error(), Error: true}
	} else {
		reply = ChatMessage{Role: "assistant", Content: resp.Output, Thoughts: resp.Thoughts}
	}
	reply = s.append(reply)
	s.hub.Publish(Event{Type: "done", Data: reply})
	return reply, nil
}

func (s *ChatSession) append(m ChatMessage) ChatMessage {
	m.HTML = RenderMarkdown(m.Content)
	m.Time = time.Now().UTC().Format(time.RFC3339)
	s.mu.Lock()
	s.history = append(s.history, m)
	s.mu.Unlock()
	return m
}

func (s *ChatSession) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *ChatSession) seen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// ── SessionStore ──

// SessionStore keeps browser sessions in memory. Idle sessions expire after
// ttl; when full, the least recently used session is dropped.
type SessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*ChatSession
	now      func() time.Time
}

// NewSessionStore creates an empty store.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		sessions: make(map[string]*ChatSession),
		now:      time.Now,
	}
}

// Get returns a live session and marks it as seen.
func (s *SessionStore) Get(id string) (*ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if s.expired(sess, now) {
		delete(s.sessions, id)
		return nil, false
	}
	sess.touch(now)
	return sess, true
}

// Create registers a new session under id.
func (s *SessionStore) Create(id string) *ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweepLocked(now)
	for len(s.sessions) >= maxSessions {
		s.evictOldestLocked()
	}
	sess := newChatSession(id, now)
	s.sessions[id] = sess
	return sess
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops expired sessions and returns how many were removed.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

// Run sweeps periodically until ctx is done.
func (s *SessionStore) Run(ctx context.Context, every time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.Sweep()
		}
	}
}

func (s *SessionStore) expired(sess *ChatSession, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.seen()) > s.ttl
}

func (s *SessionStore) sweepLocked(now time.Time) int {
	n := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func (s *SessionStore) evictOldestLocked() {
	type entry struct {
		id   string
		seen time.Time
	}
	entries := make([]entry, 0, len(s.sessions))
	for id, sess := range s.sessions {
		entries = append(entries, entry{id, sess.seen()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seen.Before(entries[j].seen) })
	if len(entries) > 0 {
		delete(s.sessions, entries[0].id)
	}
}
