package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/heartlink/chat-app/internal/metrics"
)

// State is the session lifecycle state.
type State int

const (
	StateResolvingCounterpart State = iota
	StateResolvingConversation
	StateLoadingHistory
	StateLive
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateResolvingCounterpart:
		return "resolving_counterpart"
	case StateResolvingConversation:
		return "resolving_conversation"
	case StateLoadingHistory:
		return "loading_history"
	case StateLive:
		return "live"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Config wires a Session to its collaborators. LocalUserID, CounterpartID,
// Directory, and Backend are required; zero-valued tunables take the
// Default* constants.
//
// Hooks are invoked from the session's event loop: they must return
// promptly and must not call back into the Session.
type Config struct {
	LocalUserID   string
	CounterpartID string

	Directory Directory
	Backend   Backend

	HistoryLimit   int           // max messages fetched at start
	TypingDebounce time.Duration // trailing-edge window for local typing writes
	TypingExpiry   time.Duration // how long a remote typing=true stays visible
	CallTimeout    time.Duration // per-backend-call timeout

	OnStateChange func(Snapshot) // state transitions; carries the full state
	OnMessage     func(Message)  // each message appended while LIVE
	OnTyping      func(bool)     // counterpart typing flag changes
	OnSendResult  func(error)    // outcome of each in-flight send, nil on success
}

// Snapshot is a point-in-time copy of the session's observable state.
type Snapshot struct {
	State             State
	Failure           *Failure
	Counterpart       *Profile
	Conversation      *Conversation
	Messages          []Message
	CounterpartTyping bool
	Sending           bool
}

// Session synchronizes one conversation between the local user and a
// counterpart: it resolves the conversation, loads history, keeps the
// message list consistent under concurrent local sends and realtime
// delivery, and tracks the counterpart's typing state.
//
// All mutable state is owned by a single event-loop goroutine; public
// methods and backend callbacks post closures onto that loop, so there is
// no concurrent mutation, only a deterministic interleaving. Backend I/O
// runs off-loop and posts its result back; results arriving after Close
// are discarded.
type Session struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc

	events    chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// Loop-owned state. Never touched outside the event loop.
	state             State
	failure           *Failure
	counterpart       *Profile
	conversation      *Conversation
	history           *history
	sending           bool
	counterpartTyping bool
	typingSeq         int
	debounceTimer     *time.Timer
	expiryTimer       *time.Timer
	sub               Subscription
}

// NewSession validates cfg, starts the session's event loop, and begins
// initialization. The caller must Close the returned session.
func NewSession(cfg Config) (*Session, error) {
	if cfg.LocalUserID == "" || cfg.CounterpartID == "" {
		return nil, fmt.Errorf("chat: both participant IDs are required")
	}
	if cfg.LocalUserID == cfg.CounterpartID {
		return nil, fmt.Errorf("chat: cannot open a conversation with yourself")
	}
	if cfg.Directory == nil || cfg.Backend == nil {
		return nil, fmt.Errorf("chat: Directory and Backend are required")
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.TypingDebounce <= 0 {
		cfg.TypingDebounce = DefaultTypingDebounce
	}
	if cfg.TypingExpiry <= 0 {
		cfg.TypingExpiry = DefaultTypingExpiry
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		events:  make(chan func(), 64),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		history: newHistory(),
	}

	metrics.ActiveSessions.Inc()
	go s.run()
	s.post(s.beginInit)
	return s, nil
}

// run applies posted closures one at a time until Close. Teardown happens
// on the loop as well, so nothing can race it.
func (s *Session) run() {
	for {
		select {
		case fn := <-s.events:
			fn()
		case <-s.quit:
			s.teardown()
			close(s.done)
			return
		}
	}
}

// post queues fn for the event loop. It reports false if the session is
// closing, in which case fn will never run.
func (s *Session) post(fn func()) bool {
	select {
	case s.events <- fn:
		return true
	case <-s.quit:
		return false
	}
}

// Close tears the session down: the realtime subscription is released
// (a no-op if none was ever established), pending timers are cancelled,
// and in-flight backend calls have their results discarded. Close is
// idempotent and blocks until teardown completes.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
	<-s.done
}

func (s *Session) teardown() {
	s.cancel()
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	if s.expiryTimer != nil {
		s.expiryTimer.Stop()
	}
	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			log.Printf("[chat] unsubscribe conversation=%s: %v", s.conversationID(), err)
		}
		s.sub = nil
	}
	s.state = StateClosed
	metrics.ActiveSessions.Dec()
}

// Snapshot returns a copy of the session's observable state, serialized
// through the event loop.
func (s *Session) Snapshot() Snapshot {
	ch := make(chan Snapshot, 1)
	if !s.post(func() { ch <- s.snapshot() }) {
		return Snapshot{State: StateClosed}
	}
	select {
	case snap := <-ch:
		return snap
	case <-s.done:
		return Snapshot{State: StateClosed}
	}
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		State:             s.state,
		Failure:           s.failure,
		Counterpart:       s.counterpart,
		Conversation:      s.conversation,
		Messages:          s.history.Messages(),
		CounterpartTyping: s.counterpartTyping,
		Sending:           s.sending,
	}
}

// ---------------------------------------------------------------------------
// Initialization state machine
// ---------------------------------------------------------------------------

func (s *Session) beginInit() {
	s.setState(StateResolvingCounterpart)
	go s.resolveCounterpart()
}

func (s *Session) resolveCounterpart() {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.CallTimeout)
	prof, err := s.cfg.Backend.FetchProfile(ctx, s.cfg.CounterpartID)
	cancel()

	s.post(func() {
		if s.state != StateResolvingCounterpart {
			return
		}
		if err != nil {
			s.fail(StageCounterpart, err)
			return
		}
		s.counterpart = prof
		s.setState(StateResolvingConversation)
		go s.resolveConversation()
	})
}

func (s *Session) resolveConversation() {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.CallTimeout)
	conv, err := s.cfg.Directory.FindConversation(ctx, s.cfg.LocalUserID, s.cfg.CounterpartID)
	cancel()

	s.post(func() {
		if s.state != StateResolvingConversation {
			return
		}
		if err != nil {
			s.fail(StageConversation, err)
			return
		}
		s.conversation = conv
		s.setState(StateLoadingHistory)
		go s.loadHistory(conv.ID)
	})
}

func (s *Session) loadHistory(conversationID string) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.CallTimeout)
	msgs, err := s.cfg.Backend.ListMessages(ctx, conversationID, s.cfg.HistoryLimit)
	cancel()

	s.post(func() {
		if s.state != StateLoadingHistory {
			return
		}
		if err != nil {
			// The resolved conversation stays valid; Retry skips resolution.
			s.fail(StageHistory, err)
			return
		}
		for _, m := range msgs {
			s.history.Append(m)
		}
		s.goLive(conversationID)
	})
}

// goLive subscribes to the conversation's realtime feed. Subscribing on
// the event loop guarantees that a session torn down mid-initialization
// can never end up with a live subscription: teardown runs on this same
// loop, strictly before or strictly after this call.
func (s *Session) goLive(conversationID string) {
	sub, err := s.cfg.Backend.Subscribe(conversationID,
		func(m Message) { s.post(func() { s.handleMessageEvent(m) }) },
		func(sig TypingSignal) { s.post(func() { s.handleTypingEvent(sig) }) },
	)
	if err != nil {
		s.fail(StageFeed, err)
		return
	}
	s.sub = sub
	s.setState(StateLive)
}

// Retry re-runs initialization after a transient failure. A failure during
// or after history load keeps the resolved conversation, so the profile
// and directory lookups are skipped. Returns ErrNotRetryable if the
// session is not in a retryable FAILED state, ErrSessionClosed if closed.
func (s *Session) Retry() error {
	errc := make(chan error, 1)
	ok := s.post(func() {
		if s.state != StateFailed || s.failure == nil || !s.failure.Retryable() {
			errc <- ErrNotRetryable
			return
		}
		stage := s.failure.Stage
		s.failure = nil
		if (stage == StageHistory || stage == StageFeed) && s.conversation != nil {
			s.setState(StateLoadingHistory)
			go s.loadHistory(s.conversation.ID)
		} else {
			s.beginInit()
		}
		errc <- nil
	})
	if !ok {
		return ErrSessionClosed
	}
	select {
	case err := <-errc:
		return err
	case <-s.done:
		return ErrSessionClosed
	}
}

func (s *Session) fail(stage FailureStage, err error) {
	s.failure = classify(stage, err)
	log.Printf("[chat] session local=%s counterpart=%s failed stage=%s: %v",
		s.cfg.LocalUserID, s.cfg.CounterpartID, stage, err)
	metrics.SessionFailures.WithLabelValues(stage.String()).Inc()
	s.setState(StateFailed)
}

// ---------------------------------------------------------------------------
// Sending
// ---------------------------------------------------------------------------

// Send persists trimmed text as a new message from the local user. Empty
// or whitespace-only input is rejected with ErrEmptyMessage. At most one
// send may be in flight per session; an overlapping call is rejected with
// ErrSendInFlight and has no other effect. A nil return means the send was
// accepted into flight; its outcome is delivered via OnSendResult. On
// success the canonical record is appended to the list immediately (local
// echo), the local typing signal is cleared, and the counterpart is
// notified best-effort. On failure no local state changes, so the caller
// may retry with the same text.
func (s *Session) Send(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyMessage
	}
	if err := ValidateMessage(trimmed); err != nil {
		return fmt.Errorf("chat: %w", err)
	}

	errc := make(chan error, 1)
	ok := s.post(func() {
		switch {
		case s.state != StateLive:
			errc <- ErrNotLive
		case s.sending:
			errc <- ErrSendInFlight
		default:
			s.sending = true
			go s.performSend(s.conversation.ID, trimmed)
			errc <- nil
		}
	})
	if !ok {
		return ErrSessionClosed
	}
	select {
	case err := <-errc:
		return err
	case <-s.done:
		return ErrSessionClosed
	}
}

func (s *Session) performSend(conversationID, text string) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.CallTimeout)
	msg, err := s.cfg.Backend.InsertMessage(ctx, conversationID, s.cfg.LocalUserID, text)
	cancel()

	s.post(func() {
		s.sending = false
		if err != nil {
			metrics.MessagesTotal.WithLabelValues("failed").Inc()
			log.Printf("[chat] send conversation=%s: %v", conversationID, err)
			s.notifySendResult(&Failure{Kind: FailureTransient, Stage: StageSend, Err: err})
			return
		}
		metrics.SendLatency.Observe(time.Since(start).Seconds())
		metrics.MessagesTotal.WithLabelValues("sent").Inc()

		// Local echo: the list shows the sender's message without waiting
		// for the feed. The feed's redelivery of it is dropped by the
		// merge rule.
		if s.history.Append(*msg) {
			s.notifyMessage(*msg)
		}
		if s.debounceTimer != nil {
			s.debounceTimer.Stop()
		}
		s.notifySendResult(nil)

		// Side effects are fire-and-forget: neither may fail the send.
		go s.afterSend(conversationID, text)
	})
}

// afterSend clears the local typing signal and notifies the counterpart.
// Both are best-effort; errors are logged and swallowed.
func (s *Session) afterSend(conversationID, text string) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.CallTimeout)
	defer cancel()

	err := s.cfg.Backend.UpsertTyping(ctx, TypingSignal{
		ConversationID: conversationID,
		UserID:         s.cfg.LocalUserID,
		IsTyping:       false,
		UpdatedAt:      time.Now().UTC(),
	})
	if err != nil {
		log.Printf("[chat] clear typing conversation=%s: %v", conversationID, err)
	}

	err = s.cfg.Backend.Notify(ctx, s.cfg.CounterpartID, NotifyNewMessage, map[string]interface{}{
		"from_user_id":    s.cfg.LocalUserID,
		"conversation_id": conversationID,
		"preview":         preview(text, 80),
	})
	if err != nil {
		log.Printf("[chat] notify user=%s: %v", s.cfg.CounterpartID, err)
	}
}

func preview(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// ---------------------------------------------------------------------------
// Typing lifecycle
// ---------------------------------------------------------------------------

// InputChanged tells the session the local user's draft changed. Non-empty
// input arms a trailing-edge debounce that writes a typing=true signal, so
// a burst of keystrokes produces a single write. There is no typing=false
// write on idle; the signal is only cleared after a successful send, and
// the remote side ages it out.
func (s *Session) InputChanged(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	s.post(func() {
		if s.state != StateLive {
			return
		}
		if s.debounceTimer != nil {
			s.debounceTimer.Stop()
		}
		conversationID := s.conversation.ID
		s.debounceTimer = time.AfterFunc(s.cfg.TypingDebounce, func() {
			s.post(func() {
				if s.state != StateLive {
					return
				}
				go s.emitTyping(conversationID)
			})
		})
	})
}

func (s *Session) emitTyping(conversationID string) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.CallTimeout)
	defer cancel()

	err := s.cfg.Backend.UpsertTyping(ctx, TypingSignal{
		ConversationID: conversationID,
		UserID:         s.cfg.LocalUserID,
		IsTyping:       true,
		UpdatedAt:      time.Now().UTC(),
	})
	if err != nil {
		// Best-effort: typing signals may be dropped without correctness
		// impact.
		log.Printf("[chat] typing signal conversation=%s: %v", conversationID, err)
		return
	}
	metrics.TypingSignalsTotal.Inc()
}

// handleTypingEvent applies a typing-signal change from the feed. Each
// fresh typing=true from the counterpart restarts the expiry timer; the
// flag drops once the window passes without a newer signal.
func (s *Session) handleTypingEvent(sig TypingSignal) {
	if s.state != StateLive {
		return
	}
	if sig.UserID == s.cfg.LocalUserID || !sig.IsTyping {
		return
	}

	s.typingSeq++
	seq := s.typingSeq
	if !s.counterpartTyping {
		s.counterpartTyping = true
		s.notifyTyping(true)
	}
	if s.expiryTimer != nil {
		s.expiryTimer.Stop()
	}
	s.expiryTimer = time.AfterFunc(s.cfg.TypingExpiry, func() {
		s.post(func() {
			if s.typingSeq != seq {
				return // superseded by a newer signal
			}
			if s.counterpartTyping {
				s.counterpartTyping = false
				s.notifyTyping(false)
			}
		})
	})
}

// ---------------------------------------------------------------------------
// Realtime merge
// ---------------------------------------------------------------------------

// handleMessageEvent applies a new-message event from the feed. The local
// user's own messages are dropped (already present via the local echo);
// everything else is appended with id-level dedup, since the feed is
// at-least-once and may redeliver.
func (s *Session) handleMessageEvent(m Message) {
	if s.state != StateLive {
		return
	}
	if m.SenderID == s.cfg.LocalUserID {
		metrics.MessagesTotal.WithLabelValues("duplicate").Inc()
		return
	}
	if !s.history.Append(m) {
		metrics.MessagesTotal.WithLabelValues("duplicate").Inc()
		return
	}
	metrics.MessagesTotal.WithLabelValues("received").Inc()
	s.notifyMessage(m)
}

// ---------------------------------------------------------------------------
// Hooks
// ---------------------------------------------------------------------------

func (s *Session) setState(state State) {
	s.state = state
	if s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(s.snapshot())
	}
}

func (s *Session) notifyMessage(m Message) {
	if s.cfg.OnMessage != nil {
		s.cfg.OnMessage(m)
	}
}

func (s *Session) notifyTyping(typing bool) {
	if s.cfg.OnTyping != nil {
		s.cfg.OnTyping(typing)
	}
}

func (s *Session) notifySendResult(err error) {
	if s.cfg.OnSendResult != nil {
		s.cfg.OnSendResult(err)
	}
}

func (s *Session) conversationID() string {
	if s.conversation == nil {
		return ""
	}
	return s.conversation.ID
}
