package chat

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Directory and Backend implementations when a
// record does not exist. For conversations this is an expected business
// state (the users have not matched yet), not a system error.
var ErrNotFound = errors.New("chat: not found")

// Sentinel errors returned synchronously by Session methods.
var (
	// ErrEmptyMessage rejects a send whose text is empty after trimming.
	ErrEmptyMessage = errors.New("chat: message is empty")

	// ErrSendInFlight rejects a send while a prior send is still pending.
	// Overlapping sends are ignored, not queued.
	ErrSendInFlight = errors.New("chat: a send is already in flight")

	// ErrNotLive rejects operations that require the session to be LIVE.
	ErrNotLive = errors.New("chat: session is not live")

	// ErrSessionClosed rejects operations on a torn-down session.
	ErrSessionClosed = errors.New("chat: session is closed")

	// ErrNotRetryable rejects a Retry when the session is not in a
	// retryable failed state.
	ErrNotRetryable = errors.New("chat: nothing to retry")
)

// FailureKind classifies a session failure for presentation.
type FailureKind int

const (
	// FailureNotFound is user-facing and not retryable without a state
	// change elsewhere (e.g. the users must match first).
	FailureNotFound FailureKind = iota

	// FailureTransient is user-facing and retryable.
	FailureTransient
)

// FailureStage records which initialization step failed, so a retry can
// resume from the right place.
type FailureStage int

const (
	StageCounterpart FailureStage = iota
	StageConversation
	StageHistory
	StageFeed
	StageSend
)

func (st FailureStage) String() string {
	switch st {
	case StageCounterpart:
		return "counterpart"
	case StageConversation:
		return "conversation"
	case StageHistory:
		return "history"
	case StageFeed:
		return "feed"
	case StageSend:
		return "send"
	}
	return "unknown"
}

// Failure is the translated form of any backend error that reaches the
// session boundary. Raw backend errors never cross into presentation; they
// are carried only as the wrapped cause.
type Failure struct {
	Kind  FailureKind
	Stage FailureStage
	Err   error // underlying cause, for logs
}

// Retryable reports whether offering the user a retry makes sense.
func (f *Failure) Retryable() bool {
	return f.Kind == FailureTransient
}

// Message returns the user-facing description of the failure.
func (f *Failure) Message() string {
	switch f.Stage {
	case StageCounterpart:
		if f.Kind == FailureNotFound {
			return "this account does not exist or was removed"
		}
		return "could not load this user's profile"
	case StageConversation:
		if f.Kind == FailureNotFound {
			return "you have not matched with this user yet"
		}
		return "could not load the conversation"
	case StageHistory:
		return "could not load message history"
	case StageFeed:
		return "could not open the realtime feed"
	case StageSend:
		return "could not send the message"
	}
	return "something went wrong"
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("chat: %s: %v", f.Message(), f.Err)
	}
	return "chat: " + f.Message()
}

func (f *Failure) Unwrap() error { return f.Err }

// classify translates a backend error for the given stage into a Failure.
// NotFound is only meaningful while resolving the counterpart or the
// conversation; history and feed failures are always transient.
func classify(stage FailureStage, err error) *Failure {
	kind := FailureTransient
	if errors.Is(err, ErrNotFound) && (stage == StageCounterpart || stage == StageConversation) {
		kind = FailureNotFound
	}
	return &Failure{Kind: kind, Stage: stage, Err: err}
}
