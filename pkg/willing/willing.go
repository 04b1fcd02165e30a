// Package willing decides, per conversation, how eager a chat agent is to reply
// to an incoming message. Each conversation carries a willingness score that
// grows on mentions and interesting content, decays in the background and is
// turned into a bounded reply probability by a rate-limiting curve.
package willing

import (
	"errors"
	"fmt"
	"math"
)

// Sentinel errors for the willingness manager.
var (
	ErrInvalidConversationID = errors.New("willing: invalid conversation ID")
	ErrInvalidTuning         = errors.New("willing: invalid tuning")
	ErrInvalidStimulus       = errors.New("willing: invalid stimulus")
	ErrInvalidScore          = errors.New("willing: invalid score")
	ErrManagerStopped        = errors.New("willing: manager stopped")
)

// Score bounds.
const (
	MinScore = 0.0
	MaxScore = 3.0
)

// Conversation identifies the chat context a stimulus arrived in.
type Conversation struct {
	// ID is the stable conversation identifier.
	ID string `json:"id"`

	// GroupID is the optional group the conversation belongs to.
	// Empty means the conversation is not a group chat.
	GroupID string `json:"group_id,omitempty"`
}

// Stimulus describes one incoming message as seen by the classifier.
type Stimulus struct {
	// IsMentioned reports whether the agent was addressed directly.
	IsMentioned bool `json:"is_mentioned"`

	// IsEmoji reports whether the message is purely emoji/sticker content.
	IsEmoji bool `json:"is_emoji"`

	// InterestRate is the topical interest of the message (>= 0).
	InterestRate float64 `json:"interest_rate" validate:"gte=0"`

	// GroupID is the group the message was posted in, if any.
	GroupID string `json:"group_id,omitempty"`
}

// Validate checks the stimulus fields.
func (s Stimulus) Validate() error {
	if !(s.InterestRate >= 0) || math.IsInf(s.InterestRate, 1) {
		return fmt.Errorf("%w: interest rate must be finite and >= 0 (got %v)", ErrInvalidStimulus, s.InterestRate)
	}
	return nil
}

// Tuning holds the reply tuning values supplied by the config provider.
type Tuning struct {
	// InterestAmplifier scales the stimulus interest rate.
	InterestAmplifier float64 `json:"interest_amplifier"`

	// WillingnessAmplifier scales the accumulated score.
	WillingnessAmplifier float64 `json:"willingness_amplifier"`

	// DownFrequencyGroups are groups with a longer suppression window
	// and a divided reply probability.
	DownFrequencyGroups map[string]struct{} `json:"-"`

	// DownFrequencyRate divides the reply probability of throttled groups.
	DownFrequencyRate float64 `json:"down_frequency_rate"`
}

// DefaultTuning returns neutral amplifiers and a throttle rate of 3.
func DefaultTuning() Tuning {
	return Tuning{
		InterestAmplifier:    1.0,
		WillingnessAmplifier: 1.0,
		DownFrequencyGroups:  map[string]struct{}{},
		DownFrequencyRate:    3.0,
	}
}

// NewGroupSet builds a group membership set from a list of ids.
func NewGroupSet(ids ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}

// IsDownFrequency reports whether groupID is a throttled group.
func (t Tuning) IsDownFrequency(groupID string) bool {
	if groupID == "" {
		return false
	}
	_, ok := t.DownFrequencyGroups[groupID]
	return ok
}

// Validate checks that the tuning values are usable.
func (t Tuning) Validate() error {
	if !positiveFinite(t.DownFrequencyRate) {
		return fmt.Errorf("%w: down frequency rate must be finite and > 0 (got %v)", ErrInvalidTuning, t.DownFrequencyRate)
	}
	if !positiveFinite(t.InterestAmplifier) {
		return fmt.Errorf("%w: interest amplifier must be finite and > 0 (got %v)", ErrInvalidTuning, t.InterestAmplifier)
	}
	if !positiveFinite(t.WillingnessAmplifier) {
		return fmt.Errorf("%w: willingness amplifier must be finite and > 0 (got %v)", ErrInvalidTuning, t.WillingnessAmplifier)
	}
	return nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// Record is the willingness state of one conversation.
type Record struct {
	// ConversationID identifies the conversation.
	ConversationID string `json:"conversation_id"`

	// Score is the willingness score, kept within [MinScore, MaxScore].
	Score float64 `json:"score"`

	// LastReplyAt is the unix time (seconds) of the last chosen reply.
	LastReplyAt float64 `json:"last_reply_at"`
}

// Decision is the outcome of evaluating one stimulus.
type Decision struct {
	// ID uniquely identifies this evaluation.
	ID string `json:"id"`

	// ConversationID is the evaluated conversation.
	ConversationID string `json:"conversation_id"`

	// Probability is the reply probability in [0, 1].
	Probability float64 `json:"probability"`

	// WillReply is the outcome of the random draw against Probability.
	WillReply bool `json:"will_reply"`

	// Score is the persisted willingness after the evaluation.
	Score float64 `json:"score"`

	// RateLimitFactor is the suppression factor applied for recent replies.
	RateLimitFactor float64 `json:"rate_limit_factor"`
}
