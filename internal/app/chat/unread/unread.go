// Package unread derives per-conversation unread counts and a lightweight
// mood indicator from the filtered message stream. Both are pure functions
// of the batch; an Accountant wraps them with a content-hash guard so an
// unchanged snapshot costs nothing.
package unread

import (
	"strings"

	"github.com/dalemusser/mentorhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Mood labels surfaced next to a conversation.
const (
	MoodNeutral  = "neutral"
	MoodPositive = "positive"
	MoodNegative = "negative"
)

// moodWindow is how many trailing messages the keyword score considers.
const moodWindow = 5

var positiveWords = map[string]struct{}{
	"thanks": {}, "thank": {}, "great": {}, "awesome": {}, "love": {},
	"helpful": {}, "congrats": {}, "congratulations": {}, "excited": {},
	"good": {}, "nice": {}, "perfect": {}, "happy": {},
}

var negativeWords = map[string]struct{}{
	"stuck": {}, "confused": {}, "frustrated": {}, "worried": {},
	"problem": {}, "wrong": {}, "bad": {}, "hard": {}, "sorry": {},
	"unfortunately": {}, "struggling": {}, "help": {},
}

// Count returns how many messages were sent by someone other than viewer
// and do not list viewer in their read-by set.
func Count(viewer primitive.ObjectID, msgs []models.ChatMessage) int {
	n := 0
	for _, m := range msgs {
		if m.SenderID == viewer {
			continue
		}
		if !m.ReadByUser(viewer) {
			n++
		}
	}
	return n
}

// Mood keyword-scores the last few messages. Ties and empty conversations
// read as neutral.
func Mood(msgs []models.ChatMessage) string {
	start := len(msgs) - moodWindow
	if start < 0 {
		start = 0
	}
	score := 0
	for _, m := range msgs[start:] {
		for _, w := range strings.Fields(strings.ToLower(m.Body)) {
			w = strings.Trim(w, ".,!?;:'\"()")
			if _, ok := positiveWords[w]; ok {
				score++
			}
			if _, ok := negativeWords[w]; ok {
				score--
			}
		}
	}
	switch {
	case score > 0:
		return MoodPositive
	case score < 0:
		return MoodNegative
	default:
		return MoodNeutral
	}
}

// State is one conversation's derived accounting.
type State struct {
	Unread int
	Mood   string
}

// Accountant tracks derived state per conversation for one viewer. Not safe
// for concurrent use; the owning session serializes calls.
type Accountant struct {
	viewer primitive.ObjectID

	states     map[string]State
	hashes     map[string]uint64
	overridden map[string]string // manual mood per conversation
}

func NewAccountant(viewer primitive.ObjectID) *Accountant {
	return &Accountant{
		viewer:     viewer,
		states:     make(map[string]State),
		hashes:     make(map[string]uint64),
		overridden: make(map[string]string),
	}
}

// Apply folds a filtered batch into the conversation's state and reports
// whether the state changed. An identical batch (by content hash) is a
// no-op, as is a recomputation that lands on the same values.
func (a *Accountant) Apply(conversationID string, msgs []models.ChatMessage) (State, bool) {
	hash := models.FingerprintMessages(msgs)
	if prev, ok := a.hashes[conversationID]; ok && prev == hash {
		return a.states[conversationID], false
	}
	a.hashes[conversationID] = hash

	next := State{Unread: Count(a.viewer, msgs), Mood: Mood(msgs)}
	if mood, ok := a.overridden[conversationID]; ok {
		next.Mood = mood
	}
	prev, had := a.states[conversationID]
	a.states[conversationID] = next
	return next, !had || prev != next
}

// OverrideMood pins the conversation's mood, suppressing keyword scoring
// until ClearOverride runs (the session clears it when the viewer switches
// conversations).
func (a *Accountant) OverrideMood(conversationID, mood string) State {
	a.overridden[conversationID] = mood
	s := a.states[conversationID]
	s.Mood = mood
	a.states[conversationID] = s
	return s
}

// ClearOverride lifts a manual mood; the next Apply rescores.
func (a *Accountant) ClearOverride(conversationID string) {
	if _, ok := a.overridden[conversationID]; !ok {
		return
	}
	delete(a.overridden, conversationID)
	// Force the next Apply to recompute even for an unchanged batch.
	delete(a.hashes, conversationID)
}

// Get returns the current state for a conversation.
func (a *Accountant) Get(conversationID string) State {
	return a.states[conversationID]
}

// Forget drops all derived state for a conversation.
func (a *Accountant) Forget(conversationID string) {
	delete(a.states, conversationID)
	delete(a.hashes, conversationID)
	delete(a.overridden, conversationID)
}
