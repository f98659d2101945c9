package unread_test

import (
	"testing"
	"time"

	"github.com/dalemusser/mentorhub/internal/app/chat/unread"
	"github.com/dalemusser/mentorhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func msg(sender primitive.ObjectID, body string, readBy ...primitive.ObjectID) models.ChatMessage {
	return models.ChatMessage{
		ID:       primitive.NewObjectID(),
		SenderID: sender,
		Body:     body,
		ReadBy:   readBy,
		SentAt:   time.Now(),
	}
}

func TestCountSkipsOwnAndReadMessages(t *testing.T) {
	viewer := primitive.NewObjectID()
	other := primitive.NewObjectID()

	msgs := []models.ChatMessage{
		msg(viewer, "mine"),
		msg(other, "unread one"),
		msg(other, "already seen", viewer),
		msg(other, "unread two", other),
	}
	if got := unread.Count(viewer, msgs); got != 2 {
		t.Errorf("Count = %d, want 2", got)
	}
	if got := unread.Count(viewer, nil); got != 0 {
		t.Errorf("Count on empty = %d, want 0", got)
	}
}

func TestMoodScoresTrailingWindow(t *testing.T) {
	sender := primitive.NewObjectID()

	positive := []models.ChatMessage{
		msg(sender, "Thanks, that was really helpful!"),
		msg(sender, "great progress today"),
	}
	if got := unread.Mood(positive); got != unread.MoodPositive {
		t.Errorf("Mood = %q, want positive", got)
	}

	negative := []models.ChatMessage{
		msg(sender, "I'm stuck and confused about the problem"),
	}
	if got := unread.Mood(negative); got != unread.MoodNegative {
		t.Errorf("Mood = %q, want negative", got)
	}

	if got := unread.Mood(nil); got != unread.MoodNeutral {
		t.Errorf("Mood on empty = %q, want neutral", got)
	}

	// Only the last five messages count: old negativity scrolls out.
	var msgs []models.ChatMessage
	msgs = append(msgs, msg(sender, "stuck stuck stuck stuck"))
	for i := 0; i < 5; i++ {
		msgs = append(msgs, msg(sender, "thanks"))
	}
	if got := unread.Mood(msgs); got != unread.MoodPositive {
		t.Errorf("Mood with scrolled-out negativity = %q, want positive", got)
	}
}

func TestAccountantSkipsUnchangedBatches(t *testing.T) {
	viewer := primitive.NewObjectID()
	other := primitive.NewObjectID()
	acct := unread.NewAccountant(viewer)

	batch := []models.ChatMessage{msg(other, "hello")}
	state, changed := acct.Apply("conv", batch)
	if !changed || state.Unread != 1 {
		t.Fatalf("first apply: state=%+v changed=%v", state, changed)
	}

	if _, changed := acct.Apply("conv", batch); changed {
		t.Errorf("identical batch must not report a change")
	}

	// Marking read changes the fingerprint and the count.
	batch[0].ReadBy = []primitive.ObjectID{viewer}
	state, changed = acct.Apply("conv", batch)
	if !changed || state.Unread != 0 {
		t.Errorf("after read receipt: state=%+v changed=%v", state, changed)
	}
}

func TestAccountantMoodOverride(t *testing.T) {
	viewer := primitive.NewObjectID()
	other := primitive.NewObjectID()
	acct := unread.NewAccountant(viewer)

	acct.Apply("conv", []models.ChatMessage{msg(other, "thanks, awesome")})
	if got := acct.Get("conv").Mood; got != unread.MoodPositive {
		t.Fatalf("pre-override mood = %q, want positive", got)
	}

	if got := acct.OverrideMood("conv", unread.MoodNegative).Mood; got != unread.MoodNegative {
		t.Fatalf("override mood = %q, want negative", got)
	}

	// New batches keep the override while it stands.
	state, _ := acct.Apply("conv", []models.ChatMessage{
		msg(other, "thanks, awesome"),
		msg(other, "great, love it"),
	})
	if state.Mood != unread.MoodNegative {
		t.Errorf("override not honored across batches: mood = %q", state.Mood)
	}

	// Clearing the override (conversation switch) rescans on the next
	// apply, even for an unchanged batch.
	acct.ClearOverride("conv")
	state, changed := acct.Apply("conv", []models.ChatMessage{
		msg(other, "thanks, awesome"),
		msg(other, "great, love it"),
	})
	if !changed || state.Mood != unread.MoodPositive {
		t.Errorf("after clear: state=%+v changed=%v, want positive mood", state, changed)
	}
}

func TestAccountantTracksConversationsIndependently(t *testing.T) {
	viewer := primitive.NewObjectID()
	other := primitive.NewObjectID()
	acct := unread.NewAccountant(viewer)

	acct.Apply("a", []models.ChatMessage{msg(other, "one"), msg(other, "two")})
	acct.Apply("b", []models.ChatMessage{msg(other, "solo", viewer)})

	if got := acct.Get("a").Unread; got != 2 {
		t.Errorf("conversation a unread = %d, want 2", got)
	}
	if got := acct.Get("b").Unread; got != 0 {
		t.Errorf("conversation b unread = %d, want 0", got)
	}

	acct.Forget("a")
	if got := acct.Get("a").Unread; got != 0 {
		t.Errorf("forgotten conversation unread = %d, want 0", got)
	}
}
