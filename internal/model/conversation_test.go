package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectConversationKeyCanonical(t *testing.T) {
	// Both directions must resolve to one key.
	assert.Equal(t, DirectConversationKey("alice", "bob"), DirectConversationKey("bob", "alice"))
	assert.Equal(t, Key("direct.alice.bob"), DirectConversationKey("bob", "alice"))
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"group key", "group.g1", false},
		{"direct key", "direct.alice.bob", false},
		{"direct key not canonical", "direct.bob.alice", true},
		{"empty", "", true},
		{"unknown prefix", "channel.g1", true},
		{"group without id", "group.", true},
		{"direct missing user", "direct.alice.", true},
		{"bare direct", "direct", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseKey(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Key(tt.in), key)
		})
	}
}

func TestKeyAccessors(t *testing.T) {
	gk := GroupConversationKey("g1")
	assert.Equal(t, ConversationGroup, gk.Type())
	assert.Equal(t, "g1", gk.GroupID())

	dk := DirectConversationKey("alice", "bob")
	assert.Equal(t, ConversationDirect, dk.Type())
	assert.Empty(t, dk.GroupID())

	a, b, ok := dk.DirectPair()
	require.True(t, ok)
	assert.Equal(t, "alice", a)
	assert.Equal(t, "bob", b)
}

func TestKeyPartner(t *testing.T) {
	dk := DirectConversationKey("alice", "bob")

	partner, ok := dk.Partner("alice")
	require.True(t, ok)
	assert.Equal(t, "bob", partner)

	partner, ok = dk.Partner("bob")
	require.True(t, ok)
	assert.Equal(t, "alice", partner)

	_, ok = dk.Partner("mallory")
	assert.False(t, ok)

	_, ok = GroupConversationKey("g1").Partner("alice")
	assert.False(t, ok)
}

func TestMessageSentBy(t *testing.T) {
	sender := "alice"
	m := &Message{SenderID: &sender}
	assert.True(t, m.SentBy("alice"))
	assert.False(t, m.SentBy("bob"))

	external := &Message{IsExternal: true}
	assert.False(t, external.SentBy("alice"))
}

func TestValidSource(t *testing.T) {
	for _, s := range []Source{SourceDispatch, SourceFire, SourceEMS, SourcePolice, SourceOther} {
		assert.True(t, ValidSource(s), string(s))
	}
	assert.False(t, ValidSource("weather"))
	assert.False(t, ValidSource(""))
}

func TestGroupMembershipSetSemantics(t *testing.T) {
	g := &Group{}
	g.AddMember("alice")
	g.AddMember("bob")
	g.AddMember("alice")

	assert.Equal(t, []string{"alice", "bob"}, g.Members)
	assert.True(t, g.HasMember("alice"))
	assert.False(t, g.HasMember("mallory"))
}
