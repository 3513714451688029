package telegram

import (
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChannel(id int64, title string, broadcast bool) *tg.Channel {
	ch := &tg.Channel{ID: id, AccessHash: id * 10, Title: title, Broadcast: broadcast, Megagroup: !broadcast}
	ch.SetParticipantsCount(int(id) * 100)
	ch.Photo = &tg.ChatPhoto{PhotoID: id + 5}
	return ch
}

func TestPageOf(t *testing.T) {
	full, ok := pageOf(&tg.MessagesDialogs{Dialogs: []tg.DialogClass{&tg.Dialog{}}})
	require.True(t, ok)
	assert.True(t, full.Last)
	assert.Equal(t, 1, full.Total)

	slice, ok := pageOf(&tg.MessagesDialogsSlice{Count: 250})
	require.True(t, ok)
	assert.False(t, slice.Last)
	assert.Equal(t, 250, slice.Total)

	_, ok = pageOf(&tg.MessagesDialogsNotModified{Count: 3})
	assert.False(t, ok)
}

func TestDialogsPage_Chats(t *testing.T) {
	page := &dialogsPage{
		Dialogs: []tg.DialogClass{
			&tg.Dialog{Peer: &tg.PeerChannel{ChannelID: 1}},
			&tg.Dialog{Peer: &tg.PeerChannel{ChannelID: 2}},
			&tg.DialogFolder{},
			&tg.Dialog{Peer: &tg.PeerChat{ChatID: 3}},
			&tg.Dialog{Peer: &tg.PeerUser{UserID: 4}},
			&tg.Dialog{Peer: &tg.PeerChannel{ChannelID: 99}}, // entity missing
		},
		Chats: []tg.ChatClass{
			newChannel(1, "News", true),
			newChannel(2, "Chat", false),
			&tg.Chat{ID: 3, Title: "Family", ParticipantsCount: 4},
		},
		Users: []tg.UserClass{
			&tg.User{ID: 4, FirstName: "Anna", Username: "anna", AccessHash: 44},
		},
	}

	chats := page.chats()
	require.Len(t, chats, 4)

	assert.Equal(t, KindChannel, chats[0].Kind)
	assert.Equal(t, int64(-1000000000001), chats[0].ID)
	assert.Equal(t, "News", chats[0].Title)
	require.NotNil(t, chats[0].MembersCount)
	assert.Equal(t, 100, *chats[0].MembersCount)
	assert.Equal(t, int64(6), chats[0].PhotoID)
	assert.True(t, chats[0].HasPhoto())
	assert.Equal(t, &tg.InputPeerChannel{ChannelID: 1, AccessHash: 10}, chats[0].Peer)

	assert.Equal(t, KindSupergroup, chats[1].Kind)
	assert.True(t, chats[1].IsChannel())

	assert.Equal(t, KindGroup, chats[2].Kind)
	assert.Equal(t, int64(-3), chats[2].ID)
	assert.Equal(t, 4, *chats[2].MembersCount)
	assert.False(t, chats[2].HasPhoto())
	assert.False(t, chats[2].IsChannel())

	assert.Equal(t, KindUser, chats[3].Kind)
	assert.Equal(t, "Anna", chats[3].Title)
	assert.Equal(t, "anna", chats[3].Username)
	assert.Nil(t, chats[3].MembersCount)
}

func TestDialogsPage_NextOffset(t *testing.T) {
	page := &dialogsPage{
		Dialogs: []tg.DialogClass{
			&tg.Dialog{Peer: &tg.PeerChannel{ChannelID: 1}, TopMessage: 10},
			&tg.Dialog{Peer: &tg.PeerUser{UserID: 4}, TopMessage: 7},
			&tg.DialogFolder{},
		},
		Messages: []tg.MessageClass{
			&tg.Message{ID: 10, PeerID: &tg.PeerChannel{ChannelID: 1}, Date: 2000},
			&tg.Message{ID: 7, PeerID: &tg.PeerChannel{ChannelID: 1}, Date: 1},
			&tg.MessageService{ID: 7, PeerID: &tg.PeerUser{UserID: 4}, Date: 1500},
		},
		Chats: []tg.ChatClass{newChannel(1, "News", true)},
		Users: []tg.UserClass{&tg.User{ID: 4, AccessHash: 44}},
	}

	next, ok := page.nextOffset()
	require.True(t, ok)
	assert.Equal(t, 1500, next.date)
	assert.Equal(t, 7, next.id)
	assert.Equal(t, &tg.InputPeerUser{UserID: 4, AccessHash: 44}, next.peer)
}

func TestDialogsPage_NextOffset_Empty(t *testing.T) {
	_, ok := (&dialogsPage{}).nextOffset()
	assert.False(t, ok)
}

func TestMarkedIDs(t *testing.T) {
	assert.Equal(t, int64(-1001234567890), MarkedChannelID(1234567890))
	assert.Equal(t, int64(-42), MarkedChatID(42))
}
