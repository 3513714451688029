package telegram

import (
	"github.com/gotd/td/tg"
)

// dialogsPage is the common part of messages.dialogs and messages.dialogsSlice.
type dialogsPage struct {
	Dialogs  []tg.DialogClass
	Messages []tg.MessageClass
	Chats    []tg.ChatClass
	Users    []tg.UserClass
	Total    int  // 0 when unknown
	Last     bool // messages.dialogs always holds the full list
}

type dialogsOffset struct {
	date int
	id   int
	peer tg.InputPeerClass
}

func pageOf(resp tg.MessagesDialogsClass) (*dialogsPage, bool) {
	switch d := resp.(type) {
	case *tg.MessagesDialogs:
		return &dialogsPage{
			Dialogs:  d.Dialogs,
			Messages: d.Messages,
			Chats:    d.Chats,
			Users:    d.Users,
			Total:    len(d.Dialogs),
			Last:     true,
		}, true
	case *tg.MessagesDialogsSlice:
		return &dialogsPage{
			Dialogs:  d.Dialogs,
			Messages: d.Messages,
			Chats:    d.Chats,
			Users:    d.Users,
			Total:    d.Count,
		}, true
	}
	return nil, false
}

// chats resolves the dialogs of the page against its entities.
func (p *dialogsPage) chats() []Chat {
	chats := make(map[int64]tg.ChatClass, len(p.Chats))
	for _, c := range p.Chats {
		chats[c.GetID()] = c
	}
	users := make(map[int64]*tg.User, len(p.Users))
	for _, u := range p.Users {
		if user, ok := u.(*tg.User); ok {
			users[user.ID] = user
		}
	}

	var out []Chat
	for _, d := range p.Dialogs {
		dialog, ok := d.(*tg.Dialog)
		if !ok {
			continue // folders
		}

		switch peer := dialog.Peer.(type) {
		case *tg.PeerChannel:
			if ch, ok := chats[peer.ChannelID].(*tg.Channel); ok {
				out = append(out, chatFromChannel(ch))
			}
		case *tg.PeerChat:
			if ch, ok := chats[peer.ChatID].(*tg.Chat); ok {
				out = append(out, chatFromGroup(ch))
			}
		case *tg.PeerUser:
			if u, ok := users[peer.UserID]; ok {
				out = append(out, chatFromUser(u))
			}
		}
	}
	return out
}

// nextOffset derives the offset of the next page from the last dialog.
func (p *dialogsPage) nextOffset() (dialogsOffset, bool) {
	for i := len(p.Dialogs) - 1; i >= 0; i-- {
		dialog, ok := p.Dialogs[i].(*tg.Dialog)
		if !ok {
			continue
		}

		var date int
		for _, m := range p.Messages {
			if m.GetID() != dialog.TopMessage || !samePeer(peerOfMessage(m), dialog.Peer) {
				continue
			}
			switch msg := m.(type) {
			case *tg.Message:
				date = msg.Date
			case *tg.MessageService:
				date = msg.Date
			}
		}

		peer := p.inputPeer(dialog.Peer)
		if peer == nil {
			continue
		}
		return dialogsOffset{date: date, id: dialog.TopMessage, peer: peer}, true
	}
	return dialogsOffset{}, false
}

func (p *dialogsPage) inputPeer(peer tg.PeerClass) tg.InputPeerClass {
	switch pr := peer.(type) {
	case *tg.PeerChannel:
		for _, c := range p.Chats {
			if ch, ok := c.(*tg.Channel); ok && ch.ID == pr.ChannelID {
				return &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}
			}
		}
	case *tg.PeerChat:
		return &tg.InputPeerChat{ChatID: pr.ChatID}
	case *tg.PeerUser:
		for _, u := range p.Users {
			if user, ok := u.(*tg.User); ok && user.ID == pr.UserID {
				return &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash}
			}
		}
	}
	return nil
}

func peerOfMessage(m tg.MessageClass) tg.PeerClass {
	switch msg := m.(type) {
	case *tg.Message:
		return msg.PeerID
	case *tg.MessageService:
		return msg.PeerID
	}
	return nil
}

func samePeer(a, b tg.PeerClass) bool {
	switch pa := a.(type) {
	case *tg.PeerChannel:
		pb, ok := b.(*tg.PeerChannel)
		return ok && pa.ChannelID == pb.ChannelID
	case *tg.PeerChat:
		pb, ok := b.(*tg.PeerChat)
		return ok && pa.ChatID == pb.ChatID
	case *tg.PeerUser:
		pb, ok := b.(*tg.PeerUser)
		return ok && pa.UserID == pb.UserID
	}
	return false
}

func chatFromChannel(ch *tg.Channel) Chat {
	kind := KindSupergroup
	if ch.Broadcast {
		kind = KindChannel
	}

	chat := Chat{
		ID:       MarkedChannelID(ch.ID),
		RawID:    ch.ID,
		Kind:     kind,
		Title:    ch.Title,
		Username: ch.Username,
		Peer:     &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash},
	}
	if n, ok := ch.GetParticipantsCount(); ok {
		chat.MembersCount = &n
	}
	if photo, ok := ch.Photo.(*tg.ChatPhoto); ok {
		chat.PhotoID = photo.PhotoID
	}
	return chat
}

func chatFromGroup(ch *tg.Chat) Chat {
	chat := Chat{
		ID:    MarkedChatID(ch.ID),
		RawID: ch.ID,
		Kind:  KindGroup,
		Title: ch.Title,
		Peer:  &tg.InputPeerChat{ChatID: ch.ID},
	}
	n := ch.ParticipantsCount
	chat.MembersCount = &n
	if photo, ok := ch.Photo.(*tg.ChatPhoto); ok {
		chat.PhotoID = photo.PhotoID
	}
	return chat
}

func chatFromUser(u *tg.User) Chat {
	chat := Chat{
		ID:       u.ID,
		RawID:    u.ID,
		Kind:     KindUser,
		Title:    u.FirstName,
		Username: u.Username,
		Peer:     &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash},
	}
	if photo, ok := u.Photo.(*tg.UserProfilePhoto); ok {
		chat.PhotoID = photo.PhotoID
	}
	return chat
}
