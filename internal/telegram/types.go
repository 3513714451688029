package telegram

import (
	"github.com/gotd/td/tg"
)

// ChatKind is the type of dialog peer.
type ChatKind string

// ChatKind constants mirror the peer types a dialog can point to.
const (
	KindChannel    ChatKind = "channel"    // broadcast channel
	KindSupergroup ChatKind = "supergroup" // megagroup or gigagroup
	KindGroup      ChatKind = "group"      // basic group
	KindUser       ChatKind = "user"       // private chat or bot
)

// channelIDOffset turns a raw channel id into the marked (-100...) form.
const channelIDOffset = 1000000000000

// Chat is one dialog of the account with the metadata we persist.
type Chat struct {
	ID           int64  // marked id: users > 0, groups < 0, channels -100...
	RawID        int64  // id as sent by the api
	Kind         ChatKind
	Title        string
	Username     string // without @, empty when unset
	MembersCount *int   // nil when unknown
	PhotoID      int64  // 0 when the chat has no photo

	Peer tg.InputPeerClass // for api calls
}

// HasPhoto reports whether the chat has a profile photo to download.
func (c *Chat) HasPhoto() bool {
	return c.PhotoID != 0
}

// IsChannel reports whether the chat is a channel or supergroup.
func (c *Chat) IsChannel() bool {
	return c.Kind == KindChannel || c.Kind == KindSupergroup
}

// MarkedChannelID converts a raw channel id into its marked form.
func MarkedChannelID(id int64) int64 {
	return -(channelIDOffset + id)
}

// MarkedChatID converts a raw basic group id into its marked form.
func MarkedChatID(id int64) int64 {
	return -id
}
