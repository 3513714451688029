// Package models defines shared data types for the application.
package models

// Group is a crawled Telegram chat: channel, supergroup, basic group or user dialog.
type Group struct {
	ID            uint    `gorm:"primaryKey;autoIncrement" json:"-"`
	ChannelID     int64   `gorm:"column:id_channel;uniqueIndex;not null" json:"id"`
	TimeAdded     int64   `gorm:"column:time_added;not null" json:"time_added"`
	TimeUpdated   int64   `gorm:"column:time_updated;not null" json:"time_updated"`
	Title         string  `gorm:"column:title;not null" json:"title"`
	Username      *string `gorm:"column:username" json:"username"`
	MembersCount  *int    `gorm:"column:members_count" json:"members_count"`
	MessagesCount *int    `gorm:"column:messages_count" json:"messages_count"`
	PhotoBase64   *string `gorm:"column:photo_base64" json:"photo_base64,omitempty"`
}

// TableName keeps the table name stable across renames of the struct.
func (Group) TableName() string {
	return "groups"
}

// GroupHistory stores the previous value of a changed Group field.
type GroupHistory struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ChannelID   int64  `gorm:"column:id_channel;index;not null"`
	TimeCreated int64  `gorm:"column:time_created;not null"`
	Key         string `gorm:"column:key;not null"`
	Value       string `gorm:"column:value;not null"`
}

// TableName returns the history table name.
func (GroupHistory) TableName() string {
	return "history_groups"
}

// history keys
const (
	KeyTitle         = "title"
	KeyUsername      = "username"
	KeyMembersCount  = "members_count"
	KeyMessagesCount = "messages_count"
	KeyPhoto         = "photo"
)
