// Package collector walks the account's dialogs and keeps the groups table
// in sync with what Telegram reports.
package collector

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/blockedby/channel-map/internal/logger"
	"github.com/blockedby/channel-map/internal/models"
	"github.com/blockedby/channel-map/internal/repository"
	"github.com/blockedby/channel-map/internal/telegram"
)

// TelegramClient defines interface for telegram operations
type TelegramClient interface {
	Dialogs(ctx context.Context) ([]telegram.Chat, error)
	HistoryCount(ctx context.Context, chat *telegram.Chat) (int, error)
	MembersCount(ctx context.Context, chat *telegram.Chat) (*int, error)
	DownloadPhoto(ctx context.Context, chat *telegram.Chat) ([]byte, error)
}

// EventPublisher publishes group events
type EventPublisher interface {
	PublishGroupEvent(ctx context.Context, event GroupEvent) error
}

// event kinds
const (
	EventAdded   = "added"
	EventUpdated = "updated"
)

// GroupEvent is published for every created or changed group.
type GroupEvent struct {
	RunID     uuid.UUID         `json:"run_id"`
	ChannelID int64             `json:"channel_id"`
	Title     string            `json:"title"`
	Kind      string            `json:"kind"`
	Changes   map[string]string `json:"changes,omitempty"` // previous values
	At        time.Time         `json:"at"`
}

// CrawlResult contains crawl statistics
type CrawlResult struct {
	RunID     uuid.UUID `json:"run_id"`
	Total     int       `json:"total"`
	Added     int       `json:"added"`
	Updated   int       `json:"updated"`
	Unchanged int       `json:"unchanged"`
	Skipped   int       `json:"skipped"`
	Errors    int       `json:"errors"`
}

// Outcome is what ProcessChat did with a chat.
type Outcome int

// Outcome values.
const (
	OutcomeUnchanged Outcome = iota
	OutcomeAdded
	OutcomeUpdated
)

// Service orchestrates the crawl
type Service struct {
	tgClient  TelegramClient
	groups    *repository.GroupsRepository
	publisher EventPublisher
	selfID    int64
	log       *logger.Logger

	now func() time.Time
}

// NewService creates a new collector service. publisher may be nil.
// Dialogs with selfID are skipped.
func NewService(
	tgClient TelegramClient,
	groups *repository.GroupsRepository,
	publisher EventPublisher,
	selfID int64,
	log *logger.Logger,
) *Service {
	return &Service{
		tgClient:  tgClient,
		groups:    groups,
		publisher: publisher,
		selfID:    selfID,
		log:       log,
		now:       time.Now,
	}
}

// Crawl performs one pass over every dialog of the account. Failures of a
// single chat are counted and logged; only listing the dialogs is fatal.
func (s *Service) Crawl(ctx context.Context) (*CrawlResult, error) {
	result := &CrawlResult{RunID: uuid.New()}
	log := s.log.With().Str("run_id", result.RunID.String()).Logger()

	log.Info().Msg("starting crawl")

	chats, err := s.tgClient.Dialogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dialogs: %w", err)
	}

	for i := range chats {
		chat := &chats[i]

		select {
		case <-ctx.Done():
			log.Info().Msg("crawl cancelled")
			return result, ctx.Err()
		default:
		}

		if s.selfID != 0 && chat.ID == s.selfID {
			result.Skipped++
			continue
		}
		result.Total++

		messages, err := s.tgClient.HistoryCount(ctx, chat)
		if err != nil {
			log.Warn().Err(err).Int64("chat_id", chat.ID).Msg("failed to get history count")
			messages = 0
		}

		membersKnown := true
		if chat.MembersCount == nil && chat.IsChannel() {
			members, err := s.tgClient.MembersCount(ctx, chat)
			if err != nil {
				log.Warn().Err(err).Int64("chat_id", chat.ID).Msg("failed to get members count")
				membersKnown = false
			} else {
				chat.MembersCount = members
			}
		}

		var photo []byte
		if chat.HasPhoto() {
			photo, err = s.tgClient.DownloadPhoto(ctx, chat)
			if err != nil {
				log.Warn().Err(err).Int64("chat_id", chat.ID).Msg("failed to download photo")
				photo = nil
			}
		}

		outcome, err := s.processChat(ctx, result.RunID, chat, messages, photo, membersKnown)
		if err != nil {
			log.Error().Err(err).Int64("chat_id", chat.ID).Msg("failed to process chat")
			result.Errors++
			continue
		}

		switch outcome {
		case OutcomeAdded:
			result.Added++
		case OutcomeUpdated:
			result.Updated++
		default:
			result.Unchanged++
		}
	}

	log.Info().
		Int("total", result.Total).
		Int("added", result.Added).
		Int("updated", result.Updated).
		Int("unchanged", result.Unchanged).
		Int("skipped", result.Skipped).
		Int("errors", result.Errors).
		Msg("crawl completed")

	return result, nil
}

// ProcessChat creates the group for an unknown chat or records what changed
// for a known one. photo may be nil; a missing photo never clears the
// stored one.
func (s *Service) ProcessChat(ctx context.Context, chat *telegram.Chat, messages int, photo []byte) (Outcome, error) {
	return s.processChat(ctx, uuid.Nil, chat, messages, photo, true)
}

// membersKnown is false when the member count could not be fetched; the
// stored count is then left alone.
func (s *Service) processChat(ctx context.Context, runID uuid.UUID, chat *telegram.Chat, messages int, photo []byte, membersKnown bool) (Outcome, error) {
	now := s.now()

	group, err := s.groups.GetByChannelID(ctx, chat.ID)
	if err != nil {
		return OutcomeUnchanged, err
	}

	var username *string
	if chat.Username != "" {
		username = &chat.Username
	}
	var photoB64 *string
	if len(photo) > 0 {
		encoded := base64.StdEncoding.EncodeToString(photo)
		photoB64 = &encoded
	}

	if group == nil {
		group = &models.Group{
			ChannelID:     chat.ID,
			TimeAdded:     now.Unix(),
			TimeUpdated:   now.Unix(),
			Title:         chat.Title,
			Username:      username,
			MembersCount:  chat.MembersCount,
			MessagesCount: &messages,
			PhotoBase64:   photoB64,
		}
		if err := s.groups.Create(ctx, group); err != nil {
			return OutcomeUnchanged, err
		}

		s.log.Info().Int64("chat_id", chat.ID).Str("title", chat.Title).Msg("new group added")
		s.publish(ctx, GroupEvent{RunID: runID, ChannelID: chat.ID, Title: chat.Title, Kind: EventAdded, At: now})
		return OutcomeAdded, nil
	}

	var changes []repository.Change
	if group.Title != chat.Title {
		changes = append(changes, repository.Change{Key: models.KeyTitle, Value: group.Title})
		group.Title = chat.Title
	}
	if !equalPtr(group.Username, username) {
		changes = append(changes, repository.Change{Key: models.KeyUsername, Value: formatPtr(group.Username, identity)})
		group.Username = username
	}
	if membersKnown && !equalPtr(group.MembersCount, chat.MembersCount) {
		changes = append(changes, repository.Change{Key: models.KeyMembersCount, Value: formatPtr(group.MembersCount, strconv.Itoa)})
		group.MembersCount = chat.MembersCount
	}
	if !equalPtr(group.MessagesCount, &messages) {
		changes = append(changes, repository.Change{Key: models.KeyMessagesCount, Value: formatPtr(group.MessagesCount, strconv.Itoa)})
		group.MessagesCount = &messages
	}
	if photoB64 != nil && !equalPtr(group.PhotoBase64, photoB64) {
		changes = append(changes, repository.Change{Key: models.KeyPhoto, Value: formatPtr(group.PhotoBase64, identity)})
		group.PhotoBase64 = photoB64
	}

	if len(changes) == 0 {
		return OutcomeUnchanged, nil
	}

	if err := s.groups.ApplyChanges(ctx, group, changes, now.Unix()); err != nil {
		return OutcomeUnchanged, err
	}

	prev := make(map[string]string, len(changes))
	for _, c := range changes {
		if c.Key == models.KeyPhoto {
			prev[c.Key] = "" // too large for an event
			continue
		}
		prev[c.Key] = c.Value
	}
	s.log.Debug().Int64("chat_id", chat.ID).Int("changes", len(changes)).Msg("group updated")
	s.publish(ctx, GroupEvent{RunID: runID, ChannelID: chat.ID, Title: group.Title, Kind: EventUpdated, Changes: prev, At: now})

	return OutcomeUpdated, nil
}

func (s *Service) publish(ctx context.Context, event GroupEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishGroupEvent(ctx, event); err != nil {
		s.log.Warn().Err(err).Int64("chat_id", event.ChannelID).Msg("failed to publish group event")
	}
}

// noneValue is stored in history for fields that had no value.
const noneValue = "None"

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func formatPtr[T any](v *T, format func(T) string) string {
	if v == nil {
		return noneValue
	}
	return format(*v)
}

func identity(s string) string { return s }
