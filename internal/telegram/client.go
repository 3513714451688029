// Package telegram provides Telegram MTProto client wrapper.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/celestix/gotgproto"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/blockedby/channel-map/internal/logger"
)

const (
	dialogsPageSize = 100
	photoChunkSize  = 512 * 1024

	// extra pause on top of the FLOOD_WAIT the server asked for
	defaultFloodPadding = 2 * time.Second
)

// ErrNotAuthorized is returned when no authorized protocol client is available.
var ErrNotAuthorized = errors.New("telegram client not authorized")

// Client wraps gotgproto client and provides the dialog crawling operations.
type Client struct {
	api          func() (*tg.Client, error)
	rateLimiter  *RateLimiter
	floodPadding time.Duration
	log          *logger.Logger
}

// NewClient creates a new telegram client wrapper. proto may be nil, in
// which case every call fails with ErrNotAuthorized.
func NewClient(proto *gotgproto.Client, limiter *RateLimiter) *Client {
	if limiter == nil {
		limiter = DefaultRateLimiter()
	}
	return &Client{
		api: func() (*tg.Client, error) {
			if proto == nil {
				return nil, ErrNotAuthorized
			}
			return proto.API(), nil
		},
		rateLimiter:  limiter,
		floodPadding: defaultFloodPadding,
		log:          logger.Get().Component("telegram"),
	}
}

// API returns the raw tg.Client for direct API calls.
func (c *Client) API() (*tg.Client, error) {
	return c.api()
}

// call runs fn behind the rate limiter. On FLOOD_WAIT it pauses for the
// requested time plus padding and retries once.
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context, api *tg.Client) error) error {
	api, err := c.API()
	if err != nil {
		return err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	err = fn(ctx, api)
	if wait, ok := tgerr.AsFloodWait(err); ok {
		wait += c.floodPadding
		c.log.Warn().Str("op", op).Dur("wait", wait).Msg("telegram: FLOOD_WAIT detected, waiting before retry")
		c.rateLimiter.SetFloodWait(wait)
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}
		err = fn(ctx, api)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Dialogs returns every dialog of the account, newest first.
func (c *Client) Dialogs(ctx context.Context) ([]Chat, error) {
	var (
		out  []Chat
		seen = make(map[int64]bool)
		req  = &tg.MessagesGetDialogsRequest{
			OffsetPeer: &tg.InputPeerEmpty{},
			Limit:      dialogsPageSize,
		}
	)

	for {
		var resp tg.MessagesDialogsClass
		err := c.call(ctx, "get dialogs", func(ctx context.Context, api *tg.Client) error {
			var err error
			resp, err = api.MessagesGetDialogs(ctx, req)
			return err
		})
		if err != nil {
			return out, err
		}

		page, ok := pageOf(resp)
		if !ok {
			break
		}

		added := 0
		for _, chat := range page.chats() {
			if seen[chat.ID] {
				continue
			}
			seen[chat.ID] = true
			out = append(out, chat)
			added++
		}

		c.log.Debug().Int("page", len(page.Dialogs)).Int("total", len(out)).Msg("telegram: dialogs page fetched")

		if page.Last || len(page.Dialogs) < dialogsPageSize || added == 0 {
			break
		}
		if page.Total > 0 && len(out) >= page.Total {
			break
		}

		next, ok := page.nextOffset()
		if !ok {
			break
		}
		req = &tg.MessagesGetDialogsRequest{
			OffsetDate: next.date,
			OffsetID:   next.id,
			OffsetPeer: next.peer,
			Limit:      dialogsPageSize,
		}
	}

	return out, nil
}

// HistoryCount returns the number of messages in a chat.
func (c *Client) HistoryCount(ctx context.Context, chat *Chat) (int, error) {
	var resp tg.MessagesMessagesClass
	err := c.call(ctx, "get history", func(ctx context.Context, api *tg.Client) error {
		var err error
		resp, err = api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:  chat.Peer,
			Limit: 1,
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	return historyCount(resp), nil
}

// MembersCount fetches the participant count of a channel or supergroup
// from its full info.
func (c *Client) MembersCount(ctx context.Context, chat *Chat) (*int, error) {
	peer, ok := chat.Peer.(*tg.InputPeerChannel)
	if !ok {
		return chat.MembersCount, nil
	}

	var full *tg.MessagesChatFull
	err := c.call(ctx, "get full channel", func(ctx context.Context, api *tg.Client) error {
		var err error
		full, err = api.ChannelsGetFullChannel(ctx, &tg.InputChannel{
			ChannelID:  peer.ChannelID,
			AccessHash: peer.AccessHash,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	chFull, ok := full.FullChat.(*tg.ChannelFull)
	if !ok {
		return nil, fmt.Errorf("unexpected full chat type %T", full.FullChat)
	}
	count, ok := chFull.GetParticipantsCount()
	if !ok {
		return nil, nil
	}
	return &count, nil
}

// DownloadPhoto downloads the small profile photo of a chat.
// Returns nil without error when the chat has no photo.
func (c *Client) DownloadPhoto(ctx context.Context, chat *Chat) ([]byte, error) {
	if !chat.HasPhoto() {
		return nil, nil
	}

	location := &tg.InputPeerPhotoFileLocation{
		Peer:    chat.Peer,
		PhotoID: chat.PhotoID,
	}

	var buf bytes.Buffer
	var offset int64
	for {
		var resp tg.UploadFileClass
		err := c.call(ctx, "get file", func(ctx context.Context, api *tg.Client) error {
			var err error
			resp, err = api.UploadGetFile(ctx, &tg.UploadGetFileRequest{
				Location: location,
				Offset:   offset,
				Limit:    photoChunkSize,
			})
			return err
		})
		if err != nil {
			return nil, err
		}

		file, ok := resp.(*tg.UploadFile)
		if !ok {
			return nil, fmt.Errorf("unexpected file response %T", resp)
		}
		buf.Write(file.Bytes)
		offset += int64(len(file.Bytes))

		if len(file.Bytes) < photoChunkSize {
			break
		}
	}

	return buf.Bytes(), nil
}

func historyCount(resp tg.MessagesMessagesClass) int {
	switch h := resp.(type) {
	case *tg.MessagesMessages:
		return len(h.Messages)
	case *tg.MessagesMessagesSlice:
		return h.Count
	case *tg.MessagesChannelMessages:
		return h.Count
	case *tg.MessagesMessagesNotModified:
		return h.Count
	}
	return 0
}
