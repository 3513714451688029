package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/channel-map/internal/logger"
)

func newTestClient() *Client {
	return &Client{
		api:         func() (*tg.Client, error) { return tg.NewClient(nil), nil },
		rateLimiter: NewRateLimiter(1000, 10),
		log:         logger.Get(),
	}
}

func TestClient_API_UnauthorizedError(t *testing.T) {
	client := NewClient(nil, nil)

	api, err := client.API()
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.Nil(t, api)

	_, err = client.Dialogs(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestClient_Call_RetriesFloodWaitOnce(t *testing.T) {
	c := newTestClient()

	calls := 0
	err := c.call(context.Background(), "op", func(context.Context, *tg.Client) error {
		calls++
		if calls == 1 {
			return tgerr.New(420, "FLOOD_WAIT_0")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestClient_Call_SecondFloodWaitFails(t *testing.T) {
	c := newTestClient()

	calls := 0
	err := c.call(context.Background(), "get history", func(context.Context, *tg.Client) error {
		calls++
		return tgerr.New(420, "FLOOD_WAIT_0")
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, err.Error(), "get history")
	assert.True(t, tgerr.Is(err, tgerr.ErrFloodWait))
}

func TestClient_Call_WrapsOtherErrors(t *testing.T) {
	c := newTestClient()
	boom := errors.New("boom")

	calls := 0
	err := c.call(context.Background(), "get file", func(context.Context, *tg.Client) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestClient_Call_FloodWaitHonorsContext(t *testing.T) {
	c := newTestClient()
	c.floodPadding = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.call(ctx, "op", func(context.Context, *tg.Client) error {
		return tgerr.New(420, "FLOOD_WAIT_1")
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_DownloadPhoto_NoPhoto(t *testing.T) {
	c := newTestClient()

	data, err := c.DownloadPhoto(context.Background(), &Chat{ID: 1})
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestClient_MembersCount_NotChannel(t *testing.T) {
	c := newTestClient()
	n := 5

	got, err := c.MembersCount(context.Background(), &Chat{Peer: &tg.InputPeerChat{ChatID: 1}, MembersCount: &n})
	require.NoError(t, err)
	assert.Equal(t, &n, got)
}

func TestHistoryCount(t *testing.T) {
	tests := []struct {
		name string
		resp tg.MessagesMessagesClass
		want int
	}{
		{"full", &tg.MessagesMessages{Messages: []tg.MessageClass{&tg.Message{}, &tg.Message{}}}, 2},
		{"slice", &tg.MessagesMessagesSlice{Count: 120}, 120},
		{"channel", &tg.MessagesChannelMessages{Count: 9000}, 9000},
		{"not modified", &tg.MessagesMessagesNotModified{Count: 3}, 3},
		{"nil", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, historyCount(tt.resp))
		})
	}
}
