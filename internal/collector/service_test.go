package collector

import (
	"context"
	"encoding/base64"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/blockedby/channel-map/internal/database"
	"github.com/blockedby/channel-map/internal/logger"
	"github.com/blockedby/channel-map/internal/models"
	"github.com/blockedby/channel-map/internal/repository"
	"github.com/blockedby/channel-map/internal/telegram"
)

type MockTGClient struct {
	mock.Mock
}

func (m *MockTGClient) Dialogs(ctx context.Context) ([]telegram.Chat, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]telegram.Chat), args.Error(1)
}

func (m *MockTGClient) HistoryCount(ctx context.Context, chat *telegram.Chat) (int, error) {
	args := m.Called(ctx, chat.ID)
	return args.Int(0), args.Error(1)
}

func (m *MockTGClient) MembersCount(ctx context.Context, chat *telegram.Chat) (*int, error) {
	args := m.Called(ctx, chat.ID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*int), args.Error(1)
}

func (m *MockTGClient) DownloadPhoto(ctx context.Context, chat *telegram.Chat) ([]byte, error) {
	args := m.Called(ctx, chat.ID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type MockPublisher struct {
	mu     sync.Mutex
	events []GroupEvent
	err    error
}

func (m *MockPublisher) PublishGroupEvent(_ context.Context, event GroupEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func ptr[T any](v T) *T { return &v }

func setupService(t *testing.T, tgClient TelegramClient, pub EventPublisher) (*Service, *repository.GroupsRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "crawl.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	repo := repository.NewGroupsRepository(db)
	svc := NewService(tgClient, repo, pub, 777, logger.Get())
	return svc, repo
}

func channel(id int64, title, username string, members int) telegram.Chat {
	return telegram.Chat{
		ID:           id,
		Kind:         telegram.KindChannel,
		Title:        title,
		Username:     username,
		MembersCount: ptr(members),
		Peer:         &tg.InputPeerChannel{ChannelID: -id},
	}
}

func TestService_ProcessChat_NewGroup(t *testing.T) {
	pub := &MockPublisher{}
	svc, repo := setupService(t, nil, pub)
	svc.now = func() time.Time { return time.Unix(1000, 0) }

	chat := channel(-1001, "Cheboksary", "cheb", 500)
	outcome, err := svc.ProcessChat(context.Background(), &chat, 42, []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdded, outcome)

	g, err := repo.GetByChannelID(context.Background(), -1001)
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, int64(1000), g.TimeAdded)
	assert.Equal(t, int64(1000), g.TimeUpdated)
	assert.Equal(t, "cheb", *g.Username)
	assert.Equal(t, 500, *g.MembersCount)
	assert.Equal(t, 42, *g.MessagesCount)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("jpeg")), *g.PhotoBase64)

	require.Len(t, pub.events, 1)
	assert.Equal(t, EventAdded, pub.events[0].Kind)
	assert.Equal(t, int64(-1001), pub.events[0].ChannelID)
}

func TestService_ProcessChat_RecordsChanges(t *testing.T) {
	pub := &MockPublisher{}
	svc, repo := setupService(t, nil, pub)
	ctx := context.Background()

	svc.now = func() time.Time { return time.Unix(1000, 0) }
	chat := channel(-1001, "Old title", "", 500)
	_, err := svc.ProcessChat(ctx, &chat, 10, nil)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Unix(2000, 0) }
	chat = channel(-1001, "New title", "fresh", 500)
	outcome, err := svc.ProcessChat(ctx, &chat, 11, []byte("new photo"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	g, err := repo.GetByChannelID(ctx, -1001)
	require.NoError(t, err)
	assert.Equal(t, "New title", g.Title)
	assert.Equal(t, "fresh", *g.Username)
	assert.Equal(t, 11, *g.MessagesCount)
	assert.Equal(t, int64(2000), g.TimeUpdated)
	assert.Equal(t, int64(1000), g.TimeAdded)
	assert.NotNil(t, g.PhotoBase64)

	history, err := repo.History(ctx, -1001)
	require.NoError(t, err)
	got := map[string]string{}
	for _, h := range history {
		got[h.Key] = h.Value
		assert.Equal(t, int64(1000), h.TimeCreated)
	}
	assert.Equal(t, map[string]string{
		models.KeyTitle:         "Old title",
		models.KeyUsername:      "None",
		models.KeyMessagesCount: "10",
		models.KeyPhoto:         "None",
	}, got)

	require.Len(t, pub.events, 2)
	assert.Equal(t, EventUpdated, pub.events[1].Kind)
	assert.Equal(t, "Old title", pub.events[1].Changes[models.KeyTitle])
}

func TestService_ProcessChat_Unchanged(t *testing.T) {
	svc, repo := setupService(t, nil, nil)
	ctx := context.Background()

	chat := channel(-1001, "Same", "same", 5)
	_, err := svc.ProcessChat(ctx, &chat, 3, []byte("p"))
	require.NoError(t, err)

	// a missing photo keeps the stored one
	outcome, err := svc.ProcessChat(ctx, &chat, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome)

	outcome, err = svc.ProcessChat(ctx, &chat, 3, []byte("p"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome)

	history, err := repo.History(ctx, -1001)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestService_Crawl(t *testing.T) {
	ctx := context.Background()
	tgClient := new(MockTGClient)
	pub := &MockPublisher{}
	svc, repo := setupService(t, tgClient, pub)

	withPhoto := channel(-1002, "With photo", "photo", 10)
	withPhoto.PhotoID = 9
	noMembers := channel(-1003, "Supergroup", "", 0)
	noMembers.Kind = telegram.KindSupergroup
	noMembers.MembersCount = nil

	chats := []telegram.Chat{
		channel(-1001, "Plain", "plain", 100),
		withPhoto,
		noMembers,
		{ID: 777, Kind: telegram.KindUser, Title: "me"},
	}
	tgClient.On("Dialogs", mock.Anything).Return(chats, nil)
	tgClient.On("HistoryCount", mock.Anything, int64(-1001)).Return(5, nil)
	tgClient.On("HistoryCount", mock.Anything, int64(-1002)).Return(0, errors.New("flood"))
	tgClient.On("HistoryCount", mock.Anything, int64(-1003)).Return(7, nil)
	tgClient.On("DownloadPhoto", mock.Anything, int64(-1002)).Return([]byte("img"), nil)
	tgClient.On("MembersCount", mock.Anything, int64(-1003)).Return(ptr(33), nil)

	result, err := svc.Crawl(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Added)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Errors)
	tgClient.AssertExpectations(t)

	g, err := repo.GetByChannelID(ctx, -1002)
	require.NoError(t, err)
	assert.Equal(t, 0, *g.MessagesCount, "history errors count as zero messages")

	g, err = repo.GetByChannelID(ctx, -1003)
	require.NoError(t, err)
	assert.Equal(t, 33, *g.MembersCount)

	self, err := repo.GetByChannelID(ctx, 777)
	require.NoError(t, err)
	assert.Nil(t, self)

	for _, e := range pub.events {
		assert.Equal(t, result.RunID, e.RunID)
	}

	// second run sees the same data
	result, err = svc.Crawl(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Unchanged)
	assert.NotEqual(t, pub.events[0].RunID, result.RunID)
}

func TestService_Crawl_DialogsError(t *testing.T) {
	tgClient := new(MockTGClient)
	svc, _ := setupService(t, tgClient, nil)
	tgClient.On("Dialogs", mock.Anything).Return(nil, telegram.ErrNotAuthorized)

	_, err := svc.Crawl(context.Background())
	assert.ErrorIs(t, err, telegram.ErrNotAuthorized)
}

func TestService_Crawl_PublisherErrorIgnored(t *testing.T) {
	tgClient := new(MockTGClient)
	pub := &MockPublisher{err: errors.New("nats down")}
	svc, _ := setupService(t, tgClient, pub)

	tgClient.On("Dialogs", mock.Anything).Return([]telegram.Chat{channel(-1001, "a", "", 1)}, nil)
	tgClient.On("HistoryCount", mock.Anything, int64(-1001)).Return(1, nil)

	result, err := svc.Crawl(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Added)
	assert.Zero(t, result.Errors)
}

func TestService_Crawl_MembersErrorKeepsStoredCount(t *testing.T) {
	ctx := context.Background()
	tgClient := new(MockTGClient)
	svc, repo := setupService(t, tgClient, nil)

	require.NoError(t, repo.Create(ctx, &models.Group{
		ChannelID:     -1003,
		TimeAdded:     100,
		TimeUpdated:   100,
		Title:         "Supergroup",
		MembersCount:  ptr(50),
		MessagesCount: ptr(7),
	}))

	chat := channel(-1003, "Supergroup", "", 0)
	chat.Kind = telegram.KindSupergroup
	chat.MembersCount = nil

	tgClient.On("Dialogs", mock.Anything).Return([]telegram.Chat{chat}, nil)
	tgClient.On("HistoryCount", mock.Anything, int64(-1003)).Return(7, nil)
	tgClient.On("MembersCount", mock.Anything, int64(-1003)).Return(nil, errors.New("CHANNEL_PRIVATE"))

	result, err := svc.Crawl(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Unchanged)

	g, err := repo.GetByChannelID(ctx, -1003)
	require.NoError(t, err)
	require.NotNil(t, g.MembersCount)
	assert.Equal(t, 50, *g.MembersCount)

	history, err := repo.History(ctx, -1003)
	require.NoError(t, err)
	assert.Empty(t, history)
}
