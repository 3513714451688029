package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/storage"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth/qrlogin"
	"github.com/gotd/td/tg"
	"gorm.io/gorm"

	"github.com/blockedby/channel-map/internal/config"
	"github.com/blockedby/channel-map/internal/logger"
)

// Status represents the Telegram client status.
type Status string

// Status constants define the possible states of the Telegram client.
const (
	StatusInitializing Status = "INITIALIZING"
	StatusReady        Status = "READY"
	StatusUnauthorized Status = "UNAUTHORIZED"
)

// ErrQRInProgress is returned when a second QR login is started.
var ErrQRInProgress = errors.New("QR login already in progress")

// ClientFactory creates the persistent protocol client.
type ClientFactory func(cfg *config.Config, db *gorm.DB) (*gotgproto.Client, error)

// QRClient is a raw td client with the pieces a QR login needs.
type QRClient struct {
	Client     *telegram.Client
	Dispatcher *tg.UpdateDispatcher
	Storage    *session.StorageMemory
}

// QRClientFactory creates a client for the QR login flow.
type QRClientFactory func(cfg *config.Config) (*QRClient, error)

// NewQRClient creates a td client with in-memory session storage, so the
// login does not touch the database until it succeeds.
func NewQRClient(cfg *config.Config) (*QRClient, error) {
	if err := cfg.ValidateTelegram(); err != nil {
		return nil, err
	}

	dispatcher := tg.NewUpdateDispatcher()
	mem := &session.StorageMemory{}
	client := telegram.NewClient(cfg.TGApiID, cfg.TGApiHash, telegram.Options{
		SessionStorage: mem,
		UpdateHandler:  &dispatcher,
	})

	return &QRClient{Client: client, Dispatcher: &dispatcher, Storage: mem}, nil
}

// Manager owns the authorized client of the crawler account.
type Manager struct {
	cfg *config.Config
	db  *gorm.DB
	log *logger.Logger

	mu     sync.RWMutex
	proto  *gotgproto.Client
	status Status

	clientFactory   ClientFactory
	qrClientFactory QRClientFactory
	qrInProgress    atomic.Bool
}

// NewManager creates a new Telegram Manager.
func NewManager(cfg *config.Config, db *gorm.DB) *Manager {
	return &Manager{
		cfg:             cfg,
		db:              db,
		log:             logger.Get().Component("telegram"),
		status:          StatusInitializing,
		clientFactory:   NewPersistentClient,
		qrClientFactory: NewQRClient,
	}
}

// SetClientFactory overrides client creation (tests).
func (m *Manager) SetClientFactory(f ClientFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clientFactory = f
}

// SetQRClientFactory overrides QR client creation (tests).
func (m *Manager) SetQRClientFactory(f QRClientFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.qrClientFactory = f
}

// Status returns the current client status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Client returns a crawling client bound to the current session.
func (m *Manager) Client() *Client {
	m.mu.RLock()
	proto := m.proto
	m.mu.RUnlock()
	return NewClient(proto, NewRateLimiter(m.cfg.TGRps, 1))
}

// Init restores the session from TG_SESSION_STRING or the database.
// Without either the manager stays unauthorized and Init returns nil.
func (m *Manager) Init(ctx context.Context) error {
	m.setStatus(StatusInitializing)

	if m.cfg.TGSessionString == "" && !HasSession(m.db) {
		m.log.Info().Msg("telegram: no session stored, run tg-auth first")
		m.setStatus(StatusUnauthorized)
		return nil
	}

	if err := m.start(); err != nil {
		m.log.Warn().Err(err).Msg("telegram: failed to start client")
	}
	return nil
}

// Login starts the client without a stored session. With TG_PHONE set
// gotgproto asks for the login code on stdin and writes the new session
// to the database.
func (m *Manager) Login(_ context.Context) error {
	if m.Status() == StatusReady {
		return nil
	}
	m.setStatus(StatusInitializing)
	return m.start()
}

func (m *Manager) start() error {
	m.mu.RLock()
	factory := m.clientFactory
	m.mu.RUnlock()

	proto, err := factory(m.cfg, m.db)
	if err != nil {
		m.setStatus(StatusUnauthorized)
		return err
	}

	m.mu.Lock()
	m.proto = proto
	m.status = StatusReady
	m.mu.Unlock()

	m.log.Info().Msg("telegram: client is ready")
	return nil
}

// StartQR runs the QR login flow. onToken receives every login URL (they
// rotate every 30 seconds). Blocks until login succeeds or ctx is done,
// then stores the session in the database and re-runs Init.
func (m *Manager) StartQR(ctx context.Context, onToken func(url string)) error {
	if m.Status() == StatusReady {
		return errors.New("already logged in")
	}
	if !m.qrInProgress.CompareAndSwap(false, true) {
		return ErrQRInProgress
	}
	defer m.qrInProgress.Store(false)

	m.mu.RLock()
	factory := m.qrClientFactory
	m.mu.RUnlock()

	qc, err := factory(m.cfg)
	if err != nil {
		return fmt.Errorf("create QR client: %w", err)
	}

	var data *session.Data
	err = qc.Client.Run(ctx, func(ctx context.Context) error {
		loggedIn := qrlogin.OnLoginToken(qc.Dispatcher)
		if _, err := qc.Client.QR().Auth(ctx, loggedIn, func(_ context.Context, token qrlogin.Token) error {
			m.log.Info().Time("expires", token.Expires()).Msg("telegram: QR token generated")
			onToken(token.URL())
			return nil
		}); err != nil {
			return err
		}

		loader := session.Loader{Storage: qc.Storage}
		var err error
		data, err = loader.Load(ctx)
		return err
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return context.Canceled
		}
		return fmt.Errorf("QR auth flow failed: %w", err)
	}

	if err := SaveSession(m.db, data); err != nil {
		return err
	}
	m.log.Info().Msg("telegram: session saved")

	return m.Init(ctx)
}

// Self returns the logged in account, nil until ready.
func (m *Manager) Self() *tg.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.proto == nil {
		return nil
	}
	return m.proto.Self
}

// ExportSession returns the current session as a TG_SESSION_STRING value.
func (m *Manager) ExportSession() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.proto == nil {
		return "", ErrNotAuthorized
	}
	return m.proto.ExportStringSession()
}

// Stop stops the Telegram client.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.proto != nil {
		m.proto.Stop()
	}
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

// storedSession is the layout gotd's session.Loader reads back.
type storedSession struct {
	Version int
	Data    session.Data
}

// ConvertToGotgprotoSession wraps gotd session data into a gotgproto row.
func ConvertToGotgprotoSession(data *session.Data) (*storage.Session, error) {
	if data == nil {
		return nil, errors.New("session data is nil")
	}

	raw, err := json.Marshal(storedSession{Version: 1, Data: *data})
	if err != nil {
		return nil, fmt.Errorf("marshal session data: %w", err)
	}

	return &storage.Session{
		Version: storage.LatestVersion,
		Data:    raw,
	}, nil
}

// SaveSession stores a logged in session where SqlSession will find it.
func SaveSession(db *gorm.DB, data *session.Data) error {
	sess, err := ConvertToGotgprotoSession(data)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(&storage.Session{}); err != nil {
		return fmt.Errorf("migrate sessions: %w", err)
	}
	if err := db.Save(sess).Error; err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
