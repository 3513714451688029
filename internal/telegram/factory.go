package telegram

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/sessionMaker"
	"github.com/gotd/td/session"
	"github.com/gotd/td/session/tdesktop"
	"gorm.io/gorm"

	"github.com/blockedby/channel-map/internal/config"
)

// sessionsTable is where gotgproto's SqlSession keeps the auth key.
const sessionsTable = "sessions"

// NewPersistentClient creates a gotgproto client for the crawler account.
// TG_SESSION_STRING wins when set; otherwise the session lives in the
// database next to the crawled groups.
func NewPersistentClient(cfg *config.Config, db *gorm.DB) (*gotgproto.Client, error) {
	if err := cfg.ValidateTelegram(); err != nil {
		return nil, err
	}

	client, err := gotgproto.NewClient(
		cfg.TGApiID,
		cfg.TGApiHash,
		gotgproto.ClientTypePhone(cfg.TGPhone),
		clientOpts(cfg, db),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram client: %w", err)
	}

	return client, nil
}

func clientOpts(cfg *config.Config, db *gorm.DB) *gotgproto.ClientOpts {
	opts := &gotgproto.ClientOpts{
		DisableCopyright: true,
	}
	if cfg.TGSessionString != "" {
		opts.Session = sessionMaker.StringSession(cfg.TGSessionString)
		opts.InMemory = true
		return opts
	}
	opts.Session = sessionMaker.SqlSession(db.Dialector)
	return opts
}

// HasSession reports whether a login was already stored in db.
func HasSession(db *gorm.DB) bool {
	if !db.Migrator().HasTable(sessionsTable) {
		return false
	}
	var count int64
	if err := db.Table(sessionsTable).Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}

// ImportDesktopSession copies the auth key of a Telegram Desktop account
// into db, so the crawler can reuse an existing login.
func ImportDesktopSession(db *gorm.DB, account tdesktop.Account) error {
	data, err := session.TDesktopSession(account)
	if err != nil {
		return fmt.Errorf("convert tdata session: %w", err)
	}
	return SaveSession(db, data)
}

// DesktopDataPath returns the default Telegram Desktop data directory.
func DesktopDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Telegram Desktop", "tdata")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "Telegram Desktop", "tdata")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "TelegramDesktop", "tdata")
	}
}
