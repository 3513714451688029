package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/gotd/td/session/tdesktop"
	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	"github.com/blockedby/channel-map/internal/config"
	"github.com/blockedby/channel-map/internal/database"
	"github.com/blockedby/channel-map/internal/logger"
	"github.com/blockedby/channel-map/internal/telegram"
)

// auth methods
const (
	methodQR    = "qr"
	methodTData = "tdata"
	methodPhone = "phone"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var (
		method    string
		tdataPath string
	)

	cmd := &cobra.Command{
		Use:           "tg-auth",
		Short:         "Log the crawler account in and store its session",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), method, tdataPath)
		},
	}
	cmd.Flags().StringVarP(&method, "method", "m", methodQR, "auth method: qr, tdata or phone")
	cmd.Flags().StringVar(&tdataPath, "tdata", "", "telegram desktop tdata directory (tdata method)")

	return cmd
}

func run(ctx context.Context, method, tdataPath string) error {
	fmt.Println("=== telegram auth tool ===")
	fmt.Println("the session is stored in the database used by the crawler")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	promptCredentials(cfg, reader)
	if err := cfg.ValidateTelegram(); err != nil {
		return err
	}
	// a string session would shadow the one we are about to store
	cfg.TGSessionString = ""

	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	mgr := telegram.NewManager(cfg, db.GORM)
	defer mgr.Stop()

	switch method {
	case methodQR:
		err = authWithQR(ctx, mgr)
	case methodTData:
		err = authWithTData(ctx, mgr, db, tdataPath, reader)
	case methodPhone:
		err = authWithPhone(ctx, mgr, cfg, reader)
	default:
		return fmt.Errorf("unknown auth method %q", method)
	}
	if err != nil {
		return err
	}

	if mgr.Status() != telegram.StatusReady {
		return errors.New("session stored but the client is not ready")
	}

	fmt.Println("\n✓ authentication successful!")
	if self := mgr.Self(); self != nil {
		fmt.Printf("logged in as: @%s (id %d)\n", self.Username, self.ID)
		fmt.Printf("set TG_USER_ID=%d to skip your own dialog while crawling\n", self.ID)
	}

	sessionString, err := mgr.ExportSession()
	if err != nil {
		fmt.Printf("could not export session string: %v\n", err)
		return nil
	}
	fmt.Println("\nsession string (optional, for TG_SESSION_STRING):")
	fmt.Println("---")
	fmt.Println(sessionString)
	fmt.Println("---")
	fmt.Println("\n⚠️  keep this secret! it provides full access to your telegram account")
	return nil
}

// authWithQR prints every login token as a QR code until it is scanned.
func authWithQR(ctx context.Context, mgr *telegram.Manager) error {
	fmt.Println("open Telegram on your phone: Settings > Devices > Link Desktop Device")
	fmt.Println("and scan the code below (it refreshes every 30 seconds)")

	return mgr.StartQR(ctx, func(url string) {
		fmt.Println()
		qrterminal.GenerateHalfBlock(url, qrterminal.L, os.Stdout)
	})
}

// authWithTData imports a Telegram Desktop login.
func authWithTData(ctx context.Context, mgr *telegram.Manager, db *database.DB, path string, reader *bufio.Reader) error {
	if path == "" {
		path = telegram.DesktopDataPath()
	}

	accounts, err := tdesktop.Read(path, nil)
	if err != nil || len(accounts) == 0 {
		fmt.Printf("no telegram desktop session found at: %s\n", path)
		fmt.Print("enter telegram desktop path: ")
		custom, _ := reader.ReadString('\n')
		custom = strings.TrimSpace(custom)
		if custom == "" {
			return errors.New("no telegram desktop session")
		}
		if !strings.HasSuffix(custom, "tdata") {
			custom = filepath.Join(custom, "tdata")
		}
		accounts, err = tdesktop.Read(custom, nil)
		if err != nil {
			return fmt.Errorf("read tdata: %w", err)
		}
		if len(accounts) == 0 {
			return errors.New("no accounts in tdata")
		}
	}

	account := accounts[0]
	if len(accounts) > 1 {
		fmt.Printf("\nfound %d telegram accounts\n", len(accounts))
		fmt.Print("select account number [1]: ")
		choice, _ := reader.ReadString('\n')
		if n, err := strconv.Atoi(strings.TrimSpace(choice)); err == nil && n >= 1 && n <= len(accounts) {
			account = accounts[n-1]
		}
	}

	if err := telegram.ImportDesktopSession(db.GORM, account); err != nil {
		return err
	}
	return mgr.Init(ctx)
}

// authWithPhone logs in with a code sent to the phone. gotgproto prompts
// for the code on stdin.
func authWithPhone(ctx context.Context, mgr *telegram.Manager, cfg *config.Config, reader *bufio.Reader) error {
	if cfg.TGPhone == "" {
		fmt.Print("enter your phone number (with country code, e.g. +1234567890): ")
		phone, _ := reader.ReadString('\n')
		cfg.TGPhone = strings.TrimSpace(phone)
	}
	if cfg.TGPhone == "" {
		return errors.New("phone number is required")
	}

	fmt.Println("\nauthenticating... (check telegram for code)")
	return mgr.Login(ctx)
}

// promptCredentials asks for the API credentials missing from the env.
func promptCredentials(cfg *config.Config, reader *bufio.Reader) {
	if cfg.TGApiID == 0 {
		fmt.Print("enter your api_id (from https://my.telegram.org): ")
		raw, _ := reader.ReadString('\n')
		if id, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			cfg.TGApiID = id
		}
	}
	if cfg.TGApiHash == "" {
		fmt.Print("enter your api_hash: ")
		raw, _ := reader.ReadString('\n')
		cfg.TGApiHash = strings.TrimSpace(raw)
	}
}
