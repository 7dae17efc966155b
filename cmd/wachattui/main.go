package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/matheus3301/wachat/internal/bus"
	"github.com/matheus3301/wachat/internal/config"
	"github.com/matheus3301/wachat/internal/logging"
	"github.com/matheus3301/wachat/internal/reconcile"
	"github.com/matheus3301/wachat/internal/session"
	"github.com/matheus3301/wachat/internal/transport"
	"github.com/matheus3301/wachat/internal/tui"
	"github.com/matheus3301/wachat/internal/tui/client"
	"github.com/matheus3301/wachat/internal/tui/model"
	"go.uber.org/zap"
)

const processName = "wachattui"

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	serverFlag := flag.String("server", "", "daemon URL (default: read from the session lock)")
	noStart := flag.Bool("no-start", false, "do not start a local daemon when none is running")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "error: load .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadOrDefault(session.ConfigPath())
	if err == nil {
		err = cfg.ApplyEnv(os.LookupEnv)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: config: %v\n", err)
		os.Exit(1)
	}

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	serverURL := *serverFlag
	if serverURL == "" {
		serverURL = client.ServerURL(sessionName, cfg.Client.ServerURL)
	}

	// Check daemon health; auto-start if needed.
	ctx := context.Background()
	if !client.Alive(ctx, serverURL) && *serverFlag == "" && !*noStart {
		fmt.Fprintf(os.Stderr, "daemon not running for session %q, starting...\n", sessionName)
		if err := startDaemon(sessionName); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start daemon: %v\n", err)
			os.Exit(1)
		}
		serverURL, err = waitForDaemon(ctx, sessionName, cfg.Client.ServerURL, 10*time.Second)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	hubURL, err := transport.HubURL(serverURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewFileOnly(session.LogPath(sessionName, processName), sessionName, processName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("client starting", zap.String("server", serverURL), zap.String("hub", hubURL))

	b := bus.New()
	api := client.New(serverURL)
	tr := transport.New(transport.Options{
		URL:         hubURL,
		ClientName:  processName,
		BaseDelay:   cfg.Client.BaseDelay.Duration,
		MaxAttempts: cfg.Client.MaxAttempts,
		Bus:         b,
		Logger:      logger.Named("transport"),
	})
	layer := reconcile.New(reconcile.Options{
		Identity:  cfg.Identity.BusinessNumber,
		Persister: api,
		Logger:    logger.Named("reconcile"),
	})
	vm := model.NewViewModel(layer, tr, api, b)

	app := tui.NewApp(vm, tui.Options{Session: sessionName, Server: serverURL})
	if err := app.Run(); err != nil {
		logger.Error("tui exited", zap.Error(err))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("client stopped")
}

func startDaemon(sessionName string) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	wachatd := filepath.Join(filepath.Dir(executable), "wachatd")

	if _, err := os.Stat(wachatd); err != nil {
		wachatd = "wachatd"
	}

	cmd := exec.Command(wachatd, "--session", sessionName)
	// Inherit stderr so daemon startup errors are visible.
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

// waitForDaemon polls until the daemon has recorded its address and answers
// health checks.
func waitForDaemon(ctx context.Context, sessionName, fallback string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		url := client.ServerURL(sessionName, fallback)
		if client.Alive(ctx, url) {
			return url, nil
		}
		time.Sleep(300 * time.Millisecond)
	}
	return "", fmt.Errorf("daemon did not become ready within %s", timeout)
}
