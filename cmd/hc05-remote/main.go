package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/chaz8081/hc05-remote/internal/ble"
	"github.com/chaz8081/hc05-remote/internal/bluez"
	"github.com/chaz8081/hc05-remote/internal/config"
	"github.com/chaz8081/hc05-remote/internal/console"
	"github.com/chaz8081/hc05-remote/internal/permission"
	"github.com/chaz8081/hc05-remote/internal/remote"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/hc05-remote/config.yaml)")
	message := flag.String("message", "Hello Arduino", "text to send; empty reads one message per line from stdin")
	degrees := flag.Int("degrees", 10, "rotation picker label (kept locally, not transmitted)")
	initConfig := flag.Bool("init-config", false, "write the default config file and exit")
	flag.Parse()

	if *initConfig {
		path, err := config.WriteDefault()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		if path == "" {
			log.Printf("Config already exists at %s", config.DefaultConfigPath())
			return
		}
		log.Printf("Wrote default config to %s", path)
		return
	}

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	})))

	selection := remote.NewSelection()
	if err := selection.Select(*degrees); err != nil {
		log.Fatalf("degrees: %v", err)
	}

	printBanner(cfg, selection.Value())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Permission gate. A denial is reported but does not stop the workflow.
	if permission.NewGate(permission.Host(cfg.Permission.Package)).Authorize(ctx) {
		log.Println("Permissions granted")
	} else {
		log.Println("Permissions denied")
	}

	// Initialize BLE provider
	states, closeStates := newStateSource(cfg)
	defer closeStates()

	opts := ble.DefaultManagerOptions()
	opts.MaxByteSize = cfg.Transport.MaxByteSize
	manager := ble.NewManager(ble.NewTinyGoAdapter(), states, opts)
	if err := manager.Start(); err != nil {
		log.Printf("ERROR: BLE manager initialization failed: %v", err)
	} else {
		log.Println("BLE manager initialized")
	}
	defer manager.Close()

	unwatch := manager.OnStateChange(func(st ble.AdapterState) {
		log.Printf("Bluetooth is %s", st)
	})
	defer unwatch()

	if st, err := manager.CheckState(ctx); err != nil {
		slog.Warn("[MAIN] adapter state unavailable", "error", err)
	} else {
		log.Printf("Bluetooth is %s", st)
	}

	session := remote.NewSession(manager, remote.OptionsFromConfig(cfg))
	unsubscribe := session.Subscribe(func(st remote.State) {
		slog.Debug("[MAIN] session state", "state", st.String())
	})
	defer unsubscribe()

	shutdown := func() {
		stop()
		session.Wait()
	}

	session.Connect(ctx)
	log.Printf("Session: %s", session.State())

	if *message != "" {
		session.Send(ctx, *message)
		shutdown()
		return
	}

	log.Println("Ready! Type a message and press Enter to send. Ctrl+C to quit.")

	n, err := console.Pump(ctx, os.Stdin, session)
	if err != nil && ctx.Err() == nil {
		log.Printf("ERROR: %v", err)
	}
	log.Printf("Shutting down after %d message(s)...", n)
	shutdown()
}

// newStateSource watches BlueZ on Linux and falls back to a static state
// elsewhere or when BlueZ is unreachable.
func newStateSource(cfg *config.Config) (ble.StateSource, func()) {
	if runtime.GOOS != "linux" {
		return ble.StaticState(ble.StateOn), func() {}
	}
	src, err := bluez.New(cfg.BlueZ.Adapter)
	if err != nil {
		slog.Warn("[MAIN] BlueZ state unavailable, assuming adapter is on", "error", err)
		return ble.StaticState(ble.StateOn), func() {}
	}
	return src, func() { _ = src.Close() }
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	log.Println("No config file found, using defaults")
	return config.Default(), nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config, degrees int) {
	char := cfg.Device.CharacteristicUUID
	if char == "" {
		char = "(none)"
	}
	fmt.Println("=== hc05-remote ===")
	fmt.Printf("  Device:   %s\n", cfg.Device.Name)
	fmt.Printf("  Service:  %s\n", cfg.Device.ServiceUUID)
	fmt.Printf("  Char:     %s\n", char)
	fmt.Printf("  Scan:     %ds, read after %s\n", cfg.Discovery.ScanSeconds, cfg.Discovery.Delay)
	fmt.Printf("  Degrees:  %d\n", degrees)
	fmt.Printf("  Log:      %s\n", cfg.LogLevel)
	fmt.Println("===================")
}
