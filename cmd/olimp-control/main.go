// ABOUTME: Entry point for the olimp-control agent
// ABOUTME: Polls the control server for tickets, runs them, and reports results until signalled

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/lmio/olimp-control/internal/config"
	"github.com/lmio/olimp-control/internal/dedupe"
	"github.com/lmio/olimp-control/internal/executor"
	"github.com/lmio/olimp-control/internal/hostinfo"
	"github.com/lmio/olimp-control/internal/poller"
	"github.com/lmio/olimp-control/internal/transport"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const banner = `
       _ _                                  _             _
  ___ | (_)_ __ ___  _ __         ___ ___ _ __ | |_ _ __ ___ | |
 / _ \| | | '_ ' _ \| '_ \ _____ / __/ _ \| '_ \| __| '__/ _ \| |
| (_) | | | | | | | | |_) |_____| (_| (_) | | | | |_| | | (_) | |
 \___/|_|_|_| |_| |_| .__/       \___\___/|_| |_|\__|_|  \___/|_|
                    |_|
`

func main() {
	fs := pflag.NewFlagSet("olimp-control", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: olimp-control [flags] [url]\n\n")
		fmt.Fprintf(os.Stderr, "Polls the control server at url (default %s) for tickets.\n\n", config.DefaultURL)
		fs.PrintDefaults()
	}
	flags := config.RegisterFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	if flags.Version {
		fmt.Println(version)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, flags, fs.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

func run(ctx context.Context, flags *config.Flags, args []string) error {
	configPath := flags.ResolveConfigPath()

	cfg, err := config.Load(configPath, flags.Override(args))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stdout)
	slog.SetDefault(logger)

	key, err := config.ReadKey(cfg.Agent.KeyFile)
	if err != nil {
		return err
	}

	machineID := cfg.Agent.MachineID
	if machineID == "" {
		machineID, err = hostinfo.MachineID()
		if err != nil {
			return fmt.Errorf("deriving machine id: %w", err)
		}
	}

	switcher, err := executor.NewSwitcher(cfg.Executor.Method, cfg.Executor.SuPath, cfg.Executor.Shell)
	if err != nil {
		return fmt.Errorf("configuring executor: %w", err)
	}

	if cfg.Logging.Format != "json" {
		printStartup(configPath, cfg, machineID)
	}
	if !hostinfo.IsRoot() {
		logger.Warn("not running as root, switching users will likely fail")
	}

	client := transport.New(transport.Config{
		BaseURL: cfg.Server.URL,
		Credentials: transport.Credentials{
			Secret:    key,
			MachineID: machineID,
		},
		Timeout: cfg.Server.Timeout,
	}, logger)

	var opts []poller.Option
	if cfg.Agent.ReplayWindow > 0 {
		opts = append(opts, poller.WithReplayGuard(dedupe.New(cfg.Agent.ReplayWindow, dedupe.DefaultMaxSize)))
	}

	dialer := poller.DialerFunc(func(l *slog.Logger) poller.Session {
		return client.NewSession(l)
	})
	loop := poller.New(dialer, executor.New(switcher, logger), cfg.Agent.PollFrequency, logger, opts...)

	logger.Info("olimp-control starting",
		"version", version,
		"url", cfg.Server.URL,
		"machine_id", machineID,
		"poll_frequency", cfg.Agent.PollFrequency,
		"timeout", cfg.Server.Timeout,
	)
	return loop.Run(ctx)
}

func printStartup(configPath string, cfg *config.Config, machineID string) {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	green := color.New(color.FgGreen)
	if configPath == "" {
		configPath = "(defaults)"
	}

	for _, line := range [][2]string{
		{"Config:", configPath},
		{"Server:", cfg.Server.URL},
		{"Machine:", machineID},
		{"Interval:", cfg.Agent.PollFrequency.String()},
		{"Executor:", cfg.Executor.Method},
	} {
		green.Print("    ▶ ")
		fmt.Printf("%-10s %s\n", line[0], line[1])
	}
	fmt.Println()
}
