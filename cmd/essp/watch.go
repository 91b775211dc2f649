package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/essp/internal/device"
	"github.com/muurk/essp/internal/logging"
	"github.com/muurk/essp/internal/monitor"
	"github.com/muurk/essp/internal/ui"
)

// Watch and discover flags
var (
	watchTUI      bool
	monitorAddr   string
	announceName  string
	watchDuration time.Duration
	scanTimeout   time.Duration
)

func init() {
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(discoverCmd)

	watchCmd.Flags().BoolVar(&watchTUI, "tui", false, "Show a live dashboard")
	watchCmd.Flags().StringVar(&monitorAddr, "monitor", "", "Serve poll results over WebSocket on this address (e.g. :8080)")
	watchCmd.Flags().StringVar(&announceName, "announce", "", "Advertise the monitor over mDNS under this instance name")
	watchCmd.Flags().DurationVar(&watchDuration, "for", 0, "Stop after this long (0 = until interrupted)")

	discoverCmd.Flags().DurationVar(&scanTimeout, "scan-timeout", monitor.DefaultScanTimeout, "How long to listen for monitors")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll continuously and show events",
	Long: `Start the background poller and show every result until interrupted.

The poller keeps the device's poll watchdog satisfied. Results can be shown
as plain lines, in a dashboard (--tui), or served to WebSocket clients
(--monitor) and advertised on the local network (--announce).`,
	Example: `  # Print events as they arrive
  essp watch --device hopper

  # Encrypted dashboard
  essp watch --device hopper --encrypt --tui

  # Serve results to other machines
  essp watch --device hopper --monitor :8080 --announce till-3`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	if announceName != "" && monitorAddr == "" {
		return errors.New("--announce needs --monitor")
	}
	if watchTUI && !ui.IsTerminal() {
		return errors.New("--tui needs an interactive terminal")
	}

	p := ui.NewPrinter(os.Stdout)
	t, err := openTarget()
	if err != nil {
		p.PrintError("Watch failed", err, device.GetTroubleshootingHint(err))
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if watchDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, watchDuration)
		defer cancel()
	}

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
		defer cancel()
		t.close(closeCtx)
	}()

	if err := t.prepare(ctx, false); err != nil {
		p.PrintError("Key exchange failed", err, device.GetTroubleshootingHint(err))
		return err
	}

	if monitorAddr != "" {
		if err := startMonitor(ctx, t); err != nil {
			return err
		}
	}

	results, unsubscribe := t.session.Subscribe(16)
	defer unsubscribe()

	if err := t.session.StartBackgroundPolling(ctx); err != nil {
		return err
	}
	defer t.session.StopBackgroundPolling()

	if watchTUI {
		return ui.RunDashboard(ctx, ui.DashboardConfig{
			Device:   t.displayName(),
			Port:     t.label,
			Interval: t.session.Config().PollInterval,
		}, results)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case r, ok := <-results:
			if !ok {
				return nil
			}
			printResult(r)
		}
	}
}

func printResult(r device.PollResult) {
	ts := r.Time.Format("15:04:05.000")
	if r.Err != nil {
		fmt.Printf("%s  error  %s\n", ts, device.GetShortErrorMessage(r.Err))
		return
	}
	mode := "plain"
	if r.Encrypted {
		mode = "enc"
	}
	fmt.Printf("%s  %-5s  %s\n", ts, mode, r.Response)
}

// startMonitor serves poll results over WebSocket until ctx is done.
func startMonitor(ctx context.Context, t *target) error {
	hub := monitor.NewHub(monitor.WithDeviceName(t.displayName()))
	srv := monitor.NewServer(monitorAddr, hub)
	if err := srv.Listen(); err != nil {
		return err
	}

	results, unsubscribe := t.session.Subscribe(32)
	go func() {
		defer unsubscribe()
		hub.Run(ctx, results)
	}()
	go func() {
		if err := srv.Serve(ctx); err != nil {
			logging.Error("Monitor stopped", zap.Error(err))
		}
	}()

	if announceName == "" {
		return nil
	}
	a, err := monitor.Announce(announceName, srv.Port(), t.displayName())
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		a.Shutdown()
	}()
	return nil
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find essp monitors on the local network",
	Long: `Browse mDNS for monitors started with 'essp watch --monitor --announce'
and print their WebSocket endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Scanning for monitors (timeout: %s)...\n\n", scanTimeout)

		s := monitor.NewScanner()
		s.Timeout = scanTimeout
		peers, err := s.Browse(cmd.Context())
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		if len(peers) == 0 {
			fmt.Println("No monitors found.")
			fmt.Println("\nTroubleshooting:")
			fmt.Println("  - Start one with: essp watch --monitor :8080 --announce <name>")
			fmt.Println("  - Check that multicast is allowed on this network")
			fmt.Println("  - Try increasing --scan-timeout")
			return nil
		}

		fmt.Printf("Found %d monitor(s):\n\n", len(peers))
		for i, peer := range peers {
			fmt.Printf("%d. %s\n", i+1, peer.Instance)
			fmt.Printf("   Device:  %s\n", peer.Device)
			fmt.Printf("   URL:     %s\n", peer.URL())
			fmt.Println()
		}
		return nil
	},
}
