package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/claimgraph/internal/cache"
	"github.com/ppiankov/claimgraph/internal/cycle"
	"github.com/ppiankov/claimgraph/internal/focus"
	"github.com/ppiankov/claimgraph/internal/layout"
	"github.com/ppiankov/claimgraph/internal/pipeline"
	"github.com/ppiankov/claimgraph/internal/render"
	"github.com/ppiankov/claimgraph/internal/stream"
	"github.com/ppiankov/claimgraph/internal/telemetry"
)

var (
	watchSVG    string
	watchSelect string
	watchQuery  string
	watchJSONL  bool
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow research events and keep the graph up to date",
	Long: `Watch connects to the workspace event stream and prints every event with the
current run status. The tree is refreshed when nodes change and after a
reconnect.

With --svg the laid out graph is rewritten on every change. Editing the
config file while watching applies layout and focus settings live, and
SIGHUP reloads the tree from the server.

Example:
  claimgraph watch --svg graph.svg --select n42 --focus
  claimgraph watch --transport nats --metrics-addr :9464
  claimgraph watch --jsonl > events.jsonl`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchSVG, "svg", "", "rewrite this SVG file on every view change")
	watchCmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address")
	watchCmd.Flags().StringVar(&watchSelect, "select", "", "selected node id")
	watchCmd.Flags().StringVar(&watchQuery, "query", "", "search text")
	watchCmd.Flags().Bool("focus", false, "dim nodes off the selected node's path")
	watchCmd.Flags().BoolVar(&watchJSONL, "jsonl", false, "print events as JSON lines in wire form")
	_ = viper.BindPFlag("metrics.addr", watchCmd.Flags().Lookup("metrics-addr"))
	_ = viper.BindPFlag("focus.focus_mode", watchCmd.Flags().Lookup("focus"))
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	logger := newLogger(verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	if cfg.Metrics.Addr != "" {
		serveMetrics(ctx, cfg.Metrics.Addr, reg, logger)
	}

	transport, err := newTransport(cfg)
	if err != nil {
		return err
	}
	client, err := newClient(cfg, logger, metrics)
	if err != nil {
		return err
	}
	sess, err := pipeline.NewSession(cfg, transport, client,
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics),
		pipeline.WithMissCache(cache.NewMemoryCache(cfg.Cache.MissTTL, cfg.Cache.MemoryTTL)),
	)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	workspace := cfg.Server.WorkspaceID
	sess.Store().OnChange(func(snap cycle.Snapshot, ev stream.Event) {
		if err := printEvent(out, snap, ev, watchJSONL); err != nil {
			logger.Warn("printing event failed", "type", ev.Type, "error", err)
		}
	})
	// Keep stdout pure JSON lines in jsonl mode
	notices := out
	if watchJSONL {
		notices = cmd.ErrOrStderr()
	}
	sess.OnChannelState(func(st stream.State) {
		switch st {
		case stream.StateOpen:
			fmt.Fprintf(notices, "● connected to %s\n", workspace)
		case stream.StateReconnectScheduled, stream.StateGivenUp:
			fmt.Fprintf(notices, "○ disconnected (%s)\n", st)
		}
	})
	sess.OnViewChange(func(v focus.View) {
		if len(v.Nodes) == 0 {
			logger.Debug("no nodes yet")
		}
		if watchSVG == "" {
			return
		}
		if err := writeSVGFile(watchSVG, v, "workspace "+workspace); err != nil {
			logger.Warn("writing svg failed", "path", watchSVG, "error", err)
		}
	})

	if watchSelect != "" {
		sess.Select(watchSelect)
		go func() {
			n, ok := sess.Node(ctx, watchSelect)
			if !ok {
				logger.Warn("selected node not found", "id", watchSelect)
				return
			}
			fmt.Fprintf(os.Stderr, "Selected: %s %q (confidence %.2f)\n", n.ID, n.Claim, n.Confidence)
		}()
	}
	if watchQuery != "" {
		sess.SetSearch(watchQuery)
	}

	if viper.ConfigFileUsed() != "" {
		viper.OnConfigChange(func(e fsnotify.Event) {
			next, err := loadConfig(viper.GetViper())
			if err != nil {
				logger.Warn("ignoring config change", "file", e.Name, "error", err)
				return
			}
			strategy, err := layout.ParseStrategy(next.Layout.Strategy)
			if err != nil {
				logger.Warn("ignoring config change", "file", e.Name, "error", err)
				return
			}
			logger.Info("config reloaded", "file", e.Name)
			sess.SetStrategy(strategy)
			sess.SetMinConfidence(next.Layout.MinConfidence)
			sess.SetFocusMode(next.Focus.FocusMode)
		})
		viper.WatchConfig()
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				logger.Info("reloading tree")
				sess.Refresh()
			}
		}
	}()

	if verbose {
		endpoint, _ := pipeline.Endpoint(cfg)
		fmt.Fprintf(os.Stderr, "Watching: %s (%s)\n", endpoint, cfg.Server.Transport)
		fmt.Fprintf(os.Stderr, "Layout: %s, min confidence %.2f\n\n", cfg.Layout.Strategy, cfg.Layout.MinConfidence)
	}

	err = sess.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// printEvent writes one event as a status line or, with jsonl, in wire form
func printEvent(w io.Writer, snap cycle.Snapshot, ev stream.Event, jsonl bool) error {
	if jsonl {
		raw, err := stream.Encode(ev)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", raw)
		return err
	}
	_, err := fmt.Fprintf(w, "%-20s %-60s [%s]\n", ev.Type, render.Describe(ev), render.StatusLine(snap.Status))
	return err
}

// writeSVGFile replaces path atomically so viewers never read half a file
func writeSVGFile(path string, v focus.View, title string) error {
	return writeAtomic(path, func(w io.Writer) error {
		return render.SVG(w, v, title)
	})
}

func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".claimgraph-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
