package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/claimgraph/internal/focus"
	"github.com/ppiankov/claimgraph/internal/layout"
	"github.com/ppiankov/claimgraph/internal/model"
	"github.com/ppiankov/claimgraph/internal/render"
)

var (
	layoutFormat   string
	layoutOut      string
	layoutSelect   string
	layoutQuery    string
	layoutFocus    bool
	layoutTimeout  time.Duration
	layoutStrategy string
	layoutMinConf  float64
)

// layoutCmd represents the layout command
var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Fetch the tree once and write the laid out graph",
	Long: `Layout fetches the workspace tree, positions every node and writes the
result as JSON (nodes with coordinates and flags, edges) or as an SVG image.

Example:
  claimgraph layout --format svg --out graph.svg
  claimgraph layout --strategy rows --min-confidence 0.4 --select n7 --focus`,
	Args: cobra.NoArgs,
	RunE: runLayout,
}

func init() {
	rootCmd.AddCommand(layoutCmd)

	layoutCmd.Flags().StringVarP(&layoutFormat, "format", "f", "json", "output format (json, svg)")
	layoutCmd.Flags().StringVarP(&layoutOut, "out", "o", "", "output path (default: stdout)")
	layoutCmd.Flags().StringVar(&layoutSelect, "select", "", "selected node id")
	layoutCmd.Flags().StringVar(&layoutQuery, "query", "", "search text")
	layoutCmd.Flags().BoolVar(&layoutFocus, "focus", false, "dim nodes off the selected node's path")
	layoutCmd.Flags().DurationVar(&layoutTimeout, "timeout", time.Minute, "overall fetch timeout")
	layoutCmd.Flags().StringVar(&layoutStrategy, "strategy", "", "layout strategy (subtree, rows)")
	layoutCmd.Flags().Float64Var(&layoutMinConf, "min-confidence", 0, "hide nodes below this confidence")
	_ = viper.BindPFlag("layout.strategy", layoutCmd.Flags().Lookup("strategy"))
	_ = viper.BindPFlag("layout.min_confidence", layoutCmd.Flags().Lookup("min-confidence"))
}

func runLayout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	logger := newLogger(verbose)

	ctx, cancel := context.WithTimeout(context.Background(), layoutTimeout)
	defer cancel()

	client, err := newClient(cfg, logger, nil)
	if err != nil {
		return err
	}
	forest, err := client.FetchTree(ctx, cfg.Layout.MaxDepth)
	if err != nil {
		return fmt.Errorf("layout failed: %w", err)
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Fetched %d nodes in %d trees\n", forest.Count(), len(forest))
	}

	view, err := buildView(forest, cfg, focus.Query{
		Search:     layoutQuery,
		SelectedID: layoutSelect,
		FocusMode:  layoutFocus || cfg.Focus.FocusMode,
	})
	if err != nil {
		return err
	}

	write := func(w io.Writer) error {
		return writeView(w, layoutFormat, view, cfg.Server.WorkspaceID)
	}
	if layoutOut == "" {
		return write(cmd.OutOrStdout())
	}
	if err := writeAtomic(layoutOut, write); err != nil {
		return fmt.Errorf("write %s: %w", layoutOut, err)
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Wrote %s: %s\n", layoutFormat, layoutOut)
	}
	return nil
}

func buildView(forest model.Forest, cfg *model.Config, q focus.Query) (focus.View, error) {
	strategy, err := layout.ParseStrategy(cfg.Layout.Strategy)
	if err != nil {
		return focus.View{}, err
	}
	g := layout.Compute(forest, layout.Options{Strategy: strategy, MinConfidence: cfg.Layout.MinConfidence})
	return focus.Apply(g, q), nil
}

func writeView(w io.Writer, format string, v focus.View, workspace string) error {
	switch format {
	case "json":
		return render.JSON(w, v, workspace, nil)
	case "svg":
		return render.SVG(w, v, "workspace "+workspace)
	default:
		return fmt.Errorf("unknown format %q (want json or svg)", format)
	}
}
