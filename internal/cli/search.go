package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/claimgraph/internal/api"
)

var (
	searchLimit   int
	searchTimeout time.Duration
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search claims on the server",
	Long: `Search runs a ranked server-side search over claims and descriptions.

Example:
  claimgraph search "ocean heat" --limit 5`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
		defer cancel()

		client, err := newClient(cfg, newLogger(verbose), nil)
		if err != nil {
			return err
		}
		query := strings.Join(args, " ")
		hits, err := client.SearchNodes(ctx, query, searchLimit)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		return printHits(cmd.OutOrStdout(), hits)
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "maximum results")
	searchCmd.Flags().DurationVar(&searchTimeout, "timeout", 30*time.Second, "request timeout")
}

func printHits(w io.Writer, hits []api.SearchHit) error {
	if len(hits) == 0 {
		_, err := fmt.Fprintln(w, "No matching claims.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tID\tCONF\tTYPE\tCLAIM")
	for _, h := range hits {
		nodeType := string(h.Node.NodeType)
		if nodeType == "" {
			nodeType = "-"
		}
		fmt.Fprintf(tw, "%.3f\t%s\t%.2f\t%s\t%s\n", h.Score, h.Node.ID, h.Node.Confidence, nodeType, h.Node.Claim)
	}
	return tw.Flush()
}
