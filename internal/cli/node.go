package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/claimgraph/internal/cache"
	"github.com/ppiankov/claimgraph/internal/model"
	"github.com/ppiankov/claimgraph/internal/repo"
)

var nodeTimeout time.Duration

// nodeCmd represents the node command
var nodeCmd = &cobra.Command{
	Use:   "node <id> [id...]",
	Short: "Show claim details",
	Long: `Node loads one or more claims by id and prints their details. Ids are
fetched concurrently; an id the server cannot return is reported as not
found without failing the others.

Example:
  claimgraph node n42
  claimgraph node n1 n2 n3`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		logger := newLogger(verbose)

		ctx, cancel := context.WithTimeout(context.Background(), nodeTimeout)
		defer cancel()

		client, err := newClient(cfg, logger, nil)
		if err != nil {
			return err
		}
		found, missing := resolveNodes(ctx, client, cfg, logger, args)
		if err := printNodes(cmd.OutOrStdout(), found, missing); err != nil {
			return err
		}
		if len(found) == 0 {
			return fmt.Errorf("no node found for %s", strings.Join(missing, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(nodeCmd)

	nodeCmd.Flags().DurationVar(&nodeTimeout, "timeout", 30*time.Second, "request timeout")
}

// resolveNodes looks ids up through a resolver. found keeps the order of
// ids; missing lists the ids that resolved to absent.
func resolveNodes(ctx context.Context, fetcher repo.NodeFetcher, cfg *model.Config, logger *slog.Logger, ids []string) (found []model.ClaimNode, missing []string) {
	resolver := repo.NewResolver(repo.New(), fetcher,
		repo.WithMissCache(cache.NewMemoryCache(cfg.Cache.MissTTL, time.Minute), cfg.Cache.MissTTL),
		repo.WithWorkers(cfg.HTTP.FetchWorkers),
		repo.WithLogger(logger),
	)
	nodes := resolver.ResolveMany(ctx, ids)
	for _, id := range ids {
		if n, ok := nodes[id]; ok {
			found = append(found, n)
		} else {
			missing = append(missing, id)
		}
	}
	return found, missing
}

func printNodes(w io.Writer, found []model.ClaimNode, missing []string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, n := range found {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		nodeType := string(n.NodeType)
		if nodeType == "" {
			nodeType = "-"
		}
		fmt.Fprintf(tw, "ID:\t%s\n", n.ID)
		fmt.Fprintf(tw, "Claim:\t%s\n", n.Claim)
		if n.Description != "" {
			fmt.Fprintf(tw, "Description:\t%s\n", n.Description)
		}
		fmt.Fprintf(tw, "Type:\t%s\n", nodeType)
		fmt.Fprintf(tw, "Status:\t%s\n", n.Status)
		fmt.Fprintf(tw, "Confidence:\t%.2f\n", n.Confidence)
		fmt.Fprintf(tw, "Importance:\t%.2f\n", n.Importance)
		if n.EvidenceCount > 0 {
			fmt.Fprintf(tw, "Evidence:\t%d\n", n.EvidenceCount)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, id := range missing {
		if _, err := fmt.Fprintf(w, "%s: not found\n", id); err != nil {
			return err
		}
	}
	return nil
}
