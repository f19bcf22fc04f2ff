package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kindexlab/kindex/internal/engine"
	"github.com/spf13/cobra"
)

var (
	retrieveSeeds    []string
	retrieveHops     int
	retrieveAudience string
	retrieveTier     string
	retrieveBudget   int
	retrieveLimit    int
	retrieveJSON     bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Query the graph and print a tier-formatted context block",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRetrieve,
}

func init() {
	retrieveCmd.Flags().StringSliceVar(&retrieveSeeds, "seed", nil, "traversal seed node (id or title, repeatable)")
	retrieveCmd.Flags().IntVar(&retrieveHops, "hops", 0, "max traversal hops (0 = configured default)")
	retrieveCmd.Flags().StringVar(&retrieveAudience, "audience", "", "requester scope: private, team, org or public")
	retrieveCmd.Flags().StringVar(&retrieveTier, "tier", "", "explicit tier: full, abridged, summarized, executive or index")
	retrieveCmd.Flags().IntVar(&retrieveBudget, "budget", 0, "available token budget for auto tier selection")
	retrieveCmd.Flags().IntVar(&retrieveLimit, "limit", 0, "surfaced results (0 = configured default)")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "scores", false, "print ranked results with scores instead of the block")
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	eng := engine.New(db, cfg)
	if cfg.Embedding.Enabled && engine.ProbeOllama(cfg.Embedding.OllamaURL, cfg.Embedding.Model) {
		eng.SetEmbedder(engine.NewOllamaEmbedder(cfg.Embedding.OllamaURL, cfg.Embedding.Model, 768))
	}

	query := ""
	if len(args) > 0 {
		query = args[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := eng.Retrieve(ctx, engine.RetrieveOpts{
		Query:       query,
		Seeds:       retrieveSeeds,
		MaxHops:     retrieveHops,
		Audience:    retrieveAudience,
		Tier:        engine.Tier(retrieveTier),
		TokenBudget: retrieveBudget,
		Limit:       retrieveLimit,
	})
	if err != nil {
		return err
	}

	if retrieveJSON {
		fmt.Printf("tier: %s\n", result.Tier)
		for i, r := range result.Results {
			edges := make([]string, 0, len(r.Edges))
			for _, e := range r.Edges {
				edges = append(edges, e.Type)
			}
			fmt.Printf("%2d. %-40s %.4f  [%s]\n", i+1, r.Node.Title, r.Score, strings.Join(edges, ","))
		}
		return nil
	}

	fmt.Println(result.Block)
	return nil
}
