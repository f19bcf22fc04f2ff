package cli

import (
	"fmt"

	"github.com/kindexlab/kindex/internal/store"
	"github.com/spf13/cobra"
)

var (
	addType     string
	addContent  string
	addAKA      []string
	addDomains  []string
	addAudience string
	addWeight   float64
)

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a node to the graph",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addType, "type", "concept", "node type (concept, decision, question, constraint, ...)")
	addCmd.Flags().StringVar(&addContent, "content", "", "node body text")
	addCmd.Flags().StringSliceVar(&addAKA, "aka", nil, "alias (repeatable)")
	addCmd.Flags().StringSliceVar(&addDomains, "domain", nil, "domain tag (repeatable)")
	addCmd.Flags().StringVar(&addAudience, "audience", "private", "visibility scope: private, team, org or public")
	addCmd.Flags().Float64Var(&addWeight, "weight", 1.0, "initial weight")
}

func runAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	n := &store.Node{
		Type:     addType,
		Title:    args[0],
		Content:  addContent,
		AKA:      addAKA,
		Weight:   addWeight,
		Domains:  addDomains,
		Audience: addAudience,
	}
	if err := db.CreateNode(n); err != nil {
		return err
	}

	fmt.Printf("added %s [%s] %s\n", n.ID, n.Type, n.Title)
	return nil
}
