package cli

import (
	"fmt"

	"github.com/kindexlab/kindex/internal/store"
	"github.com/spf13/cobra"
)

var (
	linkType   string
	linkWeight float64
	linkBoth   bool
)

var linkCmd = &cobra.Command{
	Use:   "link <from> <to>",
	Short: "Add an edge between two nodes (by id or title)",
	Args:  cobra.ExactArgs(2),
	RunE:  runLink,
}

func init() {
	linkCmd.Flags().StringVar(&linkType, "type", "relates_to", "edge type")
	linkCmd.Flags().Float64Var(&linkWeight, "weight", 0.5, "edge weight")
	linkCmd.Flags().BoolVar(&linkBoth, "both", false, "also add the reverse edge at reduced weight")
}

func runLink(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	from, err := resolveRef(db, args[0])
	if err != nil {
		return err
	}
	to, err := resolveRef(db, args[1])
	if err != nil {
		return err
	}

	if err := db.AddEdge(from.ID, to.ID, linkType, linkWeight, "manual", linkBoth); err != nil {
		return err
	}

	fmt.Printf("linked %s -[%s]-> %s\n", from.Title, linkType, to.Title)
	return nil
}

// resolveRef finds a node by id, then by title or alias.
func resolveRef(db *store.DB, ref string) (*store.Node, error) {
	n, err := db.GetNode(ref)
	if err != nil {
		return nil, err
	}
	if n == nil {
		n, err = db.GetNodeByTitle(ref)
		if err != nil {
			return nil, err
		}
	}
	if n == nil {
		return nil, fmt.Errorf("node not found: %s", ref)
	}
	return n, nil
}
