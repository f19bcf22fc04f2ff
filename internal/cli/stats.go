package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsOrphans bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print graph statistics",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsOrphans, "orphans", false, "list orphan nodes (no edges)")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	s, err := db.Stats()
	if err != nil {
		return err
	}

	fmt.Printf("nodes:       %d\n", s.NodeCount)
	fmt.Printf("edges:       %d\n", s.EdgeCount)
	fmt.Printf("orphans:     %d\n", s.OrphanCount)
	fmt.Printf("avg weight:  %.3f\n", s.AvgWeight)
	if s.MaxDegreeID != "" {
		fmt.Printf("max degree:  %d (%s)\n", s.MaxDegree, s.MaxDegreeID)
	}

	if statsOrphans && s.OrphanCount > 0 {
		orphans, err := db.Orphans()
		if err != nil {
			return err
		}
		fmt.Println("\norphan nodes:")
		for _, n := range orphans {
			fmt.Printf("  %s [%s] %s\n", n.ID, n.Type, n.Title)
		}
	}
	return nil
}
