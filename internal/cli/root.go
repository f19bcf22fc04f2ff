package cli

import (
	"fmt"

	"github.com/kindexlab/kindex/internal/config"
	"github.com/kindexlab/kindex/internal/store"
	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "kin",
	Short: "Weighted knowledge graph with multi-signal retrieval",
	Long:  "Kindex keeps a weighted knowledge graph and retrieves from it by fusing lexical, graph proximity, and vector similarity signals into token-budgeted context blocks.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(retrieveCmd)
	rootCmd.AddCommand(decayCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(statsCmd)
}

// loadConfig reads the config file (if any) plus env overrides.
func loadConfig() (config.Config, error) {
	return config.Load(cfgPath)
}

// openStore resolves the database path from config and opens it.
func openStore(cfg config.Config) (*store.DB, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	return store.Open(dbPath)
}
