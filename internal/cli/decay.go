package cli

import (
	"fmt"
	"time"

	"github.com/kindexlab/kindex/internal/engine"
	"github.com/spf13/cobra"
)

var decayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Run one weight decay maintenance cycle",
	RunE:  runDecay,
}

func runDecay(cmd *cobra.Command, args []string) error {
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
	changed, err := eng.RunDecayCycle(time.Now())
	if err != nil {
		return err
	}

	if changed == 0 {
		fmt.Println("decay: nothing to do (cycle already processed or all weights fresh)")
		return nil
	}
	fmt.Printf("decay: %d weights updated\n", changed)
	return nil
}
