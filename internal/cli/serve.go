package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kindexlab/kindex/internal/engine"
	"github.com/kindexlab/kindex/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
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
	eng.StartDecayTimer()
	defer eng.Stop()

	// Detect and configure embedder
	if cfg.Embedding.Enabled {
		if engine.ProbeOllama(cfg.Embedding.OllamaURL, cfg.Embedding.Model) {
			eng.SetEmbedder(engine.NewOllamaEmbedder(cfg.Embedding.OllamaURL, cfg.Embedding.Model, 768))
			fmt.Fprintf(os.Stderr, "  embedder: ollama (%s)\n", cfg.Embedding.Model)
		} else {
			emb, tfidfErr := engine.NewTFIDFEmbedder(db, 512)
			if tfidfErr != nil {
				fmt.Fprintf(os.Stderr, "warning: tfidf embedder init failed: %v\n", tfidfErr)
			} else {
				eng.SetEmbedder(emb)
				fmt.Fprintf(os.Stderr, "  embedder: tfidf (fallback)\n")
			}
		}

		// Embed any nodes missing vectors
		if eng.Embedder != nil {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				defer cancel()
				if n, err := eng.EmbedMissing(ctx); err != nil {
					fmt.Fprintf(os.Stderr, "embed missing: %v\n", err)
				} else if n > 0 {
					fmt.Fprintf(os.Stderr, "  embedded %d missing nodes\n", n)
				}
			}()
		}
	}

	srv := server.New(db, eng, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "kindex serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", db.Path)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
