package cli

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/splitkit/splitkit/internal/bus"
	"github.com/splitkit/splitkit/internal/engine"
	"github.com/splitkit/splitkit/internal/server"
	"github.com/splitkit/splitkit/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the splitkit server",
	Long: `Start the HTTP server: beacon tracking endpoint, experiments API,
token-protected admin API, and prometheus metrics.

Example:
  splitkit serve
  splitkit serve --port 8080`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	s, err := store.Open(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	b := bus.New(log.Logger)
	reg, err := engine.New(s, b,
		engine.WithLogger(log.Logger),
		engine.WithFlushInterval(cfg.Engine.FlushInterval),
	)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	defer reg.Close()

	rec := engine.NewRecorder(reg, &engine.StoredIdentity{})

	tokenFile := cfg.Server.TokenFile
	if tokenFile == "" {
		tokenFile = filepath.Join(filepath.Dir(cfg.DB.Path), ".splitkit-token")
	}

	srv := server.New(reg, rec, b, cfg.Server.Port, tokenFile, log.Logger, server.WithSizer(s))

	fmt.Println()
	fmt.Printf("splitkit running on http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("Admin API: http://localhost:%d/admin/experiments?token=%s\n", cfg.Server.Port, srv.Token())
	fmt.Printf("Metrics:   http://localhost:%d/metrics\n", cfg.Server.Port)
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")

	return srv.Start()
}
