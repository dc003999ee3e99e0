package cli

import (
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/timebank-network/timebank/internal/api"
	"github.com/timebank-network/timebank/internal/app/lifecycle"
	"github.com/timebank-network/timebank/internal/daemon"
	"github.com/timebank-network/timebank/internal/domain"
	"github.com/timebank-network/timebank/internal/infra/memory"
	"github.com/timebank-network/timebank/internal/infra/sqlite"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the timebank API server",
	Long:  `Start the HTTP API server over the configured storage engine.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load(configPath)
	if err != nil {
		return err
	}

	tasks, ledger, users, closeStore, err := openStores(cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	engine := lifecycle.New(tasks, ledger, lifecycle.PhotoGate{})
	server := api.NewServer(engine, ledger, users)
	if cfg.API.Metrics {
		server.EnableMetrics()
	}

	log.Printf("timebank listening on %s (storage: %s)", cfg.API.Addr(), cfg.Storage.Engine)
	return http.ListenAndServe(cfg.API.Addr(), server.Handler())
}

// openStores builds the configured storage engine. Both engines implement
// the same domain interfaces; the lifecycle engine does not know which one
// it runs over.
func openStores(cfg daemon.StorageConfig) (domain.TaskStore, domain.Ledger, domain.UserStore, func(), error) {
	switch cfg.Engine {
	case "memory":
		s := memory.NewStore()
		return s, s, s, func() {}, nil
	case "sqlite", "":
		db, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		return db, db, db, func() { db.Close() }, nil
	default:
		return nil, nil, nil, nil, fmt.Errorf("unknown storage engine %q", cfg.Engine)
	}
}
