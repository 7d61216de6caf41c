// Command memorypilot is the stdio entry point for the MemoryPilot MCP
// server, wired the way go-ports/echovault's cmd/memory/main.go wires its
// root cobra.Command, but collapsed to a single root command: no-flags starts
// the server, --migrate and --backfill run one-shot maintenance,
// --version/--help are cobra's defaults.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/go-ports/memorypilot/internal/buildinfo"
	"github.com/go-ports/memorypilot/internal/mcpserver"
	"github.com/go-ports/memorypilot/internal/service"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	os.Exit(run(ctx))
}

// run executes the root command and maps errors to exit codes: 0 success,
// 2 usage error, 3 I/O/storage error.
func run(ctx context.Context) int {
	cmd := newRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) {
			return 2
		}
		return 3
	}
	return 0
}

var errUsage = fmt.Errorf("usage error")

func newRootCmd() *cobra.Command {
	var (
		home     string
		migrate  string
		backfill bool
	)

	root := &cobra.Command{
		Use:           "memorypilot",
		Short:         "MemoryPilot — persistent memory for AI coding assistants",
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.NoArgs(cmd, args); err != nil {
				return fmt.Errorf("%w: %v", errUsage, err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch {
			case migrate != "":
				return runMigrate(home, migrate)
			case backfill:
				return runBackfill(home)
			default:
				return mcpserver.Serve(cmd.Context(), home)
			}
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	root.Flags().StringVar(&home, "home", "", "Override the data directory (default: $MEMORY_PILOT_HOME env -> ~/.memory-pilot)")
	root.Flags().StringVar(&migrate, "migrate", "", "Import memories from a V1 JSON export at the given path, then exit")
	root.Flags().BoolVar(&backfill, "backfill", false, "Compute embeddings for every memory missing one, then exit")

	return root
}

func runMigrate(home, path string) error {
	svc, err := service.New(home)
	if err != nil {
		return err
	}
	defer svc.Close()

	report, err := svc.MigrateV1(path)
	if err != nil {
		return err
	}
	fmt.Printf("migrated %d memories, %d deduped, %d skipped\n", report.Imported, report.Deduped, report.Skipped)
	return nil
}

func runBackfill(home string) error {
	svc, err := service.New(home)
	if err != nil {
		return err
	}
	defer svc.Close()

	count, err := svc.BackfillEmbeddings()
	if err != nil {
		return err
	}
	fmt.Printf("backfilled %d embeddings\n", count)
	return nil
}
