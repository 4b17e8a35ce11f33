package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/vietddude/shell/internal/core/config"
	"github.com/vietddude/shell/internal/infra/redis"
)

var mountsCmd = &cobra.Command{
	Use:   "mounts",
	Short: "List the live mounts mirrored in the Redis state store",
	Run:   runMounts,
}

func init() {
	rootCmd.AddCommand(mountsCmd)
}

func runMounts(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if cfg.Session.Backend != config.BackendRedis {
		slog.Error("Mount state is only shared with the redis session backend", "backend", cfg.Session.Backend)
		os.Exit(1)
	}

	client, err := redis.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = client.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	records, err := redis.NewMountRepo(client).List(ctx)
	if err != nil {
		slog.Error("Failed to list mounts", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "SESSION\tREMOTE\tPHASE\tREMOUNT\tRETRIES\tFAILURE\tUPDATED")
	for _, rec := range records {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			rec.SessionID,
			rec.Remote,
			rec.Phase,
			rec.RemountKey,
			rec.RetryCount,
			rec.FailureKind,
			rec.UpdatedAt.Format(time.RFC3339),
		)
	}
	_ = w.Flush()
}
