package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/vietddude/shell/internal/control"
	"github.com/vietddude/shell/internal/core/domain"
)

var probeCmd = &cobra.Command{
	Use:   "probe [remote...]",
	Short: "Run one load cycle per remote and report the outcome",
	Run:   runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	want := make(map[string]bool, len(args))
	for _, a := range args {
		want[a] = true
	}

	var remotes []domain.RemoteDescriptor
	for _, rc := range cfg.Remotes {
		if len(want) > 0 && !want[rc.Name] {
			continue
		}
		desc, _ := control.Descriptor(rc)
		remotes = append(remotes, desc)
	}
	if len(remotes) == 0 {
		fmt.Println("No matching remotes")
		os.Exit(1)
	}

	results := control.Probe(context.Background(), remotes)

	failed := false
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "REMOTE\tRESULT\tATTEMPTS\tELAPSED\tERROR")
	for _, res := range results {
		result, msg := "ok", ""
		if res.Err != nil {
			failed = true
			result = string(domain.Classify(res.Err))
			msg = res.Err.Error()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", res.Remote, result, res.Attempts, res.Elapsed.Round(time.Millisecond), msg)
	}
	_ = w.Flush()

	if failed {
		os.Exit(1)
	}
}
