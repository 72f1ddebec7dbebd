package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lazypower/instinct/internal/engine"
	"github.com/lazypower/instinct/internal/obslog"
)

var (
	observeReplay bool
	observeEvolve bool
	observeDir    string
)

var observeCmd = &cobra.Command{
	Use:   "observe",
	Short: "Run one lifecycle pass over the observation log",
	Long:  "Reads new observations, detects recurring patterns, and applies the confidence lifecycle: create, reinforce, decay, prune, dedup, and optionally evolve skills.",
	RunE:  runObserve,
}

var evolveCmd = &cobra.Command{
	Use:   "evolve",
	Short: "Run a lifecycle pass with skill evolution enabled",
	RunE: func(cmd *cobra.Command, args []string) error {
		observeEvolve = true
		return runObserve(cmd, args)
	},
}

func init() {
	observeCmd.Flags().BoolVar(&observeReplay, "replay", false, "reprocess the entire log and report the delta")
	observeCmd.Flags().BoolVar(&observeEvolve, "evolve", false, "promote qualifying instinct clusters into skills")
	observeCmd.Flags().StringVar(&observeDir, "dir", "", "project directory (default: current directory)")
	evolveCmd.Flags().StringVar(&observeDir, "dir", "", "project directory (default: current directory)")
}

func runObserve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	projectDir := observeDir
	if projectDir == "" {
		projectDir, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve project dir: %w", err)
		}
	}
	olog := obslog.Open(obslog.DefaultDir(projectDir))
	eng := engine.New(db, olog, cfg)

	report, err := eng.Run(engine.Options{Replay: observeReplay, Evolve: observeEvolve})
	if errors.Is(err, engine.ErrLocked) {
		fmt.Fprintln(os.Stderr, "busy: another pass is already running")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("pass %s (%s) in %s\n", report.RunID, report.Mode, report.Duration)
	fmt.Printf("  observations: %d (%d malformed)\n", report.ObservationsRead, report.MalformedLines)
	fmt.Printf("  candidates:   %d\n", report.Candidates)
	fmt.Printf("  created:      %d\n", len(report.Created))
	fmt.Printf("  reinforced:   %d\n", len(report.Reinforced))
	fmt.Printf("  pruned:       %d\n", len(report.Pruned))
	if len(report.Decayed) > 0 {
		fmt.Printf("  decayed:      %d\n", len(report.Decayed))
	}
	if len(report.Conflicted) > 0 {
		fmt.Printf("  conflicted:   %d\n", len(report.Conflicted))
	}
	if len(report.Merged) > 0 {
		fmt.Printf("  merged:       %d\n", len(report.Merged))
	}
	if len(report.Skills) > 0 {
		fmt.Printf("  skills:       %d\n", len(report.Skills))
	}
	if report.ReplayDiff != nil {
		fmt.Printf("  replay diff:  +%d created, %d reinforced, -%d pruned\n",
			len(report.ReplayDiff.Created), len(report.ReplayDiff.Reinforced), len(report.ReplayDiff.Pruned))
	}
	return nil
}
