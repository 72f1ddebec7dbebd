package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/instinct/internal/config"
	"github.com/lazypower/instinct/internal/engine"
	"github.com/lazypower/instinct/internal/obslog"
	"github.com/lazypower/instinct/internal/store"
)

var (
	listStatus string
	listDomain string
)

var instinctsCmd = &cobra.Command{
	Use:   "instincts",
	Short: "List learned instincts",
	RunE:  runListInstincts,
}

var instinctShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one instinct in detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowInstinct,
}

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "List evolved skills",
	RunE:  runListSkills,
}

func init() {
	instinctsCmd.Flags().StringVar(&listStatus, "status", store.StatusActive, "filter by status (active, pruned, conflicted, all)")
	instinctsCmd.Flags().StringVar(&listDomain, "domain", "", "filter by domain")
	instinctsCmd.AddCommand(instinctShowCmd)
}

func runListInstincts(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	status := listStatus
	if status == "all" {
		status = ""
	}
	instincts, err := store.ListInstincts(db, status)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDOMAIN\tCONF\tSTATUS\tACTION")
	count := 0
	for _, in := range instincts {
		if listDomain != "" && in.Domain != listDomain {
			continue
		}
		approved := " "
		if in.AutoApproved {
			approved = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f%s\t%s\t%s\n", in.ID, in.Domain, in.Confidence, approved, in.Status, truncate(in.Action, 60))
		count++
	}
	w.Flush()
	fmt.Printf("\n%d instincts (* = auto-approved)\n", count)
	return nil
}

func runShowInstinct(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	in, err := store.GetInstinct(db, args[0])
	if err != nil {
		return err
	}
	if in == nil {
		return fmt.Errorf("no instinct with id %q", args[0])
	}

	fmt.Printf("id:              %s\n", in.ID)
	fmt.Printf("domain:          %s\n", in.Domain)
	fmt.Printf("category:        %s\n", in.Category)
	fmt.Printf("trigger:         %s\n", in.Trigger)
	fmt.Printf("action:          %s\n", in.Action)
	fmt.Printf("confidence:      %.2f\n", in.Confidence)
	fmt.Printf("source:          %s\n", in.Source)
	fmt.Printf("status:          %s\n", in.Status)
	fmt.Printf("auto-approved:   %v\n", in.AutoApproved)
	fmt.Printf("sessions:        %d\n", len(in.Sessions))
	if in.SkillID != "" {
		fmt.Printf("skill:           %s\n", in.SkillID)
	}
	fmt.Printf("created:         %s\n", formatMillis(in.CreatedAt))
	fmt.Printf("last reinforced: %s\n", formatMillis(in.LastReinforcedAt))
	return nil
}

func runListSkills(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	skills, err := store.ListSkills(db)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDOMAIN\tMEMBERS\tAVG CONF\tUSES")
	for _, s := range skills {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%d\n", s.ID, s.Domain, len(s.MemberIDs), s.AvgConfidence, s.TriggerCount)
	}
	w.Flush()
	fmt.Printf("\n%d skills\n", len(skills))
	return nil
}

var (
	exportDomain  string
	exportMinConf float64
	exportOut     string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export active instincts as YAML",
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import instincts from a YAML export",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	exportCmd.Flags().StringVar(&exportDomain, "domain", "", "export only one domain")
	exportCmd.Flags().Float64Var(&exportMinConf, "min-confidence", 0, "export only instincts at or above this confidence")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "write to file instead of stdout")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	eng := newEngine(db, cfg)
	out := os.Stdout
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	n, err := eng.Export(out, engine.ExportFilter{Domain: exportDomain, MinConfidence: exportMinConf})
	if err != nil {
		return err
	}
	if exportOut != "" {
		fmt.Fprintf(os.Stderr, "exported %d instincts to %s\n", n, exportOut)
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	created, merged, err := newEngine(db, cfg).Import(f)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d instincts (%d merged into existing)\n", created, merged)
	return nil
}

func newEngine(db *store.DB, cfg config.Config) *engine.Engine {
	projectDir, _ := os.Getwd()
	return engine.New(db, obslog.Open(obslog.DefaultDir(projectDir)), cfg)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Format("2006-01-02 15:04:05")
}
