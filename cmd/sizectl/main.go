// Command sizectl inspects the size chart and maintains stored size
// assignments from the command line.
package main

import (
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/anniejean/castingdesk/internal/config"
	"github.com/anniejean/castingdesk/internal/db"
	"github.com/anniejean/castingdesk/internal/logging"
	"github.com/anniejean/castingdesk/internal/services"
	"github.com/anniejean/castingdesk/internal/sizing"
)

var (
	tablePath  string
	dbPath     string
	sizeFilter string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "sizectl",
		Short:        "Size chart and size assignment tools",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&tablePath, "table", "", "size table YAML (default: SIZE_TABLE_PATH or the built-in chart)")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "sqlite database path (default: DATABASE_PATH)")

	childrenCmd := &cobra.Command{
		Use:   "children",
		Short: "List IDs of children holding a size, primary or not",
		Args:  cobra.NoArgs,
		RunE:  runChildren,
	}
	childrenCmd.Flags().StringVar(&sizeFilter, "size", "", "size label, e.g. \"2T\"")
	_ = childrenCmd.MarkFlagRequired("size")

	root.AddCommand(
		&cobra.Command{
			Use:   "classify <weight> [height]",
			Short: "Print the sizes for a weight (lb) and height (in)",
			Args:  cobra.RangeArgs(1, 2),
			RunE:  runClassify,
		},
		&cobra.Command{
			Use:   "table",
			Short: "Print the size chart in canonical order",
			Args:  cobra.NoArgs,
			RunE:  runTable,
		},
		&cobra.Command{
			Use:   "backfill",
			Short: "Recompute size assignments for every stored child",
			Args:  cobra.NoArgs,
			RunE:  runBackfill,
		},
		childrenCmd,
	)
	return root
}

type env struct {
	cfg        config.Config
	log        *zap.Logger
	classifier *sizing.Classifier
}

func loadEnv() (env, error) {
	cfg, err := config.Load()
	if err != nil {
		return env{}, err
	}
	if tablePath != "" {
		cfg.SizeTablePath = tablePath
	}
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	log, err := logging.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		return env{}, err
	}
	c, err := sizing.LoadFile(cfg.SizeTablePath)
	if err != nil {
		return env{}, err
	}
	return env{cfg: cfg, log: log, classifier: c}, nil
}

func (e env) reconciler() (*services.SizeReconciler, error) {
	if err := db.Init(e.cfg.DatabasePath, e.log); err != nil {
		return nil, err
	}
	return services.NewSizeReconciler(db.Conn(), e.classifier, services.WithReconcilerLogger(e.log)), nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	height := "0"
	if len(args) == 2 {
		height = args[1]
	}
	labels := e.classifier.ClassifyValues(args[0], height)
	if len(labels) == 0 {
		return fmt.Errorf("no applicable size for weight %q, height %q", args[0], height)
	}
	out := cmd.OutOrStdout()
	for i, l := range labels {
		if i == 0 {
			fmt.Fprintf(out, "%s\t(primary)\n", l)
			continue
		}
		fmt.Fprintln(out, l)
	}
	return nil
}

func runTable(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	tbl := e.classifier.Table()
	out := cmd.OutOrStdout()
	for _, l := range e.classifier.Labels() {
		for _, r := range tbl.Ranges {
			if r.Label != l {
				continue
			}
			max := "+"
			if !math.IsInf(r.MaxWeight, 1) {
				max = fmt.Sprintf("-%g", r.MaxWeight)
			}
			fmt.Fprintf(out, "%-14s %g%s lb\n", l, r.MinWeight, max)
		}
	}
	if labels := e.classifier.Labels(); !math.IsInf(tbl.Ceiling, 1) {
		fmt.Fprintf(out, "above %g lb: %s only\n", tbl.Ceiling, labels[len(labels)-1])
	}
	return nil
}

func runBackfill(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.log.Sync()
	s, err := e.reconciler()
	if err != nil {
		return err
	}
	rep, err := s.BackfillSizes(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "processed %d, skipped %d, failed %d\n", rep.Processed, len(rep.Skipped), len(rep.Failed))
	for _, id := range rep.Skipped {
		fmt.Fprintf(out, "skipped child %d: no applicable size\n", id)
	}
	for id, msg := range rep.Failed {
		fmt.Fprintf(out, "failed child %d: %s\n", id, msg)
	}
	if len(rep.Failed) > 0 {
		return fmt.Errorf("%d children failed", len(rep.Failed))
	}
	return nil
}

func runChildren(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	if !e.classifier.IsLabel(sizeFilter) {
		return fmt.Errorf("unknown size %q (see `sizectl table`)", sizeFilter)
	}
	s, err := e.reconciler()
	if err != nil {
		return err
	}
	ids, err := s.ChildrenWithSize(cmd.Context(), sizeFilter)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, id := range ids {
		fmt.Fprintln(out, id)
	}
	return nil
}
