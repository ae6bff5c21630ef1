package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"isofit/domain/isotherm"
	"isofit/internal/api"
	"isofit/internal/config"
	"isofit/internal/container"
	"isofit/internal/errors"
	"isofit/internal/report"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "isofit",
		Short: "Adsorption isotherm fitting: derive Ce/Qe from HPLC data and fit Langmuir and Freundlich models",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil {
				log.Println("No .env file found, using system environment variables")
			}
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newFitCmd(),
		newDeriveCmd(),
		newServeCmd(),
		newRunsCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// experimentFlags are shared by fit and derive and override the environment
type experimentFlags struct {
	outputDir       string
	molecularWeight float64
	dose            float64
	adsorbent       string
	adsorbate       string
	xlsx            bool
}

func (f *experimentFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", "", "Directory for output files (default: next to the input)")
	cmd.Flags().Float64Var(&f.molecularWeight, "mw", 0, "Adsorbate molecular weight in g/mol")
	cmd.Flags().Float64Var(&f.dose, "dose", 0, "Adsorbent dosage in g/L")
	cmd.Flags().StringVar(&f.adsorbent, "adsorbent", "", "Adsorbent label used in titles")
	cmd.Flags().StringVar(&f.adsorbate, "adsorbate", "", "Adsorbate label used in titles")
	cmd.Flags().BoolVar(&f.xlsx, "xlsx", false, "Also write the calculated table as XLSX")
}

func (f *experimentFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		cfg.Output.Dir = f.outputDir
	}
	if flags.Changed("mw") {
		cfg.Experiment.MolecularWeight = f.molecularWeight
	}
	if flags.Changed("dose") {
		cfg.Experiment.AdsorbentConcGL = f.dose
	}
	if flags.Changed("adsorbent") {
		cfg.Experiment.AdsorbentName = f.adsorbent
	}
	if flags.Changed("adsorbate") {
		cfg.Experiment.AdsorbateName = f.adsorbate
	}
	if flags.Changed("xlsx") {
		cfg.Output.WriteXLSX = f.xlsx
	}
}

// loadConfig reads the environment and applies the positional input.
// Validation runs after flag overrides.
func loadConfig(args []string) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		cfg.Input.Path = args[0]
	}
	return cfg, nil
}

func newFitCmd() *cobra.Command {
	var exp experimentFlags
	var maxIter int
	var jacobian string
	var chartFormat string
	var noReport bool

	cmd := &cobra.Command{
		Use:   "fit [input]",
		Short: "Derive samples, fit both isotherms and write all artifacts",
		Long: `Read a raw HPLC table (CSV, XLSX or an http(s) JSON endpoint), derive the
removal ratio, Ce and Qe, fit the Langmuir and Freundlich isotherms and write:

  <input>-calculated.csv           raw table with derived columns
  <input>-Adsorption Isotherms.png experimental points with both fitted curves
  <input>-report.md / .html        fitted parameters and goodness of fit

Example: isofit fit TJ700-ACP-raw.csv --mw 151.16 --dose 5 --max-iter 500`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args)
			if err != nil {
				return err
			}
			exp.apply(cmd, cfg)
			if cmd.Flags().Changed("max-iter") {
				cfg.Solver.MaxIterations = maxIter
			}
			if cmd.Flags().Changed("jacobian") {
				cfg.Solver.Jacobian = jacobian
			}
			if cmd.Flags().Changed("chart-format") {
				cfg.Output.ChartFormat = chartFormat
			}
			if noReport {
				cfg.Output.Report = false
			}
			return runFit(cmd.Context(), cfg)
		},
	}

	exp.register(cmd)
	cmd.Flags().IntVar(&maxIter, "max-iter", 200, "Maximum solver iterations per model")
	cmd.Flags().StringVar(&jacobian, "jacobian", "analytic", "Jacobian: analytic or numeric")
	cmd.Flags().StringVar(&chartFormat, "chart-format", "png", "Chart format: png, svg or pdf")
	cmd.Flags().BoolVar(&noReport, "no-report", false, "Skip the Markdown/HTML report")

	return cmd
}

func runFit(ctx context.Context, cfg *config.Config) error {
	if err := cfg.ValidateInput(); err != nil {
		return err
	}

	c, err := container.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Shutdown(context.Background())

	result, err := c.FittingService.Run(ctx)
	if err != nil {
		return err
	}

	if err := report.Console(os.Stdout, &result.Run.Report); err != nil {
		return err
	}
	fmt.Println()
	for _, path := range result.Artifacts {
		fmt.Printf("wrote %s\n", path)
	}
	if c.FitRunRepo != nil {
		fmt.Printf("archived run %s\n", result.Run.ID)
	}

	// Both models failing is a failed run even though artifacts were written.
	if !result.Run.Report.Langmuir.OK() && !result.Run.Report.Freundlich.OK() {
		return errors.New(errors.CodeFitFailed, "no model could be fitted")
	}
	return nil
}

func newDeriveCmd() *cobra.Command {
	var exp experimentFlags

	cmd := &cobra.Command{
		Use:   "derive [input]",
		Short: "Compute removal ratio, Ce and Qe and write the calculated table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args)
			if err != nil {
				return err
			}
			exp.apply(cmd, cfg)
			if err := cfg.ValidateInput(); err != nil {
				return err
			}

			c, err := container.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			derived, err := c.FittingService.Derive(cmd.Context())
			if err != nil {
				return err
			}
			paths, err := c.FittingService.WriteDerived(derived)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "LINE\tREMOVAL RATIO\tCe(mg/L)\tQe(mg/g)")
			for _, row := range derived.Rows {
				fmt.Fprintf(w, "%d\t%.4f\t%.4f\t%.4f\n", row.Line, row.RemovalRatio, row.Ce, row.Qe)
			}
			w.Flush()
			for _, path := range paths {
				fmt.Printf("wrote %s\n", path)
			}
			return nil
		},
	}

	exp.register(cmd)
	return cmd
}

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the fitting HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			gin.SetMode(cfg.Server.GinMode)

			c, err := container.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			return api.NewServer(c.FittingService).Run(cmd.Context(), ":"+cfg.Server.Port)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8080", "Port to listen on")
	return cmd
}

func newRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List archived runs, or show one run's report",
		Long: `List the runs archived in DATABASE_URL, newest first. With a run ID,
print that run's fitted parameters.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.ConfigInvalid("DATABASE_URL is required to read archived runs")
			}

			c, err := container.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			if len(args) == 1 {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return errors.InvalidInputf("invalid run ID %q", args[0])
				}
				run, err := c.FitRunRepo.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Printf("%s  %s  %s\n\n", run.ID, run.CreatedAt.Format("2006-01-02 15:04:05"), run.Experiment.Title())
				return report.Console(os.Stdout, &run.Report)
			}

			runs, err := c.FitRunRepo.List(cmd.Context(), limit, 0)
			if err != nil {
				return err
			}
			printRuns(runs)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	return cmd
}

func printRuns(runs []*isotherm.FitRun) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tEXPERIMENT\tSAMPLES\tLANGMUIR R²\tFREUNDLICH R²")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			run.ID,
			run.CreatedAt.Format("2006-01-02 15:04"),
			run.Experiment.Title(),
			len(run.Report.Samples),
			r2Cell(run.Report.Langmuir),
			r2Cell(run.Report.Freundlich))
	}
	w.Flush()
}

func r2Cell(outcome isotherm.ModelOutcome) string {
	if !outcome.OK() || outcome.Metrics == nil {
		return "failed"
	}
	return outcome.Metrics.R2.Format("%.4f")
}
