package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/soilfit/internal/chart"
	"github.com/cwbudde/soilfit/internal/config"
	"github.com/cwbudde/soilfit/internal/data"
	"github.com/cwbudde/soilfit/internal/fit"
)

var (
	dataPath  string
	method    string
	lsqMethod string
	starts    string
	limit     int
	seed      int64
	workers   int
	plotPath  string
	logX      bool
	jsonOut   bool
)

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit a two-layer model to a measured curve",
	Long: `Reads depth/resistivity pairs from a text file, fits the two-layer
model from every starting point and prints the best parameters.`,
	RunE: runFit,
}

func init() {
	fitCmd.Flags().StringVar(&dataPath, "data", "", "Measured curve file (required)")
	fitCmd.Flags().StringVar(&method, "method", "", "Optimizer: "+strings.Join(fit.MethodNames(), ", "))
	fitCmd.Flags().StringVar(&lsqMethod, "lsq", "", "Least-squares algorithm: trf, dogbox, lm")
	fitCmd.Flags().StringVar(&starts, "starts", "", "Starting points: grid or random")
	fitCmd.Flags().IntVar(&limit, "limit", 0, "Number of starting points (0 uses the config)")
	fitCmd.Flags().Int64Var(&seed, "seed", 0, "Random seed for random starts and global optimizers")
	fitCmd.Flags().IntVar(&workers, "workers", 0, "Starting points evaluated concurrently")
	fitCmd.Flags().StringVar(&plotPath, "plot", "", "Write a plot of the fit (.png or .svg)")
	fitCmd.Flags().BoolVar(&logX, "log-x", false, "Logarithmic depth axis in the plot")
	fitCmd.Flags().BoolVar(&jsonOut, "json", false, "Print the result as JSON")

	fitCmd.MarkFlagRequired("data")
	rootCmd.AddCommand(fitCmd)
}

func runFit(cmd *cobra.Command, args []string) error {
	curve, err := data.Load(dataPath)
	if err != nil {
		return err
	}

	session, err := newSession(cfg, curve)
	if err != nil {
		return err
	}
	session.Options.Observer = func(t fit.Trial) {
		slog.Debug("Start finished", "index", t.Index, "total", t.Total, "params", t.Params.String(), "mse", t.MSE)
	}

	slog.Info("Starting fit", "method", session.Method.Name(), "samples", curve.Len(), "data", dataPath)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	start := time.Now()
	result, err := session.Run(ctx)
	if err != nil {
		return fmt.Errorf("fit failed: %w", err)
	}
	slog.Info("Fit complete", "elapsed", time.Since(start), "method", result.Method, "mse", result.MSE, "runs", result.Runs)

	if plotPath != "" {
		opts := chart.DefaultOptions()
		opts.Model = session.Options.Model
		opts.LogX = logX
		if err := chart.Save(plotPath, curve, result.Params, opts); err != nil {
			return err
		}
		slog.Info("Plot saved", "path", plotPath)
	}

	if jsonOut {
		return writeJSONReport(cmd.OutOrStdout(), curve, result)
	}
	return writeReport(cmd.OutOrStdout(), result)
}

// newSession applies the command line overrides on top of the config
func newSession(cfg *config.Config, curve fit.Curve) (*fit.Session, error) {
	fc := *cfg
	if method != "" {
		fc.Fit.Method = method
	}
	if lsqMethod != "" {
		fc.Fit.LSQ = lsqMethod
	}
	if starts != "" {
		fc.Fit.Starts.Policy = starts
	}
	if limit > 0 {
		fc.Fit.Starts.Grid.Limit = limit
		fc.Fit.Starts.Random.N = limit
	}
	if seed != 0 {
		fc.Fit.Starts.Random.Seed = seed
		fc.Fit.Solvers.DifferentialEvolution.Seed = seed
		fc.Fit.Solvers.Mayfly.Seed = seed
	}
	if workers > 0 {
		fc.Fit.Workers = workers
	}

	m, err := fc.Method()
	if err != nil {
		return nil, err
	}
	policy, err := fc.StartPolicy()
	if err != nil {
		return nil, err
	}
	return &fit.Session{
		Curve:   curve,
		Method:  m,
		Starts:  policy,
		Options: fc.DriverOptions(),
	}, nil
}

// writeReport prints the result in the classic report layout
func writeReport(w io.Writer, r *fit.Result) error {
	_, err := fmt.Fprintf(w, `Model Results:
Resistivity p1 [ohms.m]: %.2f
Resistivity p2 [ohms.m]: %.2f
Depth of the first layer h1 [m]: %.2f
Mean Squared Error (MSE): %.2f
`, r.Params.P1, r.Params.P2, r.Params.H1, r.MSE)
	return err
}

// jsonReport is the --json output
type jsonReport struct {
	*fit.Result
	Depths   []float64 `json:"depths"`
	Measured []float64 `json:"measured"`
}

func writeJSONReport(w io.Writer, curve fit.Curve, r *fit.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{Result: r, Depths: curve.Depths, Measured: curve.Resistivities})
}
