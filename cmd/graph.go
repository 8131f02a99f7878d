package cmd

import (
	"fmt"
	"os"

	"github.com/RyanBlaney/graphical-soundscape/internal/app"
	"github.com/spf13/cobra"
)

var (
	graphOut  string
	graphPlot string
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [flags] <directory|metadata.csv>",
	Short: "Aggregate a corpus into an hour-of-day graphical soundscape",
	Long: `Compute the graphical soundscape of a corpus of recordings.

The input is either a directory of audio files named SENSOR_YYYYMMDD_HHMMSS.ext
or a CSV metadata table with path_audio and time (or date) columns. Each
recording is analysed concurrently; recordings that cannot be processed are
skipped and reported unless --policy abort is given. Interrupting the run
writes the matrix of the recordings processed so far, flagged as partial.

Examples:
  # Aggregate a directory and write the matrix next to it
  soundscape graph --out site_a.csv recordings/site_a

  # Use a metadata table, 8 workers and a run cache
  soundscape graph --workers 8 --store ~/.cache/soundscape.db metadata.csv

  # Stop at the first unreadable file and render the result
  soundscape graph --policy abort --plot site_a.png recordings/site_a`,
	Args: cobra.ExactArgs(1),
	RunE: runGraph,
}

func init() {
	rootCmd.AddCommand(graphCmd)

	flags := graphCmd.Flags()
	flags.StringVar(&graphOut, "out", app.DefaultMatrixFile, "matrix CSV output path")
	flags.StringVar(&graphPlot, "plot", "", "also render the matrix to this PNG file")

	flags.Int("workers", 0, "concurrent recordings (default one per CPU)")
	flags.String("policy", "skip", "failure policy (skip, abort)")
	flags.Duration("timeout", 0, "stop after this long and keep a partial matrix (0 disables)")
	flags.Bool("recursive", false, "descend into subdirectories")
	flags.String("store", "", "SQLite cache of per-recording densities")

	bindConfigKey(flags, "workers", "pipeline.workers")
	bindConfigKey(flags, "policy", "pipeline.failure_policy")
	bindConfigKey(flags, "timeout", "pipeline.timeout")
	bindConfigKey(flags, "recursive", "pipeline.recursive")
	bindConfigKey(flags, "store", "store.path")
	addAnalysisFlags(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := a.RunGraph(ctx, app.GraphRequest{
		Input:     args[0],
		MatrixOut: graphOut,
		PlotOut:   graphPlot,
	})
	if err != nil {
		return err
	}

	if s := result.Summary; s.Skipped > 0 || s.Partial {
		fmt.Fprintf(os.Stderr, "%d of %d recordings skipped", s.Skipped, s.Scheduled)
		if s.Partial {
			fmt.Fprint(os.Stderr, ", run interrupted: matrix is partial")
		}
		fmt.Fprintln(os.Stderr)
	}
	return nil
}

// addAnalysisFlags registers the spectrogram and peak picking overrides
func addAnalysisFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Int("target-fs", 0, "resample recordings to this rate (Hz)")
	flags.Int("nperseg", 0, "spectrogram window length (samples)")
	flags.Int("noverlap", 0, "spectrogram window overlap (samples)")
	flags.Float64("db-range", 0, "spectrogram dynamic range (dB)")
	flags.Int("min-distance", 0, "minimum peak separation (cells)")
	flags.Float64("threshold-abs", 0, "minimum peak amplitude (dB)")
	flags.Bool("exclude-border", true, "ignore peaks within min-distance of the grid edge (--exclude-border=false keeps them)")
	flags.String("channel", "", "channel to analyse (left, right, mean)")

	bindConfigKey(flags, "target-fs", "graph_soundscapes.target_fs")
	bindConfigKey(flags, "nperseg", "graph_soundscapes.nperseg")
	bindConfigKey(flags, "noverlap", "graph_soundscapes.noverlap")
	bindConfigKey(flags, "db-range", "graph_soundscapes.db_range")
	bindConfigKey(flags, "min-distance", "graph_soundscapes.min_distance")
	bindConfigKey(flags, "threshold-abs", "graph_soundscapes.threshold_abs")
	bindConfigKey(flags, "exclude-border", "graph_soundscapes.exclude_border")
	bindConfigKey(flags, "channel", "graph_soundscapes.channel")
}
