package cmd

import (
	"github.com/spf13/cobra"
)

var peaksImage string

// peaksCmd represents the peaks command
var peaksCmd = &cobra.Command{
	Use:   "peaks [flags] <audio-file>",
	Short: "Pick the spectrogram local maxima of one recording",
	Long: `Compute the dB spectrogram of a single recording and list its local
maxima with their time and frequency.

Examples:
  # List peaks as a table
  soundscape peaks S4A_20230415_060000.wav

  # Stricter threshold, JSON output and an image with peaks marked
  soundscape peaks --threshold-abs -50 -o json --image peaks.png rec.wav`,
	Args: cobra.ExactArgs(1),
	RunE: runPeaks,
}

func init() {
	rootCmd.AddCommand(peaksCmd)

	peaksCmd.Flags().StringVar(&peaksImage, "image", "", "render the spectrogram with peaks marked to this PNG file")
	addAnalysisFlags(peaksCmd)
}

func runPeaks(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	_, err = a.RunPeaks(args[0], peaksImage)
	return err
}
