package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var plotOut string

// plotCmd represents the plot command
var plotCmd = &cobra.Command{
	Use:   "plot [flags] <matrix.csv>",
	Short: "Render a persisted graphical soundscape",
	Long: `Render a matrix written by graph as a PNG heatmap with hours of the day
along the x axis and frequency along the y axis, lowest frequency at the bottom.

Examples:
  soundscape plot site_a.csv
  soundscape plot --out site_a_gray.png --colormap gray --tick-step 10 site_a.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runPlot,
}

func init() {
	rootCmd.AddCommand(plotCmd)

	flags := plotCmd.Flags()
	flags.StringVar(&plotOut, "out", "", "PNG output path (default: matrix path with .png)")
	flags.Int("tick-step", 0, "frequency tick every n bins")
	flags.String("colormap", "", "colour map (viridis, gray)")

	bindConfigKey(flags, "tick-step", "output.tick_step")
	bindConfigKey(flags, "colormap", "output.colormap")
}

func runPlot(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	out, err := a.RunPlot(args[0], plotOut)
	if err != nil {
		return err
	}

	if !quiet {
		fmt.Printf("Plot written to: %s\n", out)
	}
	return nil
}
