package cmd

import (
	"github.com/RyanBlaney/graphical-soundscape/internal/app"
	"github.com/spf13/cobra"
)

var (
	indexOut      string
	indexDistance string
)

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index [flags] <matrix.csv|directory>",
	Short: "Score soundscapes against forest and grassland templates",
	Long: `Compute the acoustic integrity index of one matrix or of every .csv
matrix in a directory. The matrix is flattened hour by hour and compared with
the forest and grassland templates configured under index; the index is
d(sample, grassland) - d(sample, forest).

Examples:
  soundscape index --config soundscape.yaml site_a.csv
  soundscape index --distance braycurtis --out scores.csv matrices/`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	flags := indexCmd.Flags()
	flags.StringVar(&indexOut, "out", "", "write fname,index_value CSV to this path")
	flags.StringVar(&indexDistance, "distance", "", "distance (cosine, braycurtis)")
	flags.String("forest", "", "forest template CSV")
	flags.String("grassland", "", "grassland template CSV")

	bindConfigKey(flags, "forest", "index.template_forest")
	bindConfigKey(flags, "grassland", "index.template_grassland")
}

func runIndex(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	_, err = a.RunIndex(app.IndexRequest{
		Input:    args[0],
		Out:      indexOut,
		Distance: indexDistance,
	})
	return err
}
