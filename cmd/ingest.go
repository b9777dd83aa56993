// Package cmd /*
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hexingest/bandgroup"
	"hexingest/catalog"
	"hexingest/fleet"
	"hexingest/recordsio"
	"hexingest/tilebin"
)

var numWorkers int
var maxRetries int
var maxTiles int
var loadTimeout time.Duration
var equalAreaEPSG int
var stacRoot string
var collection string
var dateWindow string
var bandGroupFile string

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Process a catalog window of tiles into hex cell parquet files",
	Long: `Searches a STAC catalog for tiles in a collection and date window,
	then processes every (tile, band group) unit in parallel: load bands,
	validate resolution, bin pixels into H3 cells, aggregate per (cell, band),
	and write one parquet file per unit into the output directory.

	Band groups default to Sentinel-2 L2A (vis_nir at 10m/level 12,
	swir_rededge at 20m/level 11); supply --bandGroups to override.

	Options:
		--numWorkers: Number of workers processing units in parallel. Not
									recommended to exceed number of CPU cores.
		--retries:    Bounded retry count for transient asset failures.
		--date:       Acquisition date or start/end window to search.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevels()

		groups, err := loadBandGroups()
		if err != nil {
			logrus.Fatal(err)
		}
		if err := bandgroup.Validate(groups); err != nil {
			logrus.Fatal(err)
		}

		outDir := args[0]
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			logrus.Fatal(err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client := catalog.NewClient(stacRoot, collection)
		tiles, err := client.Search(ctx, dateWindow, nil, maxTiles)
		if err != nil {
			logrus.Fatal(err)
		}
		logrus.Infof("Catalog returned %d tiles for %s %s", len(tiles), collection, dateWindow)

		proc := &tilebin.Processor{
			Sink:          &recordsio.ParquetWriter{Dir: outDir},
			EqualAreaEPSG: equalAreaEPSG,
			LoadTimeout:   loadTimeout,
		}

		opts := fleet.Options{
			MaxConcurrency: numWorkers,
			MaxRetries:     maxRetries,
		}

		var ok, failed int
		for outcome := range fleet.Process(ctx, proc, tiles, groups, opts) {
			if outcome.Failed() {
				failed++
				continue
			}
			ok++
			logrus.Infof("Wrote %s", outcome.Path)
		}
		logrus.Infof("Run complete: %d units succeeded, %d failed", ok, failed)
		if ok == 0 && failed > 0 {
			logrus.Exit(1)
		}
	},
}

func loadBandGroups() ([]bandgroup.Config, error) {
	if bandGroupFile == "" {
		return bandgroup.Defaults(), nil
	}
	return bandgroup.Load(bandGroupFile)
}

func setLogLevels() {
	if viper.GetBool("debug") {
		logrus.SetLevel(logrus.DebugLevel)
	} else if viper.GetBool("verbose") {
		logrus.SetLevel(logrus.InfoLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().IntVarP(&numWorkers, "numWorkers", "n", 8, "Number of workers processing units in parallel")
	err := viper.BindPFlag("numWorkers", ingestCmd.Flags().Lookup("numWorkers"))
	if err != nil {
		logrus.Exit(1)
	}

	ingestCmd.Flags().IntVarP(&maxRetries, "retries", "r", 2, "Bounded retry count for transient asset failures")
	err = viper.BindPFlag("retries", ingestCmd.Flags().Lookup("retries"))
	if err != nil {
		logrus.Exit(1)
	}

	ingestCmd.Flags().IntVarP(&maxTiles, "maxTiles", "m", 0, "Cap on catalog tiles to process, 0 for no cap")
	err = viper.BindPFlag("maxTiles", ingestCmd.Flags().Lookup("maxTiles"))
	if err != nil {
		logrus.Exit(1)
	}

	ingestCmd.Flags().DurationVarP(&loadTimeout, "timeout", "t", 5*time.Minute, "Per-unit timeout at the asset fetch boundary")
	err = viper.BindPFlag("timeout", ingestCmd.Flags().Lookup("timeout"))
	if err != nil {
		logrus.Exit(1)
	}

	ingestCmd.Flags().IntVarP(&equalAreaEPSG, "equalAreaEPSG", "e", 6933, "Equal-area CRS used for footprint area estimation")
	err = viper.BindPFlag("equalAreaEPSG", ingestCmd.Flags().Lookup("equalAreaEPSG"))
	if err != nil {
		logrus.Exit(1)
	}

	ingestCmd.Flags().StringVarP(&stacRoot, "stacRoot", "s", catalog.DefaultBaseURL, "STAC API root URL")
	err = viper.BindPFlag("stacRoot", ingestCmd.Flags().Lookup("stacRoot"))
	if err != nil {
		logrus.Exit(1)
	}

	ingestCmd.Flags().StringVarP(&collection, "collection", "c", "sentinel-2-l2a", "STAC collection to search")
	err = viper.BindPFlag("collection", ingestCmd.Flags().Lookup("collection"))
	if err != nil {
		logrus.Exit(1)
	}

	ingestCmd.Flags().StringVarP(&dateWindow, "date", "D", "2023-12-01", "Acquisition date or start/end window")
	err = viper.BindPFlag("date", ingestCmd.Flags().Lookup("date"))
	if err != nil {
		logrus.Exit(1)
	}

	ingestCmd.Flags().StringVarP(&bandGroupFile, "bandGroups", "b", "", "YAML file of band group configs, defaults to Sentinel-2 L2A")
	err = viper.BindPFlag("bandGroups", ingestCmd.Flags().Lookup("bandGroups"))
	if err != nil {
		logrus.Exit(1)
	}
}
