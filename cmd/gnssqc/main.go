// Command gnssqc loads RINEX and SP3 inputs into a qc.DataStore, runs a
// configurable battery of analyses over them, and writes a JSON report.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/de-bkg/gognss/pkg/gnss"
	"github.com/de-bkg/gognss/pkg/qc"
)

// Exit codes: 0 success, 2 input/configuration error, 3 everything else
// (merge, resource, analysis, cancellation).
const (
	exitOK         = 0
	exitInputError = 2
	exitRunError   = 3
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	app := &cli.App{
		Name:      "gnssqc",
		HelpName:  "gnssqc",
		Usage:     "GNSS observation/navigation quality-control engine",
		Version:   "v0.1.0",
		Compiled:  time.Now(),
		Copyright: "(c) 2020 BKG Frankfurt",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "obs", Usage: "RINEX observation file (repeatable)"},
			&cli.StringSliceFlag{Name: "nav", Usage: "RINEX navigation file (repeatable)"},
			&cli.StringSliceFlag{Name: "meteo", Usage: "RINEX meteo file (repeatable)"},
			&cli.StringSliceFlag{Name: "clock", Usage: "RINEX clock file (repeatable)"},
			&cli.StringSliceFlag{Name: "sp3", Usage: "SP3 precise orbit/clock file (repeatable)"},
			&cli.StringSliceFlag{Name: "analysis", Usage: "analysis to enable (repeatable); see --list-analyses"},
			&cli.StringFlag{Name: "indexing", Value: "auto", Usage: "source indexing mode: auto, receiver, operator, agency"},
			&cli.StringFlag{Name: "timescale", Usage: "target timescale to transpose every record into, e.g. gps, utc"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write the JSON report here instead of stdout"},
			&cli.BoolFlag{Name: "list-analyses", Usage: "print the recognized analysis names and exit"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		var qcErr *qc.Error
		if errors.As(err, &qcErr) {
			log.WithError(qcErr).Error("gnssqc: run failed")
			if qcErr.Kind == qc.KindInput {
				os.Exit(exitInputError)
			}
			os.Exit(exitRunError)
		}
		log.WithError(err).Error("gnssqc: run failed")
		os.Exit(exitInputError)
	}
}

func run(c *cli.Context) error {
	if c.Bool("list-analyses") {
		for _, name := range []qc.AnalysisOption{
			qc.OptSummary, qc.OptRTKSummary, qc.OptPhaseObservations, qc.OptPseudoRangeObservations,
			qc.OptDopplerObservations, qc.OptPowerObservations, qc.OptSamplingGapHistogram,
			qc.OptCombinationGFPhase, qc.OptCombinationGFCode, qc.OptCombinationIFPhase, qc.OptCombinationIFCode,
			qc.OptCombinationMW, qc.OptMultipath, qc.OptPseudoRangeResiduals, qc.OptPhaseResiduals,
			qc.OptClockResiduals, qc.OptSP3Summary, qc.OptOrbitResiduals, qc.OptSP3TemporalResiduals,
			qc.OptMeteoObservations, qc.OptPVT, qc.OptCGGTTS, qc.OptNaviPlot,
		} {
			fmt.Fprintln(c.App.Writer, name)
		}
		return nil
	}

	mode, err := parseIndexingMode(c.String("indexing"))
	if err != nil {
		return err
	}

	store := qc.NewDataStore()
	if err := loadInputs(c, store, mode); err != nil {
		return err
	}

	if ts := c.String("timescale"); ts != "" {
		target, err := gnss.TimescaleByName(ts)
		if err != nil {
			return fmt.Errorf("gnssqc: %w", err)
		}
		tr := qc.NewTransposer(target, nil)
		flagged := tr.TransposeMut(store)
		for _, desc := range flagged {
			log.WithField("descriptor", desc.String()).Warn("gnssqc: no source timescale derivable, left unchanged")
		}
	}

	analysisNames := c.StringSlice("analysis")
	opts := make([]qc.AnalysisBuilderFunc, 0, len(analysisNames))
	for _, name := range analysisNames {
		opts = append(opts, qc.WithOption(qc.AnalysisOption(strings.TrimSpace(name))))
	}
	builder, err := qc.NewAnalysisBuilder(opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runner := qc.NewRunner(builder)
	report, err := runner.Process(ctx, store)
	if err != nil {
		return err
	}

	out := c.App.Writer
	if path := c.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("gnssqc: create output %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}
	if err := report.WriteJSON(out); err != nil {
		return fmt.Errorf("gnssqc: write report: %w", err)
	}
	return nil
}

func parseIndexingMode(s string) (qc.IndexingMode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return qc.IndexingAuto, nil
	case "receiver", "gnss-receiver":
		return qc.IndexingGnssReceiver, nil
	case "operator":
		return qc.IndexingOperator, nil
	case "agency":
		return qc.IndexingAgency, nil
	default:
		return 0, fmt.Errorf("gnssqc: unknown indexing mode %q", s)
	}
}

func loadInputs(c *cli.Context, store *qc.DataStore, mode qc.IndexingMode) error {
	for _, path := range c.StringSlice("obs") {
		if _, err := loadObs(store, path, mode); err != nil {
			return err
		}
	}
	for _, path := range c.StringSlice("nav") {
		if _, err := loadNav(store, path); err != nil {
			return err
		}
	}
	for _, path := range c.StringSlice("meteo") {
		if _, err := store.LoadMeteoFile(path); err != nil {
			return err
		}
	}
	for _, path := range c.StringSlice("clock") {
		if _, err := store.LoadClockFile(path); err != nil {
			return err
		}
	}
	for _, path := range c.StringSlice("sp3") {
		if _, err := loadSP3(store, path); err != nil {
			return err
		}
	}
	return nil
}

func loadObs(store *qc.DataStore, path string, mode qc.IndexingMode) (qc.SourceDescriptor, error) {
	if strings.HasSuffix(path, ".gz") {
		return store.LoadGzipObsFile(path, mode)
	}
	return store.LoadObsFile(path, mode)
}

func loadNav(store *qc.DataStore, path string) (qc.SourceDescriptor, error) {
	if strings.HasSuffix(path, ".gz") {
		return store.LoadGzipNavFile(path)
	}
	return store.LoadNavFile(path)
}

func loadSP3(store *qc.DataStore, path string) (qc.SourceDescriptor, error) {
	if strings.HasSuffix(path, ".gz") {
		return store.LoadGzipSP3File(path)
	}
	return store.LoadSP3File(path)
}
