// gpx-replay runs a recorded GPX track through the recording pipeline and
// prints the runs it finds, grouped by slope.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chrissnell/snowrecorder/internal/app"
	"github.com/chrissnell/snowrecorder/internal/gpx"
	"github.com/chrissnell/snowrecorder/internal/log"
	"github.com/chrissnell/snowrecorder/internal/replay"
	"github.com/chrissnell/snowrecorder/internal/session"
	"github.com/chrissnell/snowrecorder/internal/slope"
	"github.com/chrissnell/snowrecorder/internal/storage/sqlite"
	"github.com/chrissnell/snowrecorder/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "", "Optional YAML configuration supplying the slope database and tuning")
	slopesFile := flag.String("slopes", "", "Slope database (.json, .yaml or .geojson); overrides the configuration")
	record := flag.String("record", "", "Also record the replayed session into this SQLite database")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] track.gpx\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	trackFile := flag.Arg(0)

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	params := session.DefaultParams()
	var idx *slope.Index
	if *cfgFile != "" {
		provider := config.NewYAMLProvider(*cfgFile)
		p, i, err := app.LoadPipeline(provider)
		provider.Close()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		params, idx = p, i
	}
	if *slopesFile != "" {
		i, err := slope.LoadFile(*slopesFile)
		if err != nil {
			log.Fatalf("Failed to load slopes: %v", err)
		}
		idx = i
	}

	track, err := gpx.Parse(trackFile)
	if err != nil {
		log.Fatalf("Failed to read track: %v", err)
	}
	samples := track.Samples()
	log.Infof("Loaded %d samples from %s", len(samples), trackFile)

	id := strings.TrimSuffix(filepath.Base(trackFile), filepath.Ext(trackFile))
	res, err := replay.Run(id, samples, params, idx, log.GetSugaredLogger())
	if err != nil {
		log.Fatalf("Replay failed: %v", err)
	}

	if *record != "" {
		if err := recordSession(*record, res); err != nil {
			log.Fatalf("Failed to record session: %v", err)
		}
		log.Infof("Recorded session %s into %s", id, *record)
	}

	if err := replay.WriteReport(os.Stdout, res); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
}

func recordSession(path string, res *replay.Result) error {
	store, err := sqlite.New(path, log.GetSugaredLogger())
	if err != nil {
		return err
	}
	defer store.Close()

	for _, e := range res.Events {
		if err := store.StoreEvent(e); err != nil {
			return err
		}
	}
	return nil
}
