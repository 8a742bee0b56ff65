// Command hearthis-dl downloads tracks and playlists from hearthis.at,
// writes normalized ID3 tags with cover art, and optionally transcodes the
// result. Completed tracks can be recorded in an archive file so interrupted
// playlist runs resume where they left off.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hearthis-dl/hearthis-dl/internal/archive"
	"github.com/hearthis-dl/hearthis-dl/internal/config"
	"github.com/hearthis-dl/hearthis-dl/internal/download"
)

const usage = `hearthis-dl downloads tracks and playlists from hearthis.at.

Usage:
  hearthis-dl [flags] <URL>

The URL must point at a track page (hearthis.at/user/track/) or a playlist
page (hearthis.at/user/set/name/).

Flags:
`

func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet("hearthis-dl", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fmt.Fprint(os.Stderr, flags.FlagUsages())
	}

	var (
		output       = flags.StringP("output", "o", "", "output directory")
		intervalExpr = flags.StringP("interval", "i", "", "playlist member selection, 1-based inclusive (e.g. 3-7, 3-, -7)")
		archivePath  = flags.String("archive", "", "record completed track ids in this file and skip them on later runs")
		artistPrefix = flags.Bool("artist-prefix", false, "prepend the artist name to file names")
		noSubfolder  = flags.Bool("no-subfolder", false, "place playlist tracks directly in the output directory")
		skipExisting = flags.Bool("skip-existing", false, "skip tracks whose destination file already exists")
		keepTags     = flags.Bool("keep-tags", false, "keep the tags shipped in the audio file instead of rewriting them")
		toFlac       = flags.Bool("flac", false, "convert lossless downloads to FLAC")
		toFlac16     = flags.Bool("flac16", false, "convert lossless downloads to 16-bit FLAC")
		toFlacMin    = flags.Bool("flacmin", false, "convert lossless downloads to 16-bit FLAC capped at 48 kHz")
		toMP3        = flags.Bool("onlymp3", false, "convert non-MP3 downloads to MP3")
		concurrency  = flags.IntP("concurrency", "c", 0, "number of playlist members downloaded in parallel")
		configPath   = flags.String("config", "", "path to a YAML settings file")
		verbose      = flags.BoolP("verbose", "v", false, "enable debug logging")
	)

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return 1
	}
	rawURL := flags.Arg(0)

	settings, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
		return 1
	}

	// Flags overlay the settings file; only flags the user actually set win.
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "output":
			settings.OutputPath = *output
		case "interval":
			settings.Interval = *intervalExpr
		case "archive":
			settings.ArchivePath = *archivePath
		case "artist-prefix":
			settings.ArtistPrefix = *artistPrefix
		case "no-subfolder":
			settings.NoSubfolder = *noSubfolder
		case "skip-existing":
			settings.SkipExisting = *skipExisting
		case "keep-tags":
			settings.KeepOriginalTags = *keepTags
		case "concurrency":
			settings.Concurrency = *concurrency
		}
	})

	policies := 0
	for flag, policy := range map[*bool]string{
		toFlac:    "flac",
		toFlac16:  "flac16",
		toFlacMin: "flacmin",
		toMP3:     "onlymp3",
	} {
		if *flag {
			policies++
			settings.ConversionPolicy = policy
		}
	}
	if policies > 1 {
		fatal(errors.New("at most one of --flac, --flac16, --flacmin, --onlymp3 may be given"))
		return 1
	}

	if err := settings.Validate(); err != nil {
		fatal(err)
		return 1
	}

	logger, err := newLogger(*verbose)
	if err != nil {
		fatal(err)
		return 1
	}
	defer logger.Sync()

	var store *archive.Store
	if settings.ArchivePath != "" {
		store, err = archive.Open(settings.ArchivePath)
		if err != nil {
			fatal(err)
			return 1
		}
	}

	manager, err := download.NewManager(settings, store, logger.Sugar())
	if err != nil {
		fatal(err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\ninterrupted, finishing in-flight work...")
		cancel()
	}()

	summary, err := manager.Run(ctx, rawURL)
	if summary != nil {
		printSummary(summary)
	}
	if err != nil {
		if ctx.Err() != nil {
			return 130
		}
		fatal(err)
		return 1
	}
	return 0
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return cfg.Build()
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
}

func printSummary(summary *download.Summary) {
	downloaded, skipped, failed := summary.Counts()

	if len(summary.Results) > 1 {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"#", "Track", "Outcome"})
		table.SetBorder(false)
		for i, res := range summary.Results {
			title := res.Title
			if title == "" {
				title = res.Identity.SourceURL
			}
			table.Append([]string{strconv.Itoa(i + 1), title, res.Outcome.String()})
		}
		table.Render()
	}

	if summary.PlaylistTitle != "" {
		fmt.Printf("%s: ", summary.PlaylistTitle)
	}
	fmt.Printf("%s, %s, %s\n",
		color.GreenString("%d downloaded", downloaded),
		color.YellowString("%d skipped", skipped),
		color.RedString("%d failed", failed))
}
