package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/polesapart/populatefs/pkg/actionlog"
	"github.com/polesapart/populatefs/pkg/image"
	"github.com/polesapart/populatefs/pkg/logger"
	"github.com/polesapart/populatefs/pkg/populate"
)

func runPopulate(cmd *cobra.Command, v *viper.Viper, sources, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
		printVersion(ctx, out, v.GetString("debugfs"))
		return nil
	}

	configPath, _ := cmd.Flags().GetString("config")
	if err := readConfigFile(v, configPath); err != nil {
		return err
	}
	opts, err := loadOptions(v, sources, args)
	if err != nil {
		if isUsageError(err) {
			return usageError(cmd, err)
		}
		return err
	}

	logger.Init(logger.Options{
		Verbose: opts.Verbose,
		Debug:   opts.Debug,
		File:    opts.LogFile,
		Output:  cmd.ErrOrStderr(),
	})
	log := logger.GetLogger("populatefs")
	if opts.Verbose || opts.Debug {
		fmt.Fprintf(out, "populatefs %s\n", version)
	}

	recorder := actionlog.Multi{actionlog.NewLogRecorder(logger.GetLogger("action"))}
	if opts.Journal != "" {
		journal, err := actionlog.OpenJournal(opts.Journal)
		if err != nil {
			return err
		}
		defer func() {
			if err := journal.Close(); err != nil {
				log.WithError(err).Warn("journal not fully written")
			}
		}()
		log.WithField("run_id", journal.RunID()).Info("recording actions to journal")
		recorder = append(recorder, journal)
	}

	img := image.New(
		image.WithDebugfs(opts.Debugfs),
		image.WithRecorder(recorder),
		image.WithLogger(logger.GetLogger("debugfs")),
	)
	p := populate.New(img,
		populate.WithRecorder(recorder),
		populate.WithOutput(out),
		populate.WithLogger(logger.GetLogger("populate")),
	)

	res, err := p.Run(ctx, opts.populateConfig())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Filesystem %s populated.\n", opts.Image)
	printSummary(out, res, img.Stats())
	return nil
}

func printSummary(w io.Writer, res *populate.Result, stats image.Stats) {
	fmt.Fprintf(w, "%d source(s): %s directories, %s files (%s), %s hard links, %s symlinks, %s device nodes",
		res.Files+res.Dirs,
		humanize.Comma(int64(stats.Dirs)),
		humanize.Comma(int64(stats.Files)),
		humanize.IBytes(uint64(stats.Bytes)),
		humanize.Comma(int64(stats.Links)),
		humanize.Comma(int64(stats.Symlinks)),
		humanize.Comma(int64(stats.Nodes)),
	)
	if n := len(res.Warnings); n > 0 {
		fmt.Fprintf(w, ", %d warning(s)", n)
	}
	fmt.Fprintln(w)
}
