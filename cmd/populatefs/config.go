package main

import (
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/polesapart/populatefs/internal/errx"
	"github.com/polesapart/populatefs/pkg/idmap"
	"github.com/polesapart/populatefs/pkg/populate"
)

const envPrefix = "POPULATEFS"

type options struct {
	Image      string
	IOOptions  string
	BlockSize  uint64
	Superblock uint64
	Sources    []string
	Policy     idmap.Policy

	Verbose bool
	Debug   bool
	LogFile string
	Journal string
	Debugfs string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("superblock", "1")
	v.SetDefault("block-size", "0")
	v.SetDefault("shift", "0")
	v.SetDefault("debugfs", "debugfs")
	return v
}

func readConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return errx.With(ErrReadConfig, ": %s: %w", path, err)
	}
	return nil
}

// loadOptions resolves flags, environment and config file into one run.
// sources holds the -d/-D values in command-line order; the "sources" key
// is only consulted when none were given.
func loadOptions(v *viper.Viper, sources, args []string) (*options, error) {
	blockSize, err := parseUint(v.GetString("block-size"))
	if err != nil {
		return nil, errx.With(ErrBadBlockSize, " - %s", v.GetString("block-size"))
	}
	superblock, err := parseUint(v.GetString("superblock"))
	if err != nil {
		return nil, errx.With(ErrBadSuperblock, " - %s", v.GetString("superblock"))
	}
	shift, err := strconv.ParseInt(strings.TrimSpace(v.GetString("shift")), 0, 64)
	if err != nil {
		return nil, errx.With(ErrBadShift, " - %s", v.GetString("shift"))
	}

	opts := &options{
		BlockSize:  blockSize,
		Superblock: superblock,
		Sources:    sources,
		Policy: idmap.Policy{
			SquashUIDs:  v.GetBool("squash-uids") || v.GetBool("squash"),
			SquashPerms: v.GetBool("squash-perms") || v.GetBool("squash"),
			Shift:       shift,
		},
		Verbose: v.GetBool("verbose"),
		Debug:   v.GetBool("debug"),
		LogFile: v.GetString("log-file"),
		Journal: v.GetString("journal"),
		Debugfs: v.GetString("debugfs"),
	}
	if len(opts.Sources) == 0 {
		opts.Sources = v.GetStringSlice("sources")
	}

	if len(opts.Sources) == 0 && !opts.Policy.SquashUIDs {
		return nil, ErrNoSources
	}
	if len(args) != 1 {
		return nil, errx.With(ErrImageArgument, ", got %d", len(args))
	}
	if superblock > 1 && blockSize == 0 {
		return nil, errx.With(ErrSuperblockNeedsBlockSize, ": superblock %d", superblock)
	}

	// Everything after the first '?' is handed to libext2fs as io options.
	opts.Image, opts.IOOptions, _ = strings.Cut(args[0], "?")
	return opts, nil
}

// parseUint accepts decimal, 0x hex and leading-zero octal numbers.
func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(s), 0, 64)
}

func (o *options) populateConfig() populate.Config {
	return populate.Config{
		Image:      o.Image,
		IOOptions:  o.IOOptions,
		Superblock: o.Superblock,
		BlockSize:  o.BlockSize,
		Sources:    o.Sources,
		Policy:     o.Policy,
	}
}
