package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// sourceList appends to a list shared by -d and -D, so the order of
// sources on the command line is kept across both flags.
type sourceList struct {
	list *[]string
}

func (s sourceList) String() string { return strings.Join(*s.list, ",") }

func (s sourceList) Set(v string) error {
	*s.list = append(*s.list, v)
	return nil
}

func (s sourceList) Type() string { return "path" }

var _ pflag.Value = sourceList{}

var boundKeys = []string{
	"block-size",
	"superblock",
	"squash-uids",
	"squash-perms",
	"squash",
	"shift",
	"verbose",
	"debug",
	"log-file",
	"journal",
	"debugfs",
}

func newRootCmd() *cobra.Command {
	v := newViper()
	var sources []string

	cmd := &cobra.Command{
		Use:   "populatefs [options] (image | diskimage?offset=<starting-byte-of-ext4-partition>)",
		Short: "Manipulate ext4 disk images from directories/files",
		Long: `Populate an existing ext2/3/4 filesystem image from host directories and
device tables, without mounting it.

Sources given with -d and -D are applied in command-line order. Hard links
between files of one directory source are kept as hard links in the image.`,
		Example: `  populatefs -U -d ./rootfs disk.img
  populatefs -q -D devices.txt -d ./rootfs "sdcard.img?offset=1048576"
  populatefs -S 100000 -d ./rootfs -b 4096 -s 32768 disk.img`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPopulate(cmd, v, sources, args)
		},
	}

	f := cmd.Flags()
	f.SortFlags = false
	f.VarP(sourceList{&sources}, "directory", "d", "Add the given directory and contents at a particular path to root")
	f.VarP(sourceList{&sources}, "filespec", "D", "Add device nodes and directories from filespec")
	f.StringP("block-size", "b", "0", "Override autodetection of the filesystem block size, in bytes")
	f.StringP("superblock", "s", "1", "Specify the location of the ext superblock")
	f.BoolP("squash-uids", "U", false, "Squash owners making all files be owned by root:root")
	f.BoolP("squash-perms", "P", false, "Squash permissions on all files")
	f.BoolP("squash", "q", false, `Same as "-U -P"`)
	f.StringP("shift", "S", "0", "Shift UIDs & GIDs by decrementing S-many from source value")
	f.BoolP("version", "V", false, "Show version")
	f.BoolP("verbose", "v", false, "Be verbose")
	f.BoolP("debug", "w", false, "Be even more verbose")
	f.String("config", "", "Read options from a yaml, toml or json file")
	f.String("log-file", "", "Also write the log to this file, rotated")
	f.String("journal", "", "Record every image action in this SQLite journal")
	f.String("debugfs", "debugfs", "debugfs binary used to write the image")

	for _, key := range boundKeys {
		v.BindPFlag(key, f.Lookup(key))
	}
	return cmd
}

// usageError prints err followed by the usage text and exits with 1.
func usageError(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	cmd.SetOut(cmd.ErrOrStderr())
	cmd.Usage()
	return commandExit(1)
}

func isUsageError(err error) bool {
	return errors.Is(err, ErrNoSources) || errors.Is(err, ErrImageArgument)
}
