package main

import "errors"

// Usage errors
var (
	ErrNoSources     = errors.New("no -d or -D source given")
	ErrImageArgument = errors.New("exactly one image argument is required")
)

// Configuration errors
var (
	ErrBadBlockSize             = errors.New("Bad block size")
	ErrBadSuperblock            = errors.New("Bad superblock number")
	ErrBadShift                 = errors.New("Bad shift number")
	ErrReadConfig               = errors.New("read config file")
	ErrSuperblockNeedsBlockSize = errors.New("a superblock other than 1 requires -b")
)
