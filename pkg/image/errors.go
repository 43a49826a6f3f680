package image

import "errors"

var (
	ErrDebugfsNotFound          = errors.New("debugfs not found")
	ErrDebugfsVersion           = errors.New("read debugfs version")
	ErrAlreadyOpen              = errors.New("image already open")
	ErrNotOpen                  = errors.New("image not open")
	ErrSuperblockNeedsBlockSize = errors.New("a backup superblock requires an explicit block size")
	ErrOpenImage                = errors.New("open image")
	ErrCloseImage               = errors.New("close image")
	ErrWalkSource               = errors.New("walk source directory")
	ErrReadLink                 = errors.New("read symlink")
	ErrFilespec                 = errors.New("read filespec")
)
