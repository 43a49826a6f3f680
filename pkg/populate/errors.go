package populate

import "errors"

var (
	ErrInvalidPhase      = errors.New("invalid phase transition")
	ErrImageAlreadyOpen  = errors.New("filesystem image already open")
	ErrImageOpen         = errors.New("filesystem image cannot be opened")
	ErrImageReadOnly     = errors.New("filesystem image cannot be opened with write privileges")
	ErrStatSource        = errors.New("stat source")
	ErrUnsupportedSource = errors.New("source is neither a file nor an existing path")
	ErrOpenSource        = errors.New("cannot open source for reading")
	ErrPopulate          = errors.New("populate from source")
	ErrImageClose        = errors.New("cannot close filesystem image properly")
	ErrCanceled          = errors.New("population canceled")
)
