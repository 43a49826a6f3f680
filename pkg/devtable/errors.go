package devtable

import "errors"

var (
	ErrRead         = errors.New("read device table")
	ErrParse        = errors.New("parse device table")
	ErrFieldCount   = errors.New("wrong number of fields")
	ErrRelativePath = errors.New("path must be absolute")
	ErrUnknownType  = errors.New("unknown entry type")
	ErrBadNumber    = errors.New("bad number")
)
