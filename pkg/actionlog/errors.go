package actionlog

import "errors"

var (
	ErrOpenJournal  = errors.New("open action journal")
	ErrRecordAction = errors.New("record action")
	ErrReadJournal  = errors.New("read action journal")
	ErrCloseJournal = errors.New("close action journal")
)
