package storedb

import "errors"

var (
	ErrDBPathRequired = errors.New("database path is required")
	ErrOpenDB         = errors.New("open database")
	ErrLockDB         = errors.New("lock database")
	ErrConfigureDB    = errors.New("configure database")
	ErrSchemaVersion  = errors.New("read schema version")
	ErrSchemaTooNew   = errors.New("database schema is newer than this populatefs")
	ErrUpgradeSchema  = errors.New("upgrade schema")
)
