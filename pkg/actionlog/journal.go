package actionlog

import (
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/polesapart/populatefs/internal/errx"
	"github.com/polesapart/populatefs/pkg/storedb"
)

var journalSchema = storedb.Schema{
	`
CREATE TABLE actions (
  run_id TEXT NOT NULL,
  seq INTEGER NOT NULL,
  kind TEXT NOT NULL,
  path TEXT NOT NULL,
  source TEXT NOT NULL DEFAULT '',
  uid INTEGER NOT NULL DEFAULT 0,
  gid INTEGER NOT NULL DEFAULT 0,
  mode INTEGER NOT NULL DEFAULT 0,
  recorded_at TEXT NOT NULL,
  PRIMARY KEY (run_id, seq)
);
CREATE INDEX idx_actions_kind ON actions(run_id, kind);
`,
}

// Journal persists actions to SQLite, one row per action, grouped by run.
// Record cannot fail the caller; the first write error is kept and
// returned by Close.
type Journal struct {
	db    *sql.DB
	runID string
	seq   int
	err   error
	mu    sync.Mutex
}

func OpenJournal(path string) (*Journal, error) {
	db, err := storedb.Open(path, journalSchema)
	if err != nil {
		return nil, errx.Wrap(ErrOpenJournal, err)
	}
	return &Journal{db: db, runID: uuid.New().String()}, nil
}

// RunID identifies the rows written by this journal.
func (j *Journal) RunID() string {
	return j.runID
}

func (j *Journal) Record(a Action) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.err != nil {
		return
	}
	j.seq++
	_, err := j.db.Exec(
		`INSERT INTO actions(run_id, seq, kind, path, source, uid, gid, mode, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.runID, j.seq, string(a.Kind), a.Path, a.Source, a.UID, a.GID, a.Mode,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		j.err = errx.Wrap(ErrRecordAction, err)
	}
}

// Actions returns the actions of runID in recording order.
func (j *Journal) Actions(runID string) ([]Action, error) {
	rows, err := j.db.Query(
		`SELECT kind, path, source, uid, gid, mode FROM actions WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, errx.Wrap(ErrReadJournal, err)
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		var a Action
		var kind string
		if err := rows.Scan(&kind, &a.Path, &a.Source, &a.UID, &a.GID, &a.Mode); err != nil {
			return nil, errx.Wrap(ErrReadJournal, err)
		}
		a.Kind = Kind(kind)
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.Wrap(ErrReadJournal, err)
	}
	return actions, nil
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	closeErr := j.db.Close()
	if j.err != nil {
		return j.err
	}
	if closeErr != nil {
		return errx.Wrap(ErrCloseJournal, closeErr)
	}
	return nil
}
