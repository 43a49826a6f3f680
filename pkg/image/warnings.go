package image

import "github.com/scylladb/go-set/strset"

// warnings keeps advisory messages in first-seen order, without repeats.
type warnings struct {
	seen *strset.Set
	list []string
}

func newWarnings() *warnings {
	return &warnings{seen: strset.New()}
}

func (w *warnings) add(msg string) {
	if w.seen.Has(msg) {
		return
	}
	w.seen.Add(msg)
	w.list = append(w.list, msg)
}

func (w *warnings) all() []string {
	return append([]string(nil), w.list...)
}
