package geopackage

import "fmt"

// ObjectStatus is the outcome of handling one dependent object during a
// migration.
type ObjectStatus int

const (
	// StatusRecreated: the object was rewritten and created again.
	StatusRecreated ObjectStatus = iota
	// StatusSkipped: the object was intentionally not copied (spatial index
	// triggers on a table copy).
	StatusSkipped
	// StatusDiscarded: the object referenced a dropped column.
	StatusDiscarded
	// StatusFailed: recreating or dropping the object returned an error.
	StatusFailed
	// StatusDropped: a view was dropped ahead of an in-place alteration.
	StatusDropped
)

func (s ObjectStatus) String() string {
	switch s {
	case StatusRecreated:
		return "recreated"
	case StatusSkipped:
		return "skipped"
	case StatusDiscarded:
		return "discarded"
	case StatusFailed:
		return "failed"
	case StatusDropped:
		return "dropped"
	}
	return fmt.Sprintf("ObjectStatus(%d)", int(s))
}

// ObjectResult records what happened to one index, trigger or view.
type ObjectResult struct {
	Name   string
	Type   CatalogType
	Status ObjectStatus
	// SQL is the statement that was executed, or attempted.
	SQL string
	// Err is set for StatusFailed.
	Err error
}

// Report describes a completed migration.
type Report struct {
	Table     string // source table
	NewTable  string // destination table, equal to Table for in-place changes
	Rows      int64  // rows transferred
	Objects   []ObjectResult
	FKChecked bool // a foreign key check ran before commit
}

func (r *Report) add(res ObjectResult) {
	r.Objects = append(r.Objects, res)
}

// ByStatus returns the results with the given status.
func (r *Report) ByStatus(status ObjectStatus) []ObjectResult {
	var out []ObjectResult
	for _, o := range r.Objects {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}

// Object returns the result for the named object, or nil.
func (r *Report) Object(name string) *ObjectResult {
	for i := range r.Objects {
		if r.Objects[i].Name == name {
			return &r.Objects[i]
		}
	}
	return nil
}

// Failed returns the objects that could not be dropped or recreated.
func (r *Report) Failed() []ObjectResult {
	return r.ByStatus(StatusFailed)
}
