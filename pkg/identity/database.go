// Package identity matches live face embeddings against the bulletin photo
// database and keeps the displayed match stable across frames.
package identity

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Record is one indexed bulletin photo. Records are immutable once indexed.
type Record struct {
	Name         string    `json:"name"`
	Year         string    `json:"year"`
	OriginalPath string    `json:"original_path"`
	Embedding    []float32 `json:"-"`
}

// Database is an immutable snapshot of indexed records. A refresh produces a
// new Database; readers holding the old one keep a complete, valid view.
type Database struct {
	records    []Record
	vecs       [][]float64 // unit-length copies of the embeddings
	index      map[string]int
	generation uint64
}

// NewDatabase builds a snapshot from records. The slice is copied.
func NewDatabase(records []Record) *Database {
	return newDatabase(records, 0)
}

func newDatabase(records []Record, generation uint64) *Database {
	db := &Database{
		records:    make([]Record, len(records)),
		vecs:       make([][]float64, len(records)),
		index:      make(map[string]int, len(records)),
		generation: generation,
	}
	copy(db.records, records)
	for i, r := range db.records {
		db.vecs[i] = unit(r.Embedding)
		db.index[r.OriginalPath] = i
	}
	return db
}

// With returns a new snapshot holding the receiver's records followed by more.
func (d *Database) With(more []Record) *Database {
	all := make([]Record, 0, d.Len()+len(more))
	var gen uint64
	if d != nil {
		all = append(all, d.records...)
		gen = d.generation
	}
	all = append(all, more...)
	return newDatabase(all, gen+1)
}

// Len returns the number of records; a nil Database is empty.
func (d *Database) Len() int {
	if d == nil {
		return 0
	}
	return len(d.records)
}

// Generation increases with every snapshot derived through With.
func (d *Database) Generation() uint64 {
	if d == nil {
		return 0
	}
	return d.generation
}

// Record returns the record at index i.
func (d *Database) Record(i int) Record {
	return d.records[i]
}

// Records returns a copy of all records in index order.
func (d *Database) Records() []Record {
	if d == nil {
		return nil
	}
	out := make([]Record, len(d.records))
	copy(out, d.records)
	return out
}

// Has reports whether a record with the given original path is indexed.
func (d *Database) Has(originalPath string) bool {
	if d == nil {
		return false
	}
	_, ok := d.index[originalPath]
	return ok
}

// Similarities returns the cosine similarity of q against every record.
// Records whose embedding length differs from q score -1.
func (d *Database) Similarities(q []float32) []float64 {
	if d.Len() == 0 {
		return nil
	}
	qv := unit(q)
	sims := make([]float64, len(d.vecs))
	for i, v := range d.vecs {
		if len(v) != len(qv) || len(v) == 0 {
			sims[i] = -1
			continue
		}
		sims[i] = floats.Dot(qv, v)
	}
	return sims
}

// Ranked returns record indices ordered by descending similarity, at most k of them.
// Equal scores keep index order.
func Ranked(sims []float64, k int) []int {
	idx := make([]int, len(sims))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return sims[idx[a]] > sims[idx[b]]
	})
	if k > 0 && k < len(idx) {
		idx = idx[:k]
	}
	return idx
}

// unit converts v to float64 and scales it to unit length.
func unit(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	if n := floats.Norm(out, 2); n > 0 {
		floats.Scale(1/n, out)
	}
	return out
}
