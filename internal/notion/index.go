package notion

// Index maps external Strava IDs to existing destination records. It is
// rebuilt from the destination on every run; nothing survives across runs.
type Index struct {
	records    map[string]Record
	duplicates []string
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{records: make(map[string]Record)}
}

// Add inserts a record keyed by its external ID. On a duplicate the
// first-seen entry (pagination order) is kept and the existing record is
// returned so the caller can report the anomaly.
func (ix *Index) Add(r Record) (Record, bool) {
	if existing, ok := ix.records[r.ExternalID]; ok {
		ix.duplicates = append(ix.duplicates, r.ExternalID)
		return existing, true
	}
	ix.records[r.ExternalID] = r
	return r, false
}

// Lookup returns the record for an external ID, if present.
func (ix *Index) Lookup(externalID string) (Record, bool) {
	r, ok := ix.records[externalID]
	return r, ok
}

// Len returns the number of indexed records.
func (ix *Index) Len() int {
	return len(ix.records)
}

// Duplicates returns the external IDs that appeared more than once, in the
// order the extra copies were encountered.
func (ix *Index) Duplicates() []string {
	return ix.duplicates
}
