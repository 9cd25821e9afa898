// Package metadata maps vector index rows to their owning chunks and keeps
// the document records. Rows are dense: entry i of the table describes row i
// of the vector index, which is what makes the bijection with the index
// checkable by a plain count comparison.
package metadata

import (
	"encoding/json"
	"fmt"

	"docqa/internal/domain"
)

// Entry is one row of the table.
type Entry struct {
	DocID   string `json:"doc_id"`
	Ordinal int    `json:"ordinal"`
	Text    string `json:"text"`
}

// Chunk converts the entry back to its chunk.
func (e Entry) Chunk() domain.Chunk {
	return domain.Chunk{DocID: e.DocID, Ordinal: e.Ordinal, Text: e.Text}
}

type docRecord struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	ChunkOrdinals []int  `json:"chunk_ordinals"`
}

// Table holds the row -> chunk entries and the ordered document records.
// Not synchronized; the document store owns all access.
type Table struct {
	entries []Entry
	docs    map[string]docRecord
	order   []string
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{docs: make(map[string]docRecord)}
}

// Clone returns an independent copy.
func (t *Table) Clone() *Table {
	c := &Table{
		entries: make([]Entry, len(t.entries)),
		docs:    make(map[string]docRecord, len(t.docs)),
		order:   make([]string, len(t.order)),
	}
	copy(c.entries, t.entries)
	copy(c.order, t.order)
	for id, d := range t.docs {
		d.ChunkOrdinals = append([]int(nil), d.ChunkOrdinals...)
		c.docs[id] = d
	}
	return c
}

// Len returns the number of row entries.
func (t *Table) Len() int { return len(t.entries) }

// Put records the chunk for the given row. Rows are append-only and dense, so
// the row must be the next free one.
func (t *Table) Put(row int, ch domain.Chunk) error {
	if row != len(t.entries) {
		return fmt.Errorf("%w: put at row %d, next free row is %d", domain.ErrIndexCorruption, row, len(t.entries))
	}
	t.entries = append(t.entries, Entry{DocID: ch.DocID, Ordinal: ch.Ordinal, Text: ch.Text})
	return nil
}

// Get resolves a row to its chunk.
func (t *Table) Get(row int) (domain.Chunk, bool) {
	if row < 0 || row >= len(t.entries) {
		return domain.Chunk{}, false
	}
	return t.entries[row].Chunk(), true
}

// AddDocument records a document. The id must be unused.
func (t *Table) AddDocument(doc domain.Document) error {
	if _, exists := t.docs[doc.ID]; exists {
		return fmt.Errorf("%w: %q", domain.ErrDuplicateDocument, doc.ID)
	}
	t.docs[doc.ID] = docRecord{
		ID:            doc.ID,
		Title:         doc.Title,
		Content:       doc.Content,
		ChunkOrdinals: append([]int(nil), doc.ChunkOrdinals...),
	}
	t.order = append(t.order, doc.ID)
	return nil
}

// HasDocument reports whether the id is known.
func (t *Table) HasDocument(id string) bool {
	_, ok := t.docs[id]
	return ok
}

// Document returns the full record for the id.
func (t *Table) Document(id string) (domain.Document, bool) {
	d, ok := t.docs[id]
	if !ok {
		return domain.Document{}, false
	}
	return domain.Document{
		ID:            d.ID,
		Title:         d.Title,
		Content:       d.Content,
		ChunkOrdinals: append([]int(nil), d.ChunkOrdinals...),
	}, true
}

// Documents lists summaries in insertion order. Repeated calls without a
// mutation in between return identical output.
func (t *Table) Documents() []domain.DocumentSummary {
	out := make([]domain.DocumentSummary, 0, len(t.order))
	for _, id := range t.order {
		d := t.docs[id]
		out = append(out, domain.DocumentSummary{ID: d.ID, Title: d.Title, Chunks: len(d.ChunkOrdinals)})
	}
	return out
}

// RemoveByDoc drops the document and all of its row entries, compacting the
// surviving entries to new dense rows in their old row order. It returns the
// removed rows in ascending order. The caller must rebuild the vector index
// with the matching surviving-row order so both sides agree on the new rows.
func (t *Table) RemoveByDoc(docID string) ([]int, error) {
	if _, ok := t.docs[docID]; !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrNotFound, docID)
	}
	var removed []int
	survivors := t.entries[:0:0]
	for row, e := range t.entries {
		if e.DocID == docID {
			removed = append(removed, row)
			continue
		}
		survivors = append(survivors, e)
	}
	t.entries = survivors
	delete(t.docs, docID)
	for i, id := range t.order {
		if id == docID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return removed, nil
}

// SurvivingRows returns the rows not owned by docID, in ascending order.
func (t *Table) SurvivingRows(docID string) []int {
	var rows []int
	for row, e := range t.entries {
		if e.DocID != docID {
			rows = append(rows, row)
		}
	}
	return rows
}

type tableState struct {
	Entries   []Entry     `json:"entries"`
	Documents []docRecord `json:"documents"`
}

// MarshalJSON serializes the table for the metadata artifact.
func (t *Table) MarshalJSON() ([]byte, error) {
	st := tableState{Entries: t.entries, Documents: make([]docRecord, 0, len(t.order))}
	for _, id := range t.order {
		st.Documents = append(st.Documents, t.docs[id])
	}
	return json.Marshal(st)
}

// UnmarshalJSON restores the table and validates its internal consistency.
// Any violation is reported as index corruption; a table from a torn write
// must never be served.
func (t *Table) UnmarshalJSON(data []byte) error {
	var st tableState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("%w: metadata artifact unreadable: %v", domain.ErrIndexCorruption, err)
	}
	docs := make(map[string]docRecord, len(st.Documents))
	order := make([]string, 0, len(st.Documents))
	perDoc := make(map[string]int)
	for _, d := range st.Documents {
		if _, dup := docs[d.ID]; dup {
			return fmt.Errorf("%w: duplicate document record %q", domain.ErrIndexCorruption, d.ID)
		}
		docs[d.ID] = d
		order = append(order, d.ID)
	}
	for row, e := range st.Entries {
		if _, ok := docs[e.DocID]; !ok {
			return fmt.Errorf("%w: row %d references unknown document %q", domain.ErrIndexCorruption, row, e.DocID)
		}
		perDoc[e.DocID]++
	}
	for id, d := range docs {
		if perDoc[id] != len(d.ChunkOrdinals) {
			return fmt.Errorf("%w: document %q has %d rows, expected %d",
				domain.ErrIndexCorruption, id, perDoc[id], len(d.ChunkOrdinals))
		}
	}
	t.entries = st.Entries
	t.docs = docs
	t.order = order
	return nil
}
