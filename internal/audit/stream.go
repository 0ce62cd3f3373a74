package audit

import "context"

const defaultPageSize = 100

// Stream is a lazy, restartable iterator over audit records matching a
// filter, ascending by timestamp. Persist Cursor() and pass it back to
// ResumeStream to continue after the last record seen.
type Stream struct {
	store    Store
	filter   Filter
	cursor   Cursor
	pageSize int
	buf      []Record
	done     bool
}

// NewStream starts a stream from the beginning of the matching records.
func NewStream(store Store, filter Filter) *Stream {
	return ResumeStream(store, filter, Cursor{})
}

// ResumeStream starts a stream strictly after the given cursor.
func ResumeStream(store Store, filter Filter, cursor Cursor) *Stream {
	return &Stream{store: store, filter: filter, cursor: cursor, pageSize: defaultPageSize}
}

// Next returns the next record. The second return is false once the stream
// is exhausted.
func (s *Stream) Next(ctx context.Context) (Record, bool, error) {
	if len(s.buf) == 0 {
		if s.done {
			return Record{}, false, nil
		}
		page, err := s.store.Page(ctx, s.filter, s.cursor, s.pageSize)
		if err != nil {
			return Record{}, false, err
		}
		if len(page) < s.pageSize {
			s.done = true
		}
		if len(page) == 0 {
			return Record{}, false, nil
		}
		s.buf = page
	}
	rec := s.buf[0]
	s.buf = s.buf[1:]
	s.cursor = Cursor{OccurredAt: rec.OccurredAt, ID: rec.ID}
	return rec, true, nil
}

// Cursor reports the position after the last record returned by Next.
func (s *Stream) Cursor() Cursor {
	return s.cursor
}
