package queue

import "github.com/dgnsrekt/tunebox/internal/mtypes"

// Page is one display page of a queue.
type Page struct {
	// Number is 1-based.
	Number     int
	TotalPages int
	// Offset is the 0-based queue index of Entries[0].
	Offset  int
	Entries []mtypes.QueueEntry
	Total   int
}

// Page returns the 1-based page number of size entries per page. Out of
// range page numbers are clamped.
func (q *Queue) Page(number, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}

	snap := q.Snapshot()
	total := len(snap)
	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}

	if number < 1 {
		number = 1
	}
	if number > pages {
		number = pages
	}

	start := (number - 1) * size
	end := start + size
	if end > total {
		end = total
	}

	return Page{
		Number:     number,
		TotalPages: pages,
		Offset:     start,
		Entries:    snap[start:end],
		Total:      total,
	}
}
