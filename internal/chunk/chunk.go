// Package chunk splits write batches into bounded pieces so no single
// transaction grows with the size of a remote delta.
package chunk

// DefaultSize is the chunk size used when none is configured.
const DefaultSize = 200

// Split returns consecutive sub-slices of items, each at most size long.
// Order is preserved and every item appears exactly once. A size <= 0 uses
// DefaultSize. The returned chunks share the backing array of items.
func Split[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		size = DefaultSize
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}
