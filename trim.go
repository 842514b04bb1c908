package chathistory

import "sort"

// TrimThreads returns the maxThreads most recently updated threads,
// ordered by UpdatedAt descending. Threads beyond the ceiling are
// dropped entirely. The input is not modified; applying the function
// twice yields the same result as applying it once.
func TrimThreads(threads []Thread, maxThreads int) []Thread {
	out := make([]Thread, len(threads))
	copy(out, threads)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt > out[j].UpdatedAt
	})

	if maxThreads > 0 && len(out) > maxThreads {
		out = out[:maxThreads]
	}
	return out
}

// TrimMessages bounds a thread to maxMessages messages. The first
// message (the seed greeting) is always retained; the oldest interior
// history is what gets discarded. Threads already within the ceiling
// are returned unchanged.
func TrimMessages(t Thread, maxMessages int) Thread {
	if maxMessages <= 0 || len(t.Messages) <= maxMessages {
		return t
	}

	trimmed := make([]Message, 0, maxMessages)
	trimmed = append(trimmed, t.Messages[0])
	trimmed = append(trimmed, t.Messages[len(t.Messages)-(maxMessages-1):]...)

	t.Messages = trimmed
	return t
}

// trimAll applies both trimming levels: store-wide first, then per thread.
func trimAll(threads []Thread, maxThreads, maxMessages int) []Thread {
	out := TrimThreads(threads, maxThreads)
	for i := range out {
		out[i] = TrimMessages(out[i], maxMessages)
	}
	return out
}
