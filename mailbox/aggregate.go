package mailbox

import (
	"strings"

	"github.com/nlukyanov/mailbox-sizes/imap"
)

// DefaultPageSize bounds one size-fetch request. Large folders are walked
// in contiguous 1-based sequence ranges of at most this width.
const DefaultPageSize = 100

// sizeToken introduces a per-message byte size in a fetch response line.
const sizeToken = "RFC822.SIZE "

// sizeFetcher is the slice of the session the aggregator needs.
type sizeFetcher interface {
	FetchSizes(from, to uint32) (imap.Response, error)
}

// aggregateSizes sums per-message sizes for a folder holding n messages,
// fetching in pages of at most pageSize. A batch whose status is not OK
// contributes nothing but does not stop the remaining batches; complete is
// false if any batch failed. n == 0 is a zero-iteration success.
//
// Lines in a successful batch without a parseable size token are skipped
// silently: some response lines are protocol metadata, not messages.
func aggregateSizes(sess sizeFetcher, n, pageSize uint32) (sum int64, complete bool) {
	complete = true
	for from := uint32(1); from <= n; from += pageSize {
		to := from + pageSize - 1
		if to > n {
			to = n
		}

		resp, err := sess.FetchSizes(from, to)
		if err != nil || !resp.OK() {
			complete = false
			continue
		}

		for _, line := range resp.Lines {
			if size, ok := parseSizeLine(line); ok {
				sum += size
			}
		}
	}
	return sum, complete
}

// parseSizeLine extracts the integer following the size token, e.g.
// `1 FETCH (RFC822.SIZE 2048)` yields 2048.
func parseSizeLine(line string) (int64, bool) {
	idx := strings.Index(line, sizeToken)
	if idx < 0 {
		return 0, false
	}

	rest := line[idx+len(sizeToken):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	var size int64
	for _, c := range []byte(rest[:end]) {
		size = size*10 + int64(c-'0')
	}
	return size, true
}
