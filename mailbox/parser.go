package mailbox

import (
	"strings"
	"unicode/utf8"
)

// listTerminalMarker is the completion text the server appends to a folder
// listing. It carries no folder data and is consumed without effect.
const listTerminalMarker = "LIST Completed."

// LineKind classifies one folder-listing line.
type LineKind int

const (
	// LineFolder is a well-formed folder descriptor.
	LineFolder LineKind = iota
	// LineTerminal is the listing's terminal marker.
	LineTerminal
	// LineMalformed is anything else. Callers flag it and keep going.
	LineMalformed
)

// ParseListLine classifies one raw listing line of the shape
//
//	(\Attr1 \Attr2) "d" Folder Name
//
// where d is a single-character hierarchy delimiter. The attribute group
// and delimiter are discarded; only the trailing folder name is kept, byte
// for byte, so non-ASCII names survive unchanged.
func ParseListLine(line string) (name string, kind LineKind) {
	if line == listTerminalMarker {
		return "", LineTerminal
	}

	rest, ok := strings.CutPrefix(line, "(")
	if !ok {
		return "", LineMalformed
	}

	attrs, rest, ok := strings.Cut(rest, ")")
	if !ok || attrs == "" {
		return "", LineMalformed
	}

	rest, ok = strings.CutPrefix(rest, ` "`)
	if !ok {
		return "", LineMalformed
	}

	// Exactly one delimiter character between the quotes.
	_, size := utf8.DecodeRuneInString(rest)
	if size == 0 {
		return "", LineMalformed
	}
	rest, ok = strings.CutPrefix(rest[size:], `" `)
	if !ok || rest == "" {
		return "", LineMalformed
	}

	return rest, LineFolder
}

// messageCount scans a folder-selection response for its message-existence
// line, `<digits> EXISTS`, and returns the count.
func messageCount(lines []string) (uint32, bool) {
	for _, line := range lines {
		digits, found := strings.CutSuffix(line, " EXISTS")
		if !found {
			continue
		}
		if n, ok := parseUint(digits); ok {
			return n, true
		}
	}
	return 0, false
}

// parseUint parses a non-empty all-digit string. Unlike strconv.ParseUint
// it rejects signs, spaces and base prefixes outright, which keeps the
// line grammar exact.
func parseUint(s string) (uint32, bool) {
	if s == "" {
		return 0, false
	}
	var n uint64
	for _, c := range []byte(s) {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint64(c-'0')
		if n > 1<<32-1 {
			return 0, false
		}
	}
	return uint32(n), true
}
