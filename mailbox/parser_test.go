package mailbox

import "testing"

func TestParseListLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantName string
		wantKind LineKind
	}{
		{
			name:     "plain folder",
			line:     `(\HasNoChildren) "|" INBOX`,
			wantName: "INBOX",
			wantKind: LineFolder,
		},
		{
			name:     "unicode folder name survives unchanged",
			line:     `(\HasNoChildren \Sent) "|" Отправленные`,
			wantName: "Отправленные",
			wantKind: LineFolder,
		},
		{
			name:     "folder name with spaces",
			line:     `(\HasChildren) "/" Projects 2024 Q1`,
			wantName: "Projects 2024 Q1",
			wantKind: LineFolder,
		},
		{
			name:     "dot delimiter",
			line:     `(\Unmarked) "." INBOX.Drafts`,
			wantName: "INBOX.Drafts",
			wantKind: LineFolder,
		},
		{
			name:     "terminal marker",
			line:     "LIST Completed.",
			wantKind: LineTerminal,
		},
		{
			name:     "missing attribute group",
			line:     `"|" INBOX`,
			wantKind: LineMalformed,
		},
		{
			name:     "empty attribute group",
			line:     `() "|" INBOX`,
			wantKind: LineMalformed,
		},
		{
			name:     "unquoted delimiter",
			line:     `(\HasNoChildren) | INBOX`,
			wantKind: LineMalformed,
		},
		{
			name:     "multi-character delimiter",
			line:     `(\HasNoChildren) "||" INBOX`,
			wantKind: LineMalformed,
		},
		{
			name:     "missing folder name",
			line:     `(\HasNoChildren) "|" `,
			wantKind: LineMalformed,
		},
		{
			name:     "empty line",
			line:     "",
			wantKind: LineMalformed,
		},
		{
			name:     "server noise",
			line:     "OK [UNSEEN 12] Message 12 is first unseen",
			wantKind: LineMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, kind := ParseListLine(tt.line)
			if kind != tt.wantKind {
				t.Fatalf("ParseListLine(%q) kind = %v, want %v", tt.line, kind, tt.wantKind)
			}
			if name != tt.wantName {
				t.Errorf("ParseListLine(%q) name = %q, want %q", tt.line, name, tt.wantName)
			}
		})
	}
}

func TestParseListLineIdempotent(t *testing.T) {
	line := `(\HasNoChildren \Junk) "|" Спам`

	first, kind := ParseListLine(line)
	if kind != LineFolder {
		t.Fatalf("first pass kind = %v, want LineFolder", kind)
	}
	second, kind := ParseListLine(line)
	if kind != LineFolder || second != first {
		t.Errorf("second pass = (%q, %v), want (%q, LineFolder)", second, kind, first)
	}
}

func TestMessageCount(t *testing.T) {
	tests := []struct {
		name      string
		lines     []string
		want      uint32
		wantFound bool
	}{
		{
			name: "count among metadata",
			lines: []string{
				"FLAGS (\\Answered \\Flagged \\Deleted \\Seen \\Draft)",
				"3 EXISTS",
				"0 RECENT",
				"OK [UIDVALIDITY 1553187122] UIDs valid",
			},
			want:      3,
			wantFound: true,
		},
		{
			name:      "zero messages",
			lines:     []string{"0 EXISTS", "0 RECENT"},
			want:      0,
			wantFound: true,
		},
		{
			name:      "no exists line",
			lines:     []string{"FLAGS ()", "0 RECENT"},
			wantFound: false,
		},
		{
			name:      "exists with non-numeric prefix",
			lines:     []string{"lots EXISTS"},
			wantFound: false,
		},
		{
			name:      "no lines at all",
			lines:     nil,
			wantFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := messageCount(tt.lines)
			if found != tt.wantFound || got != tt.want {
				t.Errorf("messageCount(%v) = (%d, %v), want (%d, %v)",
					tt.lines, got, found, tt.want, tt.wantFound)
			}
		})
	}
}

func TestParseSizeLine(t *testing.T) {
	tests := []struct {
		line   string
		want   int64
		wantOK bool
	}{
		{"1 FETCH (RFC822.SIZE 2048)", 2048, true},
		{"17 FETCH (UID 99 RFC822.SIZE 123456)", 123456, true},
		{"FETCH Completed.", 0, false},
		{"1 FETCH (FLAGS (\\Seen))", 0, false},
		{"1 FETCH (RFC822.SIZE x)", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseSizeLine(tt.line)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("parseSizeLine(%q) = (%d, %v), want (%d, %v)",
				tt.line, got, ok, tt.want, tt.wantOK)
		}
	}
}
