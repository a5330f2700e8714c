package imap

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestStripData(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		command string
		want    string
	}{
		{
			name:    "list line loses framing",
			line:    `* LIST (\HasNoChildren) "|" INBOX`,
			command: "LIST",
			want:    `(\HasNoChildren) "|" INBOX`,
		},
		{
			name:    "exists line loses star only",
			line:    "* 3 EXISTS",
			command: "SELECT",
			want:    "3 EXISTS",
		},
		{
			name:    "fetch line keeps sequence number",
			line:    "* 1 FETCH (RFC822.SIZE 2048)",
			command: "FETCH",
			want:    "1 FETCH (RFC822.SIZE 2048)",
		},
		{
			name:    "line without framing passes through",
			line:    "garbage from the server",
			command: "LIST",
			want:    "garbage from the server",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripData(tt.line, tt.command); got != tt.want {
				t.Errorf("stripData(%q, %q) = %q, want %q", tt.line, tt.command, got, tt.want)
			}
		})
	}
}

func TestSplitTagged(t *testing.T) {
	tests := []struct {
		rest       string
		wantStatus string
		wantText   string
	}{
		{"OK LIST Completed.", "OK", "LIST Completed."},
		{"NO [AUTHENTICATIONFAILED] Invalid credentials", "NO", "[AUTHENTICATIONFAILED] Invalid credentials"},
		{"BAD Unknown command", "BAD", "Unknown command"},
		{"OK", "OK", ""},
	}

	for _, tt := range tests {
		status, text := splitTagged(tt.rest)
		if status != tt.wantStatus || text != tt.wantText {
			t.Errorf("splitTagged(%q) = (%q, %q), want (%q, %q)",
				tt.rest, status, text, tt.wantStatus, tt.wantText)
		}
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"INBOX", `"INBOX"`},
		{"Отправленные", `"Отправленные"`},
		{`War "and" Peace`, `"War \"and\" Peace"`},
		{`back\slash`, `"back\\slash"`},
	}

	for _, tt := range tests {
		if got := quote(tt.name); got != tt.want {
			t.Errorf("quote(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestXOAuth2InitialResponse(t *testing.T) {
	mech, ir, err := newXOAuth2("user@example.com", "ya29.token").Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if mech != "XOAUTH2" {
		t.Errorf("mechanism = %q, want XOAUTH2", mech)
	}

	want := "user=user@example.com\x01auth=Bearer ya29.token\x01\x01"
	if string(ir) != want {
		t.Errorf("initial response = %q, want %q", ir, want)
	}

	// The wire form must be clean base64 for the AUTHENTICATE argument.
	encoded := base64.StdEncoding.EncodeToString(ir)
	if strings.ContainsAny(encoded, " \r\n") {
		t.Errorf("encoded initial response contains whitespace: %q", encoded)
	}
}

func TestResponseOK(t *testing.T) {
	if !(Response{Status: "OK"}).OK() {
		t.Error("OK status should report OK")
	}
	if (Response{Status: "NO"}).OK() {
		t.Error("NO status should not report OK")
	}
}
