package imap

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 60 * time.Second

// Options configures a single IMAP connection.
type Options struct {
	Host               string
	Port               int
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// Response is the outcome of one tagged command: the completion status and
// the raw response lines, in server order. Untagged lines are stripped of
// their "* " prefix (and of the echoed command keyword, as in LIST replies);
// the human-readable text of the tagged completion is kept as the last line.
// Lines are surfaced verbatim beyond that: classifying them is the caller's
// job, because real servers emit lines no strict grammar accepts.
type Response struct {
	Status string
	Lines  []string
}

// OK reports whether the command completed with an OK status.
func (r Response) OK() bool {
	return r.Status == "OK"
}

// Session is a live connection speaking the textual IMAP dialogue.
// It is not safe for concurrent use; each session belongs to one owner.
type Session struct {
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
	seq     int
}

// Dial opens a TLS connection and consumes the server greeting.
func Dial(ctx context.Context, opts Options) (*Session, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	address := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: timeout},
		Config: &tls.Config{
			ServerName:         opts.Host,
			InsecureSkipVerify: opts.InsecureSkipVerify,
		},
	}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial imap %s: %w", address, err)
	}

	s := &Session{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		timeout: timeout,
	}

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		_ = conn.Close()
		return nil, err
	}
	greeting, err := s.readLine()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read greeting: %w", err)
	}
	if !strings.HasPrefix(greeting, "* OK") && !strings.HasPrefix(greeting, "* PREAUTH") {
		_ = conn.Close()
		return nil, fmt.Errorf("unexpected greeting: %s", greeting)
	}

	return s, nil
}

// Authenticate performs SASL XOAUTH2 with the given bearer token.
func (s *Session) Authenticate(username, token string) error {
	mech, initial, err := newXOAuth2(username, token).Start()
	if err != nil {
		return err
	}

	encoded := base64.StdEncoding.EncodeToString(initial)
	resp, err := s.command("AUTHENTICATE", mech+" "+encoded)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if !resp.OK() {
		return fmt.Errorf("authenticate: server said %s: %s", resp.Status, lastLine(resp.Lines))
	}
	return nil
}

// ListFolders requests the full folder listing.
func (s *Session) ListFolders() (Response, error) {
	return s.command("LIST", `"" "*"`)
}

// SelectFolder makes the named folder the active one.
func (s *Session) SelectFolder(name string) (Response, error) {
	return s.command("SELECT", quote(name))
}

// FetchSizes requests per-message byte sizes for a 1-based sequence range.
func (s *Session) FetchSizes(from, to uint32) (Response, error) {
	return s.command("FETCH", fmt.Sprintf("%d:%d (RFC822.SIZE)", from, to))
}

// Logout terminates the session and closes the connection.
func (s *Session) Logout() error {
	resp, err := s.command("LOGOUT", "")
	_ = s.Close()
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("logout: server said %s", resp.Status)
	}
	return nil
}

// Close tears down the connection without a protocol goodbye.
func (s *Session) Close() error {
	return s.conn.Close()
}

func (s *Session) command(name, args string) (Response, error) {
	if err := s.conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		return Response{}, err
	}

	s.seq++
	tag := fmt.Sprintf("A%03d", s.seq)

	line := tag + " " + name
	if args != "" {
		line += " " + args
	}
	if _, err := s.conn.Write([]byte(line + "\r\n")); err != nil {
		return Response{}, fmt.Errorf("send %s: %w", name, err)
	}

	var resp Response
	for {
		raw, err := s.readLine()
		if err != nil {
			return Response{}, fmt.Errorf("read %s response: %w", name, err)
		}

		switch {
		case strings.HasPrefix(raw, tag+" "):
			status, text := splitTagged(strings.TrimPrefix(raw, tag+" "))
			resp.Status = status
			if text != "" {
				resp.Lines = append(resp.Lines, text)
			}
			return resp, nil
		case strings.HasPrefix(raw, "+"):
			// Continuation during a one-shot command carries a server
			// error payload; acknowledge with an empty response so the
			// tagged result follows.
			if _, err := s.conn.Write([]byte("\r\n")); err != nil {
				return Response{}, fmt.Errorf("acknowledge continuation: %w", err)
			}
		default:
			resp.Lines = append(resp.Lines, stripData(raw, name))
		}
	}
}

func (s *Session) readLine() (string, error) {
	line, err := s.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// stripData removes the untagged-response framing so callers see the same
// payload the server's completion text refers to: "* LIST (\X) \"|\" INBOX"
// becomes "(\X) \"|\" INBOX" while "* 3 EXISTS" becomes "3 EXISTS".
func stripData(line, command string) string {
	data := strings.TrimPrefix(line, "* ")
	if rest, ok := strings.CutPrefix(data, command+" "); ok {
		return rest
	}
	return data
}

func splitTagged(rest string) (status, text string) {
	status, text, found := strings.Cut(rest, " ")
	if !found {
		return strings.ToUpper(rest), ""
	}
	return strings.ToUpper(status), text
}

func quote(name string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(name)
	return `"` + escaped + `"`
}

func lastLine(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
