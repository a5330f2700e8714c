package mailbox

import (
	"context"
	"log/slog"

	"github.com/nlukyanov/mailbox-sizes/directory"
	"github.com/nlukyanov/mailbox-sizes/imap"
)

// Report is the per-user outcome persisted to the result sink. Exactly one
// is produced per walked user. SizeCorrect is false as soon as any step
// needed for the totals failed; totals then hold whatever was recovered.
type Report struct {
	Email          string
	TotalMessages  uint64
	TotalSizeBytes int64
	SizeCorrect    bool
}

// Session is the protocol surface one walk drives. A session is owned by a
// single walk for its entire lifetime; folders are processed sequentially
// because only one folder can be selected at a time.
type Session interface {
	ListFolders() (imap.Response, error)
	SelectFolder(name string) (imap.Response, error)
	FetchSizes(from, to uint32) (imap.Response, error)
	Logout() error
}

// TokenFunc returns a bearer token valid for authenticating the user.
type TokenFunc func(ctx context.Context, user directory.User) (string, error)

// DialFunc opens a session and authenticates it for the given identity.
type DialFunc func(ctx context.Context, email, token string) (Session, error)

// Walker measures one mailbox per call: connect, authenticate, list
// folders, sum message sizes per folder, log out.
type Walker struct {
	Tokens   TokenFunc
	Dial     DialFunc
	PageSize uint32
	Logger   *slog.Logger
}

// Walk produces exactly one Report for the user. It never fails outright:
// a fatal connect or authenticate error yields a zero report with
// SizeCorrect false, and any later per-step failure degrades the report
// while the walk continues.
func (w *Walker) Walk(ctx context.Context, user directory.User) Report {
	report := Report{Email: user.Email, SizeCorrect: true}

	pageSize := w.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}

	token, err := w.Tokens(ctx, user)
	if err != nil {
		w.Logger.Error("token acquisition failed", "email", user.Email, "err", err)
		report.SizeCorrect = false
		return report
	}

	sess, err := w.Dial(ctx, user.Email, token)
	if err != nil {
		w.Logger.Error("connect or authenticate failed", "email", user.Email, "err", err)
		report.SizeCorrect = false
		return report
	}
	defer func() {
		// Session hygiene only: a failed goodbye does not taint the totals.
		if err := sess.Logout(); err != nil {
			w.Logger.Warn("logout failed", "email", user.Email, "err", err)
		}
	}()

	folders, ok := w.listFolders(sess, user.Email)
	if !ok {
		report.SizeCorrect = false
	}

	for _, folder := range folders {
		w.walkFolder(sess, folder, user.Email, &report, pageSize)
	}

	w.Logger.Debug("mailbox walked",
		"email", user.Email,
		"folders", len(folders),
		"messages", report.TotalMessages,
		"sizeBytes", report.TotalSizeBytes,
		"sizeCorrect", report.SizeCorrect)
	return report
}

// listFolders enumerates folder names. ok is false when the listing status
// was not a success or any line failed to parse; recognized folders are
// still returned so the walk can recover what it can.
func (w *Walker) listFolders(sess Session, email string) (folders []string, ok bool) {
	ok = true

	resp, err := sess.ListFolders()
	if err != nil {
		w.Logger.Error("folder listing failed", "email", email, "err", err)
		return nil, false
	}
	if !resp.OK() {
		w.Logger.Error("folder listing rejected", "email", email, "status", resp.Status)
		ok = false
	}

	for _, line := range resp.Lines {
		switch name, kind := ParseListLine(line); kind {
		case LineFolder:
			folders = append(folders, name)
		case LineTerminal:
			// No folder data, consumed without effect.
		case LineMalformed:
			w.Logger.Error("unparseable folder line", "email", email, "line", line)
			ok = false
		}
	}
	return folders, ok
}

// walkFolder selects one folder and adds its totals to the report. Every
// failure mode degrades the report and skips to the next folder; a partial
// aggregation still contributes what it recovered.
func (w *Walker) walkFolder(sess Session, folder, email string, report *Report, pageSize uint32) {
	resp, err := sess.SelectFolder(folder)
	if err != nil {
		w.Logger.Error("folder selection failed", "email", email, "folder", folder, "err", err)
		report.SizeCorrect = false
		return
	}
	if !resp.OK() {
		w.Logger.Error("folder selection rejected", "email", email, "folder", folder, "status", resp.Status)
		report.SizeCorrect = false
		return
	}

	count, found := messageCount(resp.Lines)
	if !found {
		w.Logger.Error("no message count in selection response", "email", email, "folder", folder)
		report.SizeCorrect = false
		return
	}
	report.TotalMessages += uint64(count)

	sum, complete := aggregateSizes(sess, count, pageSize)
	if !complete {
		w.Logger.Error("incomplete size fetch", "email", email, "folder", folder)
		report.SizeCorrect = false
	}
	report.TotalSizeBytes += sum
}
