// Package mbox writes fetched raw mail to an mbox file and reads it back.
package mbox

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	mboxlib "github.com/emersion/go-mbox"

	"github.com/mikey/signal-mail-bridge/internal/core"
)

const unknownSender = "MAILER-DAEMON"

// Append writes mails to w in mbox format
func Append(w io.Writer, mails []core.RawMail, now time.Time) error {
	mw := mboxlib.NewWriter(w)
	for _, m := range mails {
		from := m.Sender
		if from == "" {
			from = unknownSender
		}
		msg, err := mw.CreateMessage(from, now)
		if err != nil {
			return fmt.Errorf("failed to create mbox message: %w", err)
		}
		if _, err := msg.Write(m.Raw); err != nil {
			return fmt.Errorf("failed to write mbox message: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to close mbox writer: %w", err)
	}
	return nil
}

// Dump appends mails to the mbox file at path, creating it if needed
func Dump(path string, mails []core.RawMail, now time.Time) error {
	if len(mails) == 0 {
		return nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	if err := Append(file, mails, now); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Read returns every message stored in r
func Read(r io.Reader) ([]core.RawMail, error) {
	reader := mboxlib.NewReader(r)

	var mails []core.RawMail
	for idx := 0; ; idx++ {
		msgReader, err := reader.NextMessage()
		if errors.Is(err, io.EOF) {
			return mails, nil
		}
		if err != nil {
			return mails, fmt.Errorf("message %d: %w", idx, err)
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return mails, fmt.Errorf("message %d read: %w", idx, err)
		}
		mails = append(mails, core.RawMail{UID: uint32(idx + 1), Raw: raw})
	}
}

// ReadFile returns every message stored in the mbox file at path
func ReadFile(path string) ([]core.RawMail, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()
	return Read(file)
}

// Archive appends fetched mail to a fixed mbox file
type Archive struct {
	path string
	now  func() time.Time
}

// NewArchive creates a new Archive writing to path
func NewArchive(path string) *Archive {
	return &Archive{
		path: path,
		now:  time.Now,
	}
}

// Archive appends mails to the mbox file
func (a *Archive) Archive(mails []core.RawMail) error {
	return Dump(a.path, mails, a.now())
}
