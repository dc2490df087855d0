package mimedecode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mikey/signal-mail-bridge/internal/core"
	"github.com/mikey/signal-mail-bridge/internal/utils"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func newTestDecoder(t *testing.T) *Decoder {
	logger := zaptest.NewLogger(t)
	return NewDecoder(logger, utils.NewTextProcessor(logger))
}

const multipartMail = `From: Alice <alice@example.org>
To: bridge@example.org
Cc: carol@example.org, dave@example.org
Subject: =?utf-8?q?Gr=C3=BC=C3=9Fe?=
Date: Tue, 02 Jan 2024 10:15:00 +0100
Message-Id: <abc123@example.org>
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain; charset=utf-8

first body
--inner
Content-Type: text/html; charset=utf-8

<p>first body</p>
--inner--
--outer
Content-Type: text/markdown; charset=utf-8

second *body*
--outer
Content-Type: image/png
Content-Disposition: attachment; filename="pic.png"
Content-Transfer-Encoding: base64

iVBORw0KGgo=
--outer
Content-Type: text/plain
Content-Disposition: attachment; filename="notes.txt"

note contents
--outer
Content-Type: application/zip
Content-Disposition: attachment; filename="archive.zip"

PK
--outer--
`

func TestDecodeMultipart(t *testing.T) {
	msg, issues, err := newTestDecoder(t).Decode(crlf(multipartMail))
	require.NoError(t, err)

	assert.Equal(t, "abc123@example.org", msg.ID)
	assert.Equal(t, "Alice <alice@example.org>", msg.From)
	assert.Equal(t, "bridge@example.org", msg.To)
	assert.Equal(t, []string{"carol@example.org", "dave@example.org"}, msg.Cc)
	assert.Nil(t, msg.Bcc)
	assert.Equal(t, "Grüße", msg.Subject)
	assert.Equal(t, 2024, msg.Date.Year())
	assert.Equal(t, 15, msg.Date.Minute())

	require.Len(t, msg.Body, 2)
	assert.Contains(t, msg.Body[0], "first body")
	assert.Contains(t, msg.Body[1], "second *body*")

	require.Len(t, msg.Attachments, 2)
	assert.Equal(t, "pic.png", msg.Attachments[0].Filename)
	assert.Equal(t, "image/png", msg.Attachments[0].ContentType)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, msg.Attachments[0].Data)
	assert.Equal(t, "notes.txt", msg.Attachments[1].Filename)

	require.Len(t, issues, 1)
	assert.Equal(t, core.KindUnknownShape, issues[0].Kind)
	assert.Equal(t, "abc123@example.org", issues[0].Item)
}

func TestDecodeSinglePart(t *testing.T) {
	raw := crlf("From: a@example.org\nTo: b@example.org\nDate: Mon, 01 Jan 2024 08:00:00 +0000\nContent-Type: text/html\n\nx")

	msg, issues, err := newTestDecoder(t).Decode(raw)
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, []string{"x"}, msg.Body)
	assert.Empty(t, msg.Attachments)
	assert.NotEmpty(t, msg.ID)
}

func TestDecodeSingleDigitDay(t *testing.T) {
	raw := crlf("From: a@example.org\nTo: b@example.org\nDate: Tue, 2 Jan 2024 10:15:00 +0100\n\nhello")

	msg, _, err := newTestDecoder(t).Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, 2, msg.Date.Day())
	assert.Equal(t, "Tue, 02 Jan 2024 10:15:00 +0100", msg.Date.Format(core.MailDateLayout))
}

func TestDecodeUnknownTransferEncodingDropsPart(t *testing.T) {
	raw := crlf(`From: a@example.org
To: b@example.org
Date: Mon, 01 Jan 2024 08:00:00 +0000
Message-Id: <enc@example.org>
Content-Type: multipart/mixed; boundary="b"

--b
Content-Type: text/plain

body survives
--b
Content-Type: application/pdf
Content-Disposition: attachment; filename="old.pdf"
Content-Transfer-Encoding: x-uuencode

begin 644 old.pdf
end
--b
Content-Type: image/png
Content-Disposition: attachment; filename="pic.png"

PNG
--b--
`)

	msg, issues, err := newTestDecoder(t).Decode(raw)
	require.NoError(t, err)
	require.Len(t, msg.Body, 1)
	assert.Contains(t, msg.Body[0], "body survives")
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "pic.png", msg.Attachments[0].Filename)

	require.Len(t, issues, 1)
	assert.Equal(t, core.KindUnknownShape, issues[0].Kind)
	assert.Equal(t, "enc@example.org", issues[0].Item)
	assert.Contains(t, issues[0].Error(), "x-uuencode")
}

func TestDecodeBinaryWithoutFilename(t *testing.T) {
	raw := crlf(`From: a@example.org
To: b@example.org
Date: Mon, 01 Jan 2024 08:00:00 +0000
Content-Type: multipart/mixed; boundary="b"

--b
Content-Type: application/pdf

%PDF
--b
Content-Type: image/gif; name="anim.gif"

GIF89a
--b--
`)

	msg, _, err := newTestDecoder(t).Decode(raw)
	require.NoError(t, err)
	require.Len(t, msg.Attachments, 2)
	assert.Equal(t, "attachment-1.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, "anim.gif", msg.Attachments[1].Filename)
}

func TestDecodeAmbiguousFilenameIsBody(t *testing.T) {
	raw := crlf(`From: a@example.org
To: b@example.org
Date: Mon, 01 Jan 2024 08:00:00 +0000
Content-Type: multipart/mixed; boundary="b"

--b
Content-Type: text/plain
Content-Disposition: attachment; filename="a.txt"; filename="b.txt"

ambiguous
--b--
`)

	msg, _, err := newTestDecoder(t).Decode(raw)
	require.NoError(t, err)
	assert.Empty(t, msg.Attachments)
	require.Len(t, msg.Body, 1)
	assert.Contains(t, msg.Body[0], "ambiguous")
}

func TestDecodeHeaderErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing from", "To: b@example.org\nDate: Mon, 01 Jan 2024 08:00:00 +0000\n\nx"},
		{"missing to", "From: a@example.org\nDate: Mon, 01 Jan 2024 08:00:00 +0000\n\nx"},
		{"missing date", "From: a@example.org\nTo: b@example.org\n\nx"},
		{"malformed date", "From: a@example.org\nTo: b@example.org\nDate: 2024-01-01 08:00\n\nx"},
	}

	decoder := newTestDecoder(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, _, err := decoder.Decode(crlf(tt.raw))
			require.Error(t, err)
			assert.Nil(t, msg)
			assert.ErrorIs(t, err, core.ErrParse)
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, bucketText, classify("text/plain"))
	assert.Equal(t, bucketText, classify("text/markdown"))
	assert.Equal(t, bucketIgnored, classify("text/html"))
	assert.Equal(t, bucketBinary, classify("image/jpg"))
	assert.Equal(t, bucketBinary, classify("application/vnd.oasis.opendocument.text"))
	assert.Equal(t, bucketContainer, classify("multipart/related"))
	assert.Equal(t, bucketUnknown, classify("application/zip"))
}
