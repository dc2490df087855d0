package chatevent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mikey/signal-mail-bridge/internal/core"
)

func stream(lines ...string) []byte {
	return []byte(strings.Join(lines, "\n"))
}

func TestFlagsClassify(t *testing.T) {
	tests := []struct {
		flags flags
		want  core.Pattern
	}{
		{flags{receipt: true}, core.PatternReceipt},
		{flags{data: true}, core.PatternPlain},
		{flags{data: true, quote: true}, core.PatternQuoteReply},
		{flags{data: true, reaction: true, reactionEmoji: true}, core.PatternEmojiReaction},
		{flags{reaction: true, reactionEmoji: true}, core.PatternUnknown},
		{flags{data: true, reaction: true}, core.PatternUnknown},
		{flags{data: true, reaction: true, reactionEmoji: true, quote: true}, core.PatternUnknown},
		{flags{receipt: true, data: true}, core.PatternUnknown},
		{flags{}, core.PatternUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.flags.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.flags.Classify())
		})
	}
}

func TestDecodeSortsPerAccount(t *testing.T) {
	raw := stream(
		`{"envelope":{"sourceNumber":"+491","timestamp":3,"dataMessage":{"message":"c"}},"account":"+4900"}`,
		`{"envelope":{"sourceNumber":"+491","timestamp":1,"dataMessage":{"message":"a"}},"account":"+4900"}`,
		`{"envelope":{"sourceNumber":"+491","timestamp":2,"dataMessage":{"message":"b","groupInfo":{"groupId":"G1"}}},"account":"+4900"}`,
		`{"envelope":{"sourceNumber":"+492","timestamp":3,"dataMessage":{"message":"c"}},"account":"+4911"}`,
		`{"envelope":{"sourceNumber":"+492","timestamp":1,"dataMessage":{"message":"a"}},"account":"+4911"}`,
		`{"envelope":{"sourceNumber":"+492","timestamp":2,"dataMessage":{"message":"b","groupInfo":{"groupId":"G1"}}},"account":"+4911"}`,
	)

	batch, issues := NewDecoder(zaptest.NewLogger(t)).Decode(raw)
	assert.Empty(t, issues)
	require.Len(t, batch, 2)

	for account, envs := range batch {
		require.Len(t, envs, 3, account)
		assert.Equal(t, []int64{1, 2, 3}, []int64{envs[0].Timestamp, envs[1].Timestamp, envs[2].Timestamp})
		assert.Equal(t, "G1", envs[1].GroupID)
		assert.Equal(t, core.PatternPlain, envs[0].Pattern)
	}
}

func TestDecodeStableOnTies(t *testing.T) {
	raw := stream(
		`{"envelope":{"timestamp":5,"dataMessage":{"message":"first"}},"account":"a"}`,
		`{"envelope":{"timestamp":5,"dataMessage":{"message":"second"}},"account":"a"}`,
	)

	batch, _ := NewDecoder(zaptest.NewLogger(t)).Decode(raw)
	require.Len(t, batch["a"], 2)
	assert.Equal(t, "first", *batch["a"][0].Text)
	assert.Equal(t, "second", *batch["a"][1].Text)
}

func TestDecodeDropsReceipts(t *testing.T) {
	raw := stream(`{"envelope":{"timestamp":1,"receiptMessage":{"when":1,"isDelivery":true}},"account":"a"}`)

	batch, issues := NewDecoder(zaptest.NewLogger(t)).Decode(raw)
	assert.Empty(t, batch)
	assert.Empty(t, issues)
}

func TestDecodePatterns(t *testing.T) {
	raw := stream(
		`{"envelope":{"sourceNumber":"+491","sourceUuid":"u1","timestamp":10,"dataMessage":{"message":"yes","quote":{"id":7,"authorNumber":"+492","authorUuid":"u2","text":"really?"}}},"account":"a"}`,
		`{"envelope":{"sourceNumber":"+491","timestamp":11,"dataMessage":{"message":null,"reaction":{"emoji":"👍","targetAuthorNumber":"+492","targetAuthorUuid":"u2","targetSentTimestamp":9}}},"account":"a"}`,
		`{"envelope":{"sourceNumber":"+491","timestamp":12,"dataMessage":{"message":"pics","attachments":[{"id":"att1","filename":null,"contentType":"image/png","size":3},{"id":"att2","filename":"doc.pdf","contentType":"application/pdf","size":4}]}},"account":"a"}`,
	)

	batch, issues := NewDecoder(zaptest.NewLogger(t)).Decode(raw)
	assert.Empty(t, issues)
	envs := batch["a"]
	require.Len(t, envs, 3)

	quote := envs[0]
	assert.Equal(t, core.PatternQuoteReply, quote.Pattern)
	require.NotNil(t, quote.Quote)
	assert.Equal(t, int64(7), quote.Quote.ID)
	assert.Equal(t, "really?", quote.Quote.Text)
	assert.Equal(t, "u1", quote.SourceUUID)

	reaction := envs[1]
	assert.Equal(t, core.PatternEmojiReaction, reaction.Pattern)
	assert.Nil(t, reaction.Text)
	require.NotNil(t, reaction.Reaction)
	assert.Equal(t, "👍", reaction.Reaction.Emoji)
	assert.Equal(t, int64(9), reaction.Reaction.TargetSentTimestamp)

	plain := envs[2]
	require.Len(t, plain.Attachments, 2)
	assert.Equal(t, "att1", plain.Attachments[0].Name())
	assert.Equal(t, "doc.pdf", plain.Attachments[1].Name())
}

func TestDecodeReportsBadLines(t *testing.T) {
	raw := stream(
		``,
		`not json but mentions envelope`,
		`{"exception":{"message":"boom"},"envelope":{"timestamp":1}}`,
		`{"envelope":{"timestamp":2,"dataMessage":{"reaction":{"emoji":"x"}},"receiptMessage":{}},"account":"a"}`,
		`{"envelope":{"timestamp":3,"reaction":{"emoji":"x"}},"account":"a"}`,
		`{"unrelated":true}`,
		`{"envelope":{"timestamp":4,"dataMessage":{"message":"ok"}},"account":"a"}`,
	)

	batch, issues := NewDecoder(zaptest.NewLogger(t)).Decode(raw)
	require.Len(t, batch["a"], 1)
	assert.Equal(t, int64(4), batch["a"][0].Timestamp)

	require.Len(t, issues, 4)
	assert.Equal(t, core.KindParse, issues[0].Kind)
	assert.Equal(t, "line 2", issues[0].Item)
	assert.Equal(t, core.KindUnknownShape, issues[1].Kind)
	assert.Equal(t, core.KindUnknownShape, issues[2].Kind)
	assert.Equal(t, core.KindUnknownShape, issues[3].Kind)
}
