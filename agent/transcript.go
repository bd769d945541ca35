package agent

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/motorline/dealsense/storage"
)

const timestampLayout = "2006-01-02 15:04:05"

// FormatMessage renders one chat message as a transcript line:
// [2026-01-02 15:04:05] [CLIENT] text
// Non-text messages get an uppercase content-type tag.
func FormatMessage(m storage.ChatMessage) string {
	label := "[OPERATOR]"
	if m.Sender == storage.SenderClient {
		label = "[CLIENT]"
	}

	content := m.Content
	if m.ContentType != "" && m.ContentType != "text" {
		tag := "[" + strings.ToUpper(m.ContentType) + "]"
		if content == "" {
			content = tag
		} else {
			content = tag + " " + content
		}
	}

	return fmt.Sprintf("[%s] %s %s", m.CreatedAt.UTC().Format(timestampLayout), label, content)
}

// FormatTranscript renders the whole conversation, one line per message.
// Deterministic: same messages always produce the same string.
func FormatTranscript(msgs []storage.ChatMessage) string {
	if len(msgs) == 0 {
		return ""
	}
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		lines[i] = FormatMessage(m)
	}
	return strings.Join(lines, "\n")
}

// TokenCounter measures rendered text against the context budget
type TokenCounter func(string) int

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// CountTokens counts tokens with the cl100k_base encoding. When the
// encoding cannot be initialized it falls back to a bytes/4 estimate.
func CountTokens(s string) int {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			enc = e
		}
	})
	if enc == nil {
		return len(s) / 4
	}
	return len(enc.Encode(s, nil, nil))
}

// TrimToBudget drops the oldest messages until the rendered transcript fits
// the token budget. The newest message always survives. budget <= 0 means
// unlimited. count nil uses CountTokens.
func TrimToBudget(msgs []storage.ChatMessage, budget int, count TokenCounter) []storage.ChatMessage {
	if budget <= 0 || len(msgs) == 0 {
		return msgs
	}
	if count == nil {
		count = CountTokens
	}
	for len(msgs) > 1 && count(FormatTranscript(msgs)) > budget {
		msgs = msgs[1:]
	}
	return msgs
}
