package render

import (
	"bytes"
	"strings"
	"testing"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/gptcli/core"
)

func TestFragmentsAndEnd(t *testing.T) {
	var buf bytes.Buffer
	term := New(&buf, true)
	term.Fragment("Hi")
	term.Fragment("")
	term.Fragment(" there!")
	term.End()
	// markdown is ignored when the output is not a terminal
	term.Block("**bold**\n")
	term.End()
	Tassert(t, buf.String() == "Hi there!\n**bold**\n", "got %q", buf.String())
	term.End()
	Tassert(t, buf.String() == "Hi there!\n**bold**\n", "extra newline: %q", buf.String())
}

func TestShowConversation(t *testing.T) {
	conv := core.NewConversation("0", "S")
	Tassert(t, conv.AppendUser("Hello") == nil, "append")
	Tassert(t, conv.AppendAssistant("Hi there!", "gpt-4o") == nil, "append")
	var buf bytes.Buffer
	New(&buf, false).ShowConversation(conv)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	Tassert(t, len(lines) == 3, "lines %q", lines)
	Tassert(t, strings.Contains(lines[0], "system:") && strings.HasSuffix(lines[0], " S"), "line %q", lines[0])
	Tassert(t, strings.Contains(lines[1], "user:") && strings.HasSuffix(lines[1], " Hello"), "line %q", lines[1])
	Tassert(t, lines[2] == "gpt-4o: Hi there!", "line %q", lines[2])
}

func TestSummaries(t *testing.T) {
	conv := core.NewConversation("7", "")
	Tassert(t, conv.AppendUser("What is the\ncapital of France?") == nil, "append")
	Tassert(t, conv.AppendAssistant("The capital of France is Paris.", "gpt-4o") == nil, "append")

	got := Summarize(conv, 15)
	// 15 - 2 - len("7") = 12 cells per excerpt
	Tassert(t, got == "7: What is the ...ce is Paris.", "got %q", got)

	got = Summarize(conv, 100)
	Tassert(t, got == "7: What is the capital of France?...The capital of France is Paris.", "got %q", got)

	var buf bytes.Buffer
	term := &Terminal{Out: &buf, Width: 30}
	term.ShowSummaries([]*core.Conversation{conv, conv})
	Tassert(t, strings.Count(buf.String(), "\n") == 2, "got %q", buf.String())
}

func TestTail(t *testing.T) {
	Tassert(t, tail("abcdef", 3) == "def", "ascii")
	Tassert(t, tail("ab", 5) == "ab", "short")
	// wide runes take two cells
	Tassert(t, tail("日本語", 4) == "本語", "wide: %q", tail("日本語", 4))
	Tassert(t, tail("日本語", 3) == "語", "wide: %q", tail("日本語", 3))
}
