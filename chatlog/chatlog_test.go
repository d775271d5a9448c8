package chatlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/gptcli/core"
)

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "log.txt")
	f := New(path)
	when := time.Date(2024, 3, 5, 14, 7, 9, 0, time.Local)
	e := core.LogEntry{
		Time:     when,
		Prompt:   "Hello",
		Model:    "gpt-4o",
		Response: "Hi there!",
		Raw:      core.RawRecord{Model: "gpt-4o", Provider: "openai", Family: "openai-style", Streamed: true, Fragments: 3},
	}
	Tassert(t, f.Write(e) == nil, "first write")
	e.Prompt = "more"
	Tassert(t, f.Write(e) == nil, "second write")

	buf, err := os.ReadFile(path)
	Tassert(t, err == nil, "%v", err)
	entries := strings.Split(strings.TrimSuffix(string(buf), "\n\n"), "\n\n")
	Tassert(t, len(entries) == 2, "entries %q", entries)
	lines := strings.Split(entries[0], "\n")
	Tassert(t, lines[0] == "time: 2024-03-05-14:07:09", "time line %q", lines[0])
	Tassert(t, lines[1] == "prompt: Hello", "prompt line %q", lines[1])
	Tassert(t, lines[2] == "model: gpt-4o", "model line %q", lines[2])
	Tassert(t, lines[3] == "response: Hi there!", "response line %q", lines[3])
	Tassert(t, strings.HasPrefix(lines[4], `raw: {"model":"gpt-4o"`), "raw line %q", lines[4])
	Tassert(t, strings.Contains(entries[1], "prompt: more"), "second entry %q", entries[1])
}

func TestWriteFailure(t *testing.T) {
	// a directory where the log file should be
	path := filepath.Join(t.TempDir(), "adir")
	Tassert(t, os.Mkdir(path, 0700) == nil, "mkdir")
	err := New(path).Write(core.LogEntry{Time: time.Now()})
	Tassert(t, err != nil, "expected error writing to a directory")
}
