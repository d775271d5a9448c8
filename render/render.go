package render

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/gptcli/core"
	"golang.org/x/term"
)

// DefaultWidth is used when the output is not a terminal.
const DefaultWidth = 80

var (
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	systemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// Terminal renders replies and stored conversations to Out.  It
// implements core.Renderer.
type Terminal struct {
	Out io.Writer
	// Markdown renders non-streamed replies with glamour when Out is
	// a terminal.
	Markdown bool
	// Width overrides the detected terminal width.
	Width int
	last  byte
}

// New creates a new Terminal instance.
func New(out io.Writer, markdown bool) *Terminal {
	return &Terminal{Out: out, Markdown: markdown}
}

func (t *Terminal) fd() (fd int, ok bool) {
	f, ok := t.Out.(*os.File)
	if !ok {
		return
	}
	return int(f.Fd()), true
}

// IsTerminal reports whether Out is a terminal.
func (t *Terminal) IsTerminal() bool {
	fd, ok := t.fd()
	return ok && term.IsTerminal(fd)
}

// TermWidth returns Width, the terminal width, or DefaultWidth.
func (t *Terminal) TermWidth() int {
	if t.Width > 0 {
		return t.Width
	}
	if fd, ok := t.fd(); ok {
		w, _, err := term.GetSize(fd)
		if err == nil && w > 0 {
			return w
		}
	}
	return DefaultWidth
}

func (t *Terminal) write(s string) {
	if s == "" {
		return
	}
	_, err := io.WriteString(t.Out, s)
	if err != nil {
		Debug("render: %v", err)
		return
	}
	t.last = s[len(s)-1]
}

// Fragment writes one streamed piece of a reply as it arrives.
func (t *Terminal) Fragment(text string) {
	t.write(text)
}

// Block writes a whole reply, as markdown if enabled.
func (t *Terminal) Block(text string) {
	if t.Markdown && t.IsTerminal() {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(t.TermWidth()-2),
		)
		if err == nil {
			out, err := r.Render(text)
			if err == nil {
				t.write(out)
				return
			}
		}
		Debug("markdown rendering failed: %v", err)
	}
	t.write(text)
}

// End terminates the current reply with a newline unless it already
// ends with one.
func (t *Terminal) End() {
	if t.last != 0 && t.last != '\n' {
		t.write("\n")
	}
	t.last = 0
}

// ShowConversation prints every turn of conv, labeled and colored by
// role.
func (t *Terminal) ShowConversation(conv *core.Conversation) {
	lines, width := conv.Display()
	for _, line := range lines {
		label := runewidth.FillRight(line.Label+":", width)
		switch line.Role {
		case core.RoleUser:
			label = userStyle.Render(label)
		case core.RoleSystem:
			label = systemStyle.Render(label)
		}
		t.write(Spf("%s %s\n", label, line.Content))
	}
}

// ShowSummaries prints one line per conversation: its name, the start
// of its first user message and the end of its last message, fitted
// to the terminal width.
func (t *Terminal) ShowSummaries(convs []*core.Conversation) {
	half := t.TermWidth() / 2
	for _, conv := range convs {
		t.write(Summarize(conv, half) + "\n")
	}
}

// Summarize formats one summary line.  Each excerpt is at most
// half-2-len(name) cells wide.
func Summarize(conv *core.Conversation, half int) string {
	name := conv.Name()
	w := half - 2 - runewidth.StringWidth(name)
	if w < 1 {
		w = 1
	}
	first, last := conv.Summary()
	first = oneLine(first)
	last = oneLine(last)
	return Spf("%s: %s...%s", name, runewidth.Truncate(first, w, ""), tail(last, w))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// tail returns the longest suffix of s no wider than w cells.
func tail(s string, w int) string {
	rs := []rune(s)
	width := 0
	i := len(rs)
	for i > 0 {
		rw := runewidth.RuneWidth(rs[i-1])
		if width+rw > w {
			break
		}
		width += rw
		i--
	}
	return string(rs[i:])
}
