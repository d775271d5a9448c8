package chatlog

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/gptcli/core"
)

// TimeFormat is the layout of the time line of each entry.
const TimeFormat = "2006-01-02-15:04:05"

// File is an append-only log of round trips.  It implements
// core.Logger.
type File struct {
	Path string
}

// New creates a new File instance.
func New(path string) *File {
	return &File{Path: path}
}

// Format renders one entry.
func Format(e core.LogEntry) (out []byte, err error) {
	defer Return(&err)
	raw, err := json.Marshal(e.Raw)
	Ck(err, "cannot encode raw response")
	out = []byte(Spf("time: %s\nprompt: %s\nmodel: %s\nresponse: %s\nraw: %s\n\n",
		e.Time.Format(TimeFormat), e.Prompt, e.Model, e.Response, raw))
	return
}

// Write appends e to the log file, creating it if needed.
func (f *File) Write(e core.LogEntry) (err error) {
	defer Return(&err)
	buf, err := Format(e)
	Ck(err)
	err = os.MkdirAll(filepath.Dir(f.Path), 0700)
	Ck(err)
	lock := flock.New(f.Path + ".lock")
	err = lock.Lock()
	Ck(err)
	defer lock.Unlock()
	fh, err := os.OpenFile(f.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	Ck(err)
	defer fh.Close()
	_, err = fh.Write(buf)
	Ck(err)
	return
}

var _ core.Logger = (*File)(nil)
