package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/anmitsu/go-shlex"
	. "github.com/stevegt/goadapt"
)

// EditFile opens fn in editor, creating it first if needed.  editor
// may carry arguments, e.g. "code --wait".
func EditFile(fn, editor string) (err error) {
	defer Return(&err)

	_, err = os.Stat(fn)
	if os.IsNotExist(err) {
		err = os.MkdirAll(filepath.Dir(fn), 0700)
		Ck(err)
		err = os.WriteFile(fn, nil, 0600)
	}
	Ck(err)

	cmd, err := editorCommand(editor, fn)
	Ck(err)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err = cmd.Run()
	Ck(err, "editor %s failed", editor)
	return
}

// editorCommand splits the editor command line and appends fn.
func editorCommand(editor, fn string) (cmd *exec.Cmd, err error) {
	if editor == "" {
		editor = "vim"
	}
	// use shlex to split the editor command
	cmdline, err := shlex.Split(editor, true)
	if err != nil {
		return
	}
	if len(cmdline) == 0 {
		return nil, fmt.Errorf("empty editor command %q", editor)
	}
	args := append(cmdline[1:], fn)
	return exec.Command(cmdline[0], args...), nil
}
