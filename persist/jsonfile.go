package persist

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/gptcli/core"
	"github.com/stevegt/gptcli/util"
)

// FileStore keeps the conversation store in one JSON file.  A shared
// lock on <path>.lock is held while reading and an exclusive one while
// writing.  Writes go to a temporary file which is renamed into place.
type FileStore struct {
	Path string
	// Stderr receives migration notices; nothing is printed if nil.
	Stderr io.Writer
}

// NewFileStore returns a FileStore at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (fs *FileStore) lock() (lock *flock.Flock, err error) {
	defer Return(&err)
	lockpath := fs.Path + ".lock"
	// ensure the lock file exists
	lockfh, err := os.OpenFile(lockpath, os.O_CREATE, 0644)
	Ck(err)
	err = lockfh.Close()
	Ck(err)
	lock = flock.New(lockpath)
	return
}

// Exists reports whether the store file exists.
func (fs *FileStore) Exists() (ok bool, err error) {
	_, err = os.Stat(fs.Path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Init creates an empty store, and its directory if needed.
func (fs *FileStore) Init() (err error) {
	err = os.MkdirAll(filepath.Dir(fs.Path), 0700)
	if err != nil {
		return
	}
	return fs.Save(nil, nil)
}

// Load reads the whole store.  A store written by an older version is
// backed up and rewritten at the current version the first time it is
// loaded.
func (fs *FileStore) Load() (names []string, convs []*core.Conversation, err error) {
	lock, err := fs.lock()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", core.ErrStoreUnreadable, err)
	}
	Debug("locking %s ro...", fs.Path)
	err = lock.RLock()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", core.ErrStoreUnreadable, err)
	}
	buf, err := os.ReadFile(fs.Path)
	lock.Unlock()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", core.ErrStoreUnreadable, err)
	}
	_, migrated, _, _, err := migrate(buf)
	if err != nil {
		return
	}
	if migrated {
		buf, err = fs.upgrade(lock)
		if err != nil {
			return
		}
	}
	var rec storeRecord
	err = json.Unmarshal(buf, &rec)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", core.ErrStoreCorrupt, err)
	}
	return rec.decode()
}

// upgrade migrates the store file in place under the exclusive lock
// and returns the migrated contents.  The file is re-read first since
// another process may have upgraded it already.  If the backup fails
// the file is left as it was and only the returned copy is migrated.
func (fs *FileStore) upgrade(lock *flock.Flock) (buf []byte, err error) {
	Debug("locking %s rw for migration...", fs.Path)
	err = lock.Lock()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnreadable, err)
	}
	defer lock.Unlock()
	buf, err = os.ReadFile(fs.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnreadable, err)
	}
	buf, migrated, was, now, err := migrate(buf)
	if err != nil || !migrated {
		return
	}
	backpath, err := fs.Backup()
	if err != nil {
		fs.warn("warning: backup of old store failed, leaving it at version %s: %v\n", was, err)
		return buf, nil
	}
	err = util.WriteFileAtomic(fs.Path, buf, 0600)
	if err != nil {
		return nil, fmt.Errorf("cannot write migrated store: %w", err)
	}
	fs.warn("migrated conversation store from version %s to %s\n", was, now)
	fs.warn("backup of old store saved to %s\n", backpath)
	return
}

func (fs *FileStore) warn(format string, args ...any) {
	if fs.Stderr == nil {
		return
	}
	Fpf(fs.Stderr, format, args...)
}

// Save rewrites the whole store.
func (fs *FileStore) Save(names []string, convs []*core.Conversation) (err error) {
	defer Return(&err)
	Assert(len(names) == len(convs), "%d names but %d conversations", len(names), len(convs))
	data, err := marshal(names, convs)
	Ck(err)
	lock, err := fs.lock()
	Ck(err)
	Debug("locking %s rw...", fs.Path)
	err = lock.Lock()
	Ck(err)
	defer lock.Unlock()
	Debug("saving conversation store")
	err = util.WriteFileAtomic(fs.Path, data, 0600)
	Ck(err)
	return
}

// Backup copies the store file to a timestamped file in the temp
// directory.
func (fs *FileStore) Backup() (backpath string, err error) {
	defer Return(&err)
	Assert(fs.Path != "", "store path is empty")
	tmpdir := os.TempDir()
	deslashed := strings.Replace(fs.Path, "/", "-", -1)
	backpath = fmt.Sprintf("%s/gptcli-backup-%s%s", tmpdir, time.Now().Format("20060102-150405.000000"), deslashed)
	err = util.CopyFile(fs.Path, backpath)
	Ck(err, "failed to backup %q to %q", fs.Path, backpath)
	return
}

var _ core.Persister = (*FileStore)(nil)
