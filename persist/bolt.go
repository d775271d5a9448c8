package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stevegt/gptcli/core"
)

const (
	metaBucket  = "meta"
	convBucket  = "conversations"
	versionKey  = "version"
	convKeyFmt  = "%08d"
	boltVersion = Version
)

// BoltStore keeps the conversation store in a bolt database.  Each
// conversation is one JSON record keyed by its zero-padded index, so
// key order is store order.
type BoltStore struct {
	Path string
}

// NewBoltStore returns a BoltStore at path.
func NewBoltStore(path string) *BoltStore {
	return &BoltStore{Path: path}
}

// Exists reports whether the database file exists.
func (bs *BoltStore) Exists() (ok bool, err error) {
	_, err = os.Stat(bs.Path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Init creates an empty database.
func (bs *BoltStore) Init() (err error) {
	err = os.MkdirAll(filepath.Dir(bs.Path), 0700)
	if err != nil {
		return
	}
	return bs.Save(nil, nil)
}

// Load reads every conversation in key order.
func (bs *BoltStore) Load() (names []string, convs []*core.Conversation, err error) {
	db, err := openKV(bs.Path, true)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", core.ErrStoreUnreadable, err)
	}
	defer db.Close()
	tx, err := db.begin(false)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", core.ErrStoreUnreadable, err)
	}
	defer tx.rollback()

	ver := string(tx.get(metaBucket, versionKey))
	if ver != boltVersion {
		return nil, nil, fmt.Errorf("%w: bolt store version %q, expected %q", core.ErrStoreCorrupt, ver, boltVersion)
	}
	err = tx.each(convBucket, func(key string, value []byte) error {
		var rec convRecord
		err := json.Unmarshal(value, &rec)
		if err != nil {
			return fmt.Errorf("%w: record %s: %v", core.ErrStoreCorrupt, key, err)
		}
		c, err := decodeConv(rec)
		if err != nil {
			return err
		}
		names = append(names, rec.Name)
		convs = append(convs, c)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return
}

// Save replaces every record in one transaction.
func (bs *BoltStore) Save(names []string, convs []*core.Conversation) (err error) {
	if len(names) != len(convs) {
		return fmt.Errorf("%d names but %d conversations", len(names), len(convs))
	}
	db, err := openKV(bs.Path, false)
	if err != nil {
		return
	}
	defer db.Close()
	tx, err := db.begin(true)
	if err != nil {
		return
	}
	defer func() {
		if err != nil {
			tx.rollback()
		}
	}()

	err = tx.dropBucket(convBucket)
	if err != nil {
		return
	}
	_, err = tx.makeBucket(convBucket)
	if err != nil {
		return
	}
	for i, c := range convs {
		if c.Name() != names[i] {
			return fmt.Errorf("name %q at index %d does not match conversation %q", names[i], i, c.Name())
		}
		var buf []byte
		buf, err = json.Marshal(encodeConv(c))
		if err != nil {
			return
		}
		err = tx.put(convBucket, fmt.Sprintf(convKeyFmt, i), buf)
		if err != nil {
			return
		}
	}
	err = tx.put(metaBucket, versionKey, []byte(boltVersion))
	if err != nil {
		return
	}
	return tx.commit()
}

var _ core.Persister = (*BoltStore)(nil)
