package persist

import (
	"time"

	. "github.com/stevegt/goadapt"
	bolt "go.etcd.io/bbolt"
)

// kvDb is a small adapter over bolt.  Keys and bucket names are
// strings; values are byte slices.
type kvDb struct {
	bdb *bolt.DB
}

// openKV opens a database, creating it if it doesn't exist.  A
// read-only handle shares bolt's file lock with other readers.
func openKV(path string, readonly bool) (db *kvDb, err error) {
	defer Return(&err)
	db = &kvDb{}
	opts := &bolt.Options{Timeout: 10 * time.Second, ReadOnly: readonly}
	db.bdb, err = bolt.Open(path, 0600, opts)
	Ck(err)
	return
}

func (db *kvDb) Close() error {
	return db.bdb.Close()
}

// begin starts a transaction.
func (db *kvDb) begin(writable bool) (tx *kvTx, err error) {
	defer Return(&err)
	btx, err := db.bdb.Begin(writable)
	Ck(err)
	tx = &kvTx{btx}
	return
}

// kvTx is a transaction.
type kvTx struct {
	btx *bolt.Tx
}

func (tx *kvTx) rollback() error {
	return tx.btx.Rollback()
}

func (tx *kvTx) commit() error {
	return tx.btx.Commit()
}

// put adds or replaces a record, creating the bucket if needed.
func (tx *kvTx) put(bucket, key string, value []byte) (err error) {
	defer Return(&err)
	b, err := tx.makeBucket(bucket)
	Ck(err)
	err = b.Put([]byte(key), value)
	Ck(err)
	return
}

// get returns nil if the bucket or key does not exist.
func (tx *kvTx) get(bucket, key string) (value []byte) {
	b := tx.btx.Bucket([]byte(bucket))
	if b == nil {
		return
	}
	return b.Get([]byte(key))
}

// each calls fn for every record in the bucket in key order.
func (tx *kvTx) each(bucket string, fn func(key string, value []byte) error) error {
	b := tx.btx.Bucket([]byte(bucket))
	if b == nil {
		return nil
	}
	return b.ForEach(func(k, v []byte) error {
		return fn(string(k), v)
	})
}

func (tx *kvTx) makeBucket(bucket string) (b *bolt.Bucket, err error) {
	return tx.btx.CreateBucketIfNotExists([]byte(bucket))
}

// dropBucket deletes a bucket and everything in it.
func (tx *kvTx) dropBucket(bucket string) (err error) {
	err = tx.btx.DeleteBucket([]byte(bucket))
	if err == bolt.ErrBucketNotFound {
		err = nil
	}
	return
}
