package store

import (
	"fmt"

	"github.com/hashicorp/go-memdb"
)

const recordsTable = "records"

type record struct {
	Bucket string
	Key    string
	Value  []byte
}

func memSchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			recordsTable: {
				Name: recordsTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:   "id",
						Unique: true,
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "Bucket"},
								&memdb.StringFieldIndex{Field: "Key"},
							},
						},
					},
					"bucket": {
						Name:    "bucket",
						Indexer: &memdb.StringFieldIndex{Field: "Bucket"},
					},
				},
			},
		},
	}
}

// MemoryBackend keeps all buckets in a go-memdb database.
type MemoryBackend struct {
	db      *memdb.MemDB
	buckets map[string]bool
}

func OpenMemory(buckets []string) (*MemoryBackend, error) {
	db, err := memdb.NewMemDB(memSchema())
	if err != nil {
		return nil, fmt.Errorf("create memdb: %w", err)
	}
	known := make(map[string]bool, len(buckets))
	for _, b := range buckets {
		known[b] = true
	}
	return &MemoryBackend{db: db, buckets: known}, nil
}

func (m *MemoryBackend) View(fn func(Tx) error) error {
	txn := m.db.Txn(false)
	defer txn.Abort()
	return fn(memTx{txn: txn, buckets: m.buckets})
}

func (m *MemoryBackend) Update(fn func(Tx) error) error {
	txn := m.db.Txn(true)
	if err := fn(memTx{txn: txn, buckets: m.buckets, write: true}); err != nil {
		txn.Abort()
		return err
	}
	txn.Commit()
	return nil
}

func (m *MemoryBackend) Close() error { return nil }

type memTx struct {
	txn     *memdb.Txn
	buckets map[string]bool
	write   bool
}

func (t memTx) check(bucket string) error {
	if !t.buckets[bucket] {
		return fmt.Errorf("unknown bucket %q", bucket)
	}
	return nil
}

func (t memTx) find(bucket, key string) (*record, error) {
	raw, err := t.txn.First(recordsTable, "id", bucket, key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return raw.(*record), nil
}

func (t memTx) Get(bucket, key string) ([]byte, error) {
	if err := t.check(bucket); err != nil {
		return nil, err
	}
	r, err := t.find(bucket, key)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNotFound
	}
	out := make([]byte, len(r.Value))
	copy(out, r.Value)
	return out, nil
}

func (t memTx) Put(bucket, key string, val []byte) error {
	if err := t.check(bucket); err != nil {
		return err
	}
	if !t.write {
		return fmt.Errorf("put on read-only transaction")
	}
	v := make([]byte, len(val))
	copy(v, val)
	return t.txn.Insert(recordsTable, &record{Bucket: bucket, Key: key, Value: v})
}

func (t memTx) Delete(bucket, key string) error {
	if err := t.check(bucket); err != nil {
		return err
	}
	if !t.write {
		return fmt.Errorf("delete on read-only transaction")
	}
	r, err := t.find(bucket, key)
	if err != nil || r == nil {
		return err
	}
	return t.txn.Delete(recordsTable, r)
}

func (t memTx) ForEach(bucket string, fn func(key string, val []byte) error) error {
	if err := t.check(bucket); err != nil {
		return err
	}
	it, err := t.txn.Get(recordsTable, "bucket", bucket)
	if err != nil {
		return err
	}
	// Snapshot first: fn may write to the same table.
	var recs []*record
	for raw := it.Next(); raw != nil; raw = it.Next() {
		recs = append(recs, raw.(*record))
	}
	for _, r := range recs {
		out := make([]byte, len(r.Value))
		copy(out, r.Value)
		if err := fn(r.Key, out); err != nil {
			return err
		}
	}
	return nil
}
