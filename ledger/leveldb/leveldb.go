package leveldb

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/govm-net/vmhost/ledger"
)

const defaultDBDir = "./ledger.ldb"

// Ledger implements ledger.Snapshot on a leveldb directory
type Ledger struct {
	db *leveldb.DB
}

func init() {
	if err := ledger.Register(ledger.LevelDBBackend, func(params map[string]any) (ledger.Snapshot, error) {
		return Open(params)
	}); err != nil {
		panic(err)
	}
}

// Open opens or creates the database directory named by params["db_path"]
func Open(params map[string]any) (*Ledger, error) {
	dir := defaultDBDir
	if path, ok := params["db_path"].(string); ok && path != "" {
		dir = path
	}
	db, err := leveldb.OpenFile(dir, &opt.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb %s: %w", dir, err)
	}
	return &Ledger{db: db}, nil
}

// Get implements ledger.Snapshot
func (l *Ledger) Get(key []byte) (*ledger.Entry, error) {
	b, err := l.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return ledger.DecodeEntry(b)
}

// Apply implements ledger.Snapshot
func (l *Ledger) Apply(changes []ledger.Change) error {
	batch := new(leveldb.Batch)
	for _, c := range changes {
		if c.Entry == nil {
			batch.Delete(c.Key)
			continue
		}
		batch.Put(c.Key, ledger.EncodeEntry(c.Entry))
	}
	if err := l.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("failed to write batch: %w", err)
	}
	return nil
}

// Close implements ledger.Snapshot
func (l *Ledger) Close() error {
	return l.db.Close()
}
