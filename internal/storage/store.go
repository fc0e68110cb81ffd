package storage

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/gujiacun/tendis/pkg/common/utils"
)

var (
	dataPrefix   = []byte("d:")
	binlogPrefix = []byte("b:")

	keyNextTxnId    = []byte("m:nexttxn")
	keyFirstBinlogId = []byte("m:firstbinlog")
)

type Op struct {
	Type uint8
	Key  []byte
	Val  []byte
}

// Store is one of the server's independent KV instances. Every committed
// write appends its binlog entries in the same leveldb batch, so the data
// and the binlog can never diverge.
type Store struct {
	mu   sync.RWMutex
	id   uint32
	dir  string
	db   *leveldb.DB
	log  *logrus.Logger

	running       bool
	nextTxnId     uint64
	firstBinlogId uint64

	backupRunning bool
	backupDir     string
}

func MakeStore(baseDir string, id uint32, logger *logrus.Logger) (*Store, error) {
	dir := filepath.Join(baseDir, fmt.Sprintf("%d", id))
	if err := utils.CheckAndMkdir(dir); err != nil {
		return nil, err
	}
	db, err := leveldb.OpenFile(filepath.Join(dir, "db"), nil)
	if err != nil {
		return nil, err
	}
	s := &Store{
		id:        id,
		dir:       dir,
		db:        db,
		log:       logger,
		running:   true,
		nextTxnId: 1,
		backupDir: filepath.Join(dir, "backup"),
	}
	if val, err := db.Get(keyNextTxnId, nil); err == nil {
		s.nextTxnId = binary.BigEndian.Uint64(val)
	} else if err != leveldb.ErrNotFound {
		_ = db.Close()
		return nil, err
	}
	if val, err := db.Get(keyFirstBinlogId, nil); err == nil {
		s.firstBinlogId = binary.BigEndian.Uint64(val)
	} else if err != leveldb.ErrNotFound {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Id() uint32 {
	return s.id
}

func (s *Store) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Write commits ops as one transaction and returns its txnId. All binlog
// entries of the transaction share the returned id.
func (s *Store) Write(ops ...Op) (uint64, error) {
	if len(ops) == 0 {
		return 0, fmt.Errorf("empty transaction")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return 0, fmt.Errorf("store %d is not running", s.id)
	}

	txnId := s.nextTxnId
	batch := new(leveldb.Batch)
	for i, op := range ops {
		switch op.Type {
		case OpSet:
			batch.Put(dataKey(op.Key), op.Val)
		case OpDel:
			batch.Delete(dataKey(op.Key))
		default:
			return 0, fmt.Errorf("unknown op type %d", op.Type)
		}
		rlk := ReplLogKey{TxnId: txnId, Seq: uint32(i)}
		rlv := ReplLogValue{Op: op.Type, Key: op.Key, Val: op.Val}
		valBytes, err := rlv.MarshalMsg(nil)
		if err != nil {
			return 0, err
		}
		batch.Put(binlogKey(rlk), valBytes)
	}
	nextBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(nextBuf, txnId+1)
	batch.Put(keyNextTxnId, nextBuf)

	if err := s.db.Write(batch, nil); err != nil {
		return 0, err
	}
	s.nextTxnId = txnId + 1
	return txnId, nil
}

func (s *Store) Set(key, val []byte) (uint64, error) {
	return s.Write(Op{Type: OpSet, Key: key, Val: val})
}

func (s *Store) Del(key []byte) (uint64, error) {
	return s.Write(Op{Type: OpDel, Key: key})
}

func (s *Store) Get(key []byte) ([]byte, error) {
	val, err := s.db.Get(dataKey(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	return val, err
}

func (s *Store) FirstBinlogId() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.firstBinlogId
}

// HighestBinlogId is the greatest committed txnId, 0 when nothing has been
// written yet.
func (s *Store) HighestBinlogId() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextTxnId - 1
}

// TruncateBinlogTo drops binlog entries with txnId < upTo and raises the
// retention floor to upTo. Slaves whose binlogPos fell below the floor can
// no longer incr-sync and must take a full sync.
func (s *Store) TruncateBinlogTo(upTo uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if upTo <= s.firstBinlogId {
		return nil
	}

	limit := binlogKey(ReplLogKey{TxnId: upTo, Seq: 0})
	iter := s.db.NewIterator(&util.Range{Start: binlogPrefix, Limit: limit}, nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(append([]byte{}, iter.Key()...))
	}
	if err := iter.Error(); err != nil {
		return err
	}
	floorBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(floorBuf, upTo)
	batch.Put(keyFirstBinlogId, floorBuf)

	if err := s.db.Write(batch, nil); err != nil {
		return err
	}
	s.log.Debugf("store %d binlog truncated to %d", s.id, upTo)
	s.firstBinlogId = upTo
	return nil
}

func (s *Store) KvCount() (uint64, error) {
	iter := s.db.NewIterator(util.BytesPrefix(dataPrefix), nil)
	defer iter.Release()
	cnt := uint64(0)
	for iter.Next() {
		cnt++
	}
	return cnt, iter.Error()
}

func (s *Store) Stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Store) Close() error {
	s.Stop()
	return s.db.Close()
}

func dataKey(key []byte) []byte {
	return append(append([]byte{}, dataPrefix...), key...)
}

func binlogKey(rlk ReplLogKey) []byte {
	return append(append([]byte{}, binlogPrefix...), rlk.Encode()...)
}
