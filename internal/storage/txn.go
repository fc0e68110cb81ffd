package storage

import (
	"bytes"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Txn is a read transaction over a leveldb snapshot. Cursors opened from it
// observe a frozen view of the binlog.
type Txn struct {
	snap *leveldb.Snapshot
}

func (s *Store) NewTransaction() (*Txn, error) {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, err
	}
	return &Txn{snap: snap}, nil
}

func (t *Txn) Close() {
	t.snap.Release()
}

// BinlogCursor iterates committed binlog entries in (txnId, seq) order,
// starting from the first entry whose txnId >= the requested position.
type BinlogCursor struct {
	iter    iterator.Iterator
	start   []byte
	started bool
}

func (t *Txn) NewBinlogCursor(fromTxnId uint64) *BinlogCursor {
	iter := t.snap.NewIterator(util.BytesPrefix(binlogPrefix), nil)
	return &BinlogCursor{
		iter:  iter,
		start: binlogKey(ReplLogKey{TxnId: fromTxnId, Seq: 0}),
	}
}

func (c *BinlogCursor) Next() (ReplLog, error) {
	var ok bool
	if !c.started {
		c.started = true
		ok = c.iter.Seek(c.start)
	} else {
		ok = c.iter.Next()
	}
	if !ok {
		if err := c.iter.Error(); err != nil {
			return ReplLog{}, err
		}
		return ReplLog{}, ErrExhaust
	}
	rawKey := bytes.TrimPrefix(append([]byte{}, c.iter.Key()...), binlogPrefix)
	key, err := DecodeReplLogKey(rawKey)
	if err != nil {
		return ReplLog{}, err
	}
	val := ReplLogValue{}
	if _, err := val.UnmarshalMsg(c.iter.Value()); err != nil {
		return ReplLog{}, err
	}
	return ReplLog{LogKey: key, LogValue: val}, nil
}

func (c *BinlogCursor) Close() {
	c.iter.Release()
}
