package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Allen1211/msgp/msgp"
)

// Binlog entries are keyed by (txnId, seq). All entries written by one
// transaction share a txnId; seq numbers them inside the transaction.
// The key encoding is big-endian so leveldb iteration order equals
// (txnId, seq) order.

const (
	OpSet uint8 = iota + 1
	OpDel
)

// ErrExhaust marks the end of a binlog cursor. It is not a failure.
var ErrExhaust = errors.New("binlog exhausted")

type ReplLogKey struct {
	TxnId uint64
	Seq   uint32
}

type ReplLogValue struct {
	Op  uint8
	Key []byte
	Val []byte
}

type ReplLog struct {
	LogKey   ReplLogKey
	LogValue ReplLogValue
}

const replLogKeyLen = 12

func (k *ReplLogKey) Encode() []byte {
	buf := make([]byte, replLogKeyLen)
	binary.BigEndian.PutUint64(buf[0:8], k.TxnId)
	binary.BigEndian.PutUint32(buf[8:12], k.Seq)
	return buf
}

func DecodeReplLogKey(data []byte) (ReplLogKey, error) {
	if len(data) != replLogKeyLen {
		return ReplLogKey{}, fmt.Errorf("bad repl log key length: %d", len(data))
	}
	return ReplLogKey{
		TxnId: binary.BigEndian.Uint64(data[0:8]),
		Seq:   binary.BigEndian.Uint32(data[8:12]),
	}, nil
}

func (v *ReplLogValue) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendArrayHeader(b, 3)
	b = msgp.AppendUint8(b, v.Op)
	b = msgp.AppendBytes(b, v.Key)
	b = msgp.AppendBytes(b, v.Val)
	return b, nil
}

func (v *ReplLogValue) UnmarshalMsg(b []byte) ([]byte, error) {
	sz, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return b, err
	}
	if sz != 3 {
		return b, msgp.ArrayError{Wanted: 3, Got: sz}
	}
	if v.Op, b, err = msgp.ReadUint8Bytes(b); err != nil {
		return b, err
	}
	if v.Key, b, err = msgp.ReadBytesBytes(b, nil); err != nil {
		return b, err
	}
	if v.Val, b, err = msgp.ReadBytesBytes(b, nil); err != nil {
		return b, err
	}
	return b, nil
}

// Encode renders the entry as the opaque (keyBytes, valueBytes) pair
// shipped inside an applybinlogs frame.
func (l *ReplLog) Encode() ([]byte, []byte, error) {
	val, err := l.LogValue.MarshalMsg(nil)
	if err != nil {
		return nil, nil, err
	}
	return l.LogKey.Encode(), val, nil
}

func DecodeReplLog(keyBytes, valBytes []byte) (ReplLog, error) {
	key, err := DecodeReplLogKey(keyBytes)
	if err != nil {
		return ReplLog{}, err
	}
	val := ReplLogValue{}
	if _, err := val.UnmarshalMsg(valBytes); err != nil {
		return ReplLog{}, err
	}
	return ReplLog{LogKey: key, LogValue: val}, nil
}
