package storage

import (
	"bytes"
	"fmt"
	"testing"
)

func TestReplLogKeyEncodeOrder(t *testing.T) {
	keys := []ReplLogKey{
		{TxnId: 1, Seq: 0},
		{TxnId: 1, Seq: 1},
		{TxnId: 2, Seq: 0},
		{TxnId: 255, Seq: 3},
		{TxnId: 256, Seq: 0},
		{TxnId: 1 << 40, Seq: 0},
	}
	for i := 1; i < len(keys); i++ {
		prev, cur := keys[i-1].Encode(), keys[i].Encode()
		if bytes.Compare(prev, cur) >= 0 {
			t.Fatalf("key %v does not order before %v", keys[i-1], keys[i])
		}
	}
}

func TestReplLogRoundtrip(t *testing.T) {
	orig := ReplLog{
		LogKey:   ReplLogKey{TxnId: 42, Seq: 7},
		LogValue: ReplLogValue{Op: OpSet, Key: []byte("some-key"), Val: []byte("some-value")},
	}
	keyBytes, valBytes, err := orig.Encode()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeReplLog(keyBytes, valBytes)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.LogKey != orig.LogKey {
		t.Fatalf("key %v != %v", decoded.LogKey, orig.LogKey)
	}
	if decoded.LogValue.Op != orig.LogValue.Op ||
		!bytes.Equal(decoded.LogValue.Key, orig.LogValue.Key) ||
		!bytes.Equal(decoded.LogValue.Val, orig.LogValue.Val) {
		t.Fatalf("value %v != %v", decoded.LogValue, orig.LogValue)
	}
}

func TestBinlogCursorOrder(t *testing.T) {
	store := makeTestStore(t, t.TempDir())
	defer store.Close()

	// three transactions with 1, 3 and 2 entries
	sizes := []int{1, 3, 2}
	for txnIdx, n := range sizes {
		ops := make([]Op, n)
		for i := range ops {
			ops[i] = Op{Type: OpSet, Key: []byte(fmt.Sprintf("t%d-k%d", txnIdx, i)), Val: []byte("v")}
		}
		if _, err := store.Write(ops...); err != nil {
			t.Fatal(err)
		}
	}

	txn, err := store.NewTransaction()
	if err != nil {
		t.Fatal(err)
	}
	defer txn.Close()
	cursor := txn.NewBinlogCursor(1)
	defer cursor.Close()

	var prev ReplLogKey
	total := 0
	for {
		entry, err := cursor.Next()
		if err == ErrExhaust {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if total > 0 {
			if entry.LogKey.TxnId < prev.TxnId ||
				(entry.LogKey.TxnId == prev.TxnId && entry.LogKey.Seq <= prev.Seq) {
				t.Fatalf("cursor out of order: %v after %v", entry.LogKey, prev)
			}
		}
		prev = entry.LogKey
		total++
	}
	if total != 6 {
		t.Fatalf("cursor yielded %d entries, want 6", total)
	}
}

func TestBinlogCursorStartPosition(t *testing.T) {
	store := makeTestStore(t, t.TempDir())
	defer store.Close()

	var txnIds []uint64
	for i := 0; i < 4; i++ {
		txn, err := store.Set([]byte(fmt.Sprintf("k%d", i)), []byte("v"))
		if err != nil {
			t.Fatal(err)
		}
		txnIds = append(txnIds, txn)
	}

	txn, err := store.NewTransaction()
	if err != nil {
		t.Fatal(err)
	}
	defer txn.Close()
	cursor := txn.NewBinlogCursor(txnIds[2])
	defer cursor.Close()

	entry, err := cursor.Next()
	if err != nil {
		t.Fatal(err)
	}
	if entry.LogKey.TxnId != txnIds[2] {
		t.Fatalf("cursor started at txn %d, want %d", entry.LogKey.TxnId, txnIds[2])
	}
}

func TestBinlogCursorExhaust(t *testing.T) {
	store := makeTestStore(t, t.TempDir())
	defer store.Close()

	txn, err := store.NewTransaction()
	if err != nil {
		t.Fatal(err)
	}
	defer txn.Close()
	cursor := txn.NewBinlogCursor(1)
	defer cursor.Close()

	if _, err := cursor.Next(); err != ErrExhaust {
		t.Fatalf("empty binlog cursor returned %v, want ErrExhaust", err)
	}
}

func TestBinlogCursorSnapshotIsolation(t *testing.T) {
	store := makeTestStore(t, t.TempDir())
	defer store.Close()

	if _, err := store.Set([]byte("k0"), []byte("v")); err != nil {
		t.Fatal(err)
	}

	txn, err := store.NewTransaction()
	if err != nil {
		t.Fatal(err)
	}
	defer txn.Close()

	// committed after the snapshot, must stay invisible to the cursor
	if _, err := store.Set([]byte("k1"), []byte("v")); err != nil {
		t.Fatal(err)
	}

	cursor := txn.NewBinlogCursor(1)
	defer cursor.Close()
	seen := 0
	for {
		if _, err := cursor.Next(); err == ErrExhaust {
			break
		} else if err != nil {
			t.Fatal(err)
		}
		seen++
	}
	if seen != 1 {
		t.Fatalf("cursor saw %d entries, want 1", seen)
	}
}
