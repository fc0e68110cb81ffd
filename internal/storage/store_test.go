package storage

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/gujiacun/tendis/pkg/common"
)

func makeTestStore(t *testing.T, dir string) *Store {
	logger, err := common.InitLogger("error", "storage-test")
	if err != nil {
		t.Fatal(err)
	}
	store, err := MakeStore(dir, 0, logger)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestStoreSetGetDel(t *testing.T) {
	store := makeTestStore(t, t.TempDir())
	defer store.Close()

	if _, err := store.Set([]byte("k1"), []byte("v1")); err != nil {
		t.Fatal(err)
	}
	val, err := store.Get([]byte("k1"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(val, []byte("v1")) {
		t.Fatalf("got %q, want v1", val)
	}

	if _, err := store.Del([]byte("k1")); err != nil {
		t.Fatal(err)
	}
	val, err = store.Get([]byte("k1"))
	if err != nil {
		t.Fatal(err)
	}
	if val != nil {
		t.Fatalf("got %q after delete, want nil", val)
	}
}

func TestStoreTxnIdAllocation(t *testing.T) {
	store := makeTestStore(t, t.TempDir())
	defer store.Close()

	txn1, err := store.Write(
		Op{Type: OpSet, Key: []byte("a"), Val: []byte("1")},
		Op{Type: OpSet, Key: []byte("b"), Val: []byte("2")},
		Op{Type: OpDel, Key: []byte("a")},
	)
	if err != nil {
		t.Fatal(err)
	}
	txn2, err := store.Set([]byte("c"), []byte("3"))
	if err != nil {
		t.Fatal(err)
	}
	if txn2 != txn1+1 {
		t.Fatalf("txn ids not consecutive: %d then %d", txn1, txn2)
	}
	if got := store.HighestBinlogId(); got != txn2 {
		t.Fatalf("HighestBinlogId=%d, want %d", got, txn2)
	}
}

func TestStoreReopen(t *testing.T) {
	dir := t.TempDir()
	store := makeTestStore(t, dir)

	var lastTxn uint64
	for i := 0; i < 5; i++ {
		txn, err := store.Set([]byte(fmt.Sprintf("k%d", i)), []byte("v"))
		if err != nil {
			t.Fatal(err)
		}
		lastTxn = txn
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := makeTestStore(t, dir)
	defer reopened.Close()

	if got := reopened.HighestBinlogId(); got != lastTxn {
		t.Fatalf("HighestBinlogId after reopen=%d, want %d", got, lastTxn)
	}
	val, err := reopened.Get([]byte("k3"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(val, []byte("v")) {
		t.Fatalf("got %q after reopen, want v", val)
	}
}

func TestStoreTruncateBinlog(t *testing.T) {
	store := makeTestStore(t, t.TempDir())
	defer store.Close()

	txnIds := make([]uint64, 0, 5)
	for i := 0; i < 5; i++ {
		txn, err := store.Set([]byte(fmt.Sprintf("k%d", i)), []byte("v"))
		if err != nil {
			t.Fatal(err)
		}
		txnIds = append(txnIds, txn)
	}

	if err := store.TruncateBinlogTo(txnIds[2]); err != nil {
		t.Fatal(err)
	}
	if got := store.FirstBinlogId(); got != txnIds[2] {
		t.Fatalf("FirstBinlogId=%d, want %d", got, txnIds[2])
	}

	txn, err := store.NewTransaction()
	if err != nil {
		t.Fatal(err)
	}
	defer txn.Close()
	cursor := txn.NewBinlogCursor(1)
	defer cursor.Close()

	first, err := cursor.Next()
	if err != nil {
		t.Fatal(err)
	}
	if first.LogKey.TxnId != txnIds[2] {
		t.Fatalf("first surviving txn=%d, want %d", first.LogKey.TxnId, txnIds[2])
	}
}
