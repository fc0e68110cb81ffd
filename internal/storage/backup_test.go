package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestBackupManifest(t *testing.T) {
	store := makeTestStore(t, t.TempDir())
	defer store.Close()

	var lastTxn uint64
	for i := 0; i < 10; i++ {
		txn, err := store.Set([]byte(fmt.Sprintf("k%d", i)), []byte("value"))
		if err != nil {
			t.Fatal(err)
		}
		lastTxn = txn
	}

	bkInfo, err := store.Backup()
	if err != nil {
		t.Fatal(err)
	}
	if bkInfo.CommitId != lastTxn {
		t.Fatalf("CommitId=%d, want %d", bkInfo.CommitId, lastTxn)
	}
	if len(bkInfo.Files) != 3 {
		t.Fatalf("manifest has %d files, want 3", len(bkInfo.Files))
	}
	for name, size := range bkInfo.Files {
		stat, err := os.Stat(filepath.Join(store.BackupDir(), name))
		if err != nil {
			t.Fatal(err)
		}
		if uint64(stat.Size()) != size {
			t.Fatalf("file %s size %d, manifest says %d", name, stat.Size(), size)
		}
	}

	if err := store.ReleaseBackup(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(store.BackupDir()); !os.IsNotExist(err) {
		t.Fatalf("backup dir still exists after release: %v", err)
	}
}

func TestBackupExclusive(t *testing.T) {
	store := makeTestStore(t, t.TempDir())
	defer store.Close()

	if _, err := store.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Backup(); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Backup(); err == nil {
		t.Fatal("second backup succeeded while first not released")
	}
	if err := store.ReleaseBackup(); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Backup(); err != nil {
		t.Fatalf("backup after release failed: %v", err)
	}
	if err := store.ReleaseBackup(); err != nil {
		t.Fatal(err)
	}
}

func TestBackupStoppedStore(t *testing.T) {
	store := makeTestStore(t, t.TempDir())
	defer store.Close()

	store.Stop()
	if _, err := store.Backup(); err == nil {
		t.Fatal("backup of a stopped store succeeded")
	}
}

func TestReleaseWithoutBackup(t *testing.T) {
	store := makeTestStore(t, t.TempDir())
	defer store.Close()

	if err := store.ReleaseBackup(); err == nil {
		t.Fatal("release without backup succeeded")
	}
}
