package storage

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/gujiacun/tendis/pkg/common/utils"
)

const (
	backupDataFile   = "data.dump"
	backupBinlogFile = "binlog.dump"
	backupMetaFile   = "META"
)

// BackupInfo describes one finished backup: the directory its files live
// in, a name -> size manifest, and the greatest txnId the backup contains.
// A slave that restores it resumes incr-sync from binlogPos = CommitId.
type BackupInfo struct {
	Dir      string
	Files    map[string]uint64
	CommitId uint64
}

type backupMeta struct {
	CommitId      uint64 `json:"commit_id"`
	FirstBinlogId uint64 `json:"first_binlog_id"`
}

// Backup dumps a consistent snapshot of the store into its backup dir.
// Only one backup may be alive per store; it stays on disk until
// ReleaseBackup.
func (s *Store) Backup() (*BackupInfo, error) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil, fmt.Errorf("store %d is not running", s.id)
	}
	if s.backupRunning {
		s.mu.Unlock()
		return nil, fmt.Errorf("store %d backup is already running", s.id)
	}
	commitId := s.nextTxnId - 1
	firstId := s.firstBinlogId
	// the snapshot is taken under mu, so no write commits between reading
	// commitId and freezing the view
	snap, err := s.db.GetSnapshot()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.backupRunning = true
	s.mu.Unlock()
	defer snap.Release()

	if err := os.RemoveAll(s.backupDir); err != nil {
		s.abortBackup()
		return nil, err
	}
	if err := utils.CheckAndMkdir(s.backupDir); err != nil {
		s.abortBackup()
		return nil, err
	}

	if err := s.dumpPrefix(snap, dataPrefix, backupDataFile); err != nil {
		s.abortBackup()
		return nil, err
	}
	if err := s.dumpPrefix(snap, binlogPrefix, backupBinlogFile); err != nil {
		s.abortBackup()
		return nil, err
	}
	metaBytes, err := json.Marshal(backupMeta{CommitId: commitId, FirstBinlogId: firstId})
	if err != nil {
		s.abortBackup()
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(s.backupDir, backupMetaFile), metaBytes, 0644); err != nil {
		s.abortBackup()
		return nil, err
	}

	files := map[string]uint64{}
	for _, name := range []string{backupDataFile, backupBinlogFile, backupMetaFile} {
		size, err := utils.SizeOfFile(filepath.Join(s.backupDir, name))
		if err != nil {
			s.abortBackup()
			return nil, err
		}
		files[name] = size
	}
	s.log.Infof("store %d backup ready, commitId=%d", s.id, commitId)
	return &BackupInfo{Dir: s.backupDir, Files: files, CommitId: commitId}, nil
}

func (s *Store) dumpPrefix(snap *leveldb.Snapshot, prefix []byte, name string) error {
	file, err := os.Create(filepath.Join(s.backupDir, name))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriterSize(file, 1024*1024)
	iter := snap.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	lenBuf := make([]byte, 4)
	for iter.Next() {
		for _, part := range [][]byte{iter.Key(), iter.Value()} {
			binary.BigEndian.PutUint32(lenBuf, uint32(len(part)))
			if _, err := writer.Write(lenBuf); err != nil {
				return err
			}
			if _, err := writer.Write(part); err != nil {
				return err
			}
		}
	}
	if err := iter.Error(); err != nil {
		return err
	}
	return writer.Flush()
}

func (s *Store) abortBackup() {
	s.mu.Lock()
	s.backupRunning = false
	s.mu.Unlock()
}

func (s *Store) ReleaseBackup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.backupRunning {
		return fmt.Errorf("store %d has no backup to release", s.id)
	}
	s.backupRunning = false
	return os.RemoveAll(s.backupDir)
}

func (s *Store) BackupDir() string {
	return s.backupDir
}
