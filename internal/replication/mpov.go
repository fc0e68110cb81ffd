package replication

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gujiacun/tendis/internal/netw"
	"github.com/gujiacun/tendis/internal/storage"
)

const (
	suggestBatch  = 64
	suggestBytes  = 16 * 1024 * 1024
	fullFileChunk = 20 * 1024 * 1024
)

// SupplyFullSync admits a FULLSYNC request onto the fullPusher pool.
// The pre-check can go stale before Schedule runs; the pool queue itself
// is the authoritative limit.
func (m *ReplManager) SupplyFullSync(client *netw.BlockingTcpClient, storeIdArg string) {
	if m.IsFullSupplierFull() {
		_ = client.WriteLine("-ERR workerpool full", time.Second)
		_ = client.Close()
		return
	}

	storeId, err := strconv.ParseUint(storeIdArg, 10, 32)
	if err != nil || storeId >= uint64(len(m.stores)) {
		_ = client.WriteLine("-ERR invalid storeId", time.Second)
		_ = client.Close()
		return
	}

	if !m.fullPusher.Schedule(func() {
		m.supplyFullSyncRoutine(client, uint32(storeId))
	}) {
		_ = client.WriteLine("-ERR workerpool full", time.Second)
		_ = client.Close()
	}
}

func (m *ReplManager) masterPushRoutine(storeId uint32, clientId uint64) {
	nextSched := time.Now()
	defer func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		pov, ok := m.pushStatus[storeId][clientId]
		if !ok {
			return
		}
		if !pov.isRunning {
			m.log.Panicf("push routine store %d client %d found isRunning false", storeId, clientId)
		}
		pov.isRunning = false
		pov.nextSchedTime = nextSched
	}()

	var (
		binlogPos  uint64
		client     *netw.BlockingTcpClient
		dstStoreId uint32
	)
	m.mu.Lock()
	pov, ok := m.pushStatus[storeId][clientId]
	if !ok {
		nextSched = nextSched.Add(time.Second)
		m.mu.Unlock()
		return
	}
	binlogPos = pov.binlogPos
	client = pov.client
	dstStoreId = pov.dstStoreId
	m.mu.Unlock()

	newPos, err := m.masterSendBinlog(client, storeId, dstStoreId, binlogPos)
	if err != nil {
		m.log.Warnf("masterSendBinlog to client:%s failed:%v", client.RemoteRepr(), err)
		m.mu.Lock()
		if pov, ok := m.pushStatus[storeId][clientId]; ok {
			_ = pov.client.Close()
			delete(m.pushStatus[storeId], clientId)
			slaveEvictCounter.Inc()
		}
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	if pov, ok := m.pushStatus[storeId][clientId]; ok {
		pov.binlogPos = newPos
	}
	if newPos > binlogPos {
		nextSched = time.Now()
	} else {
		nextSched = time.Now().Add(time.Second)
	}
	m.mu.Unlock()
}

// masterSendBinlog ships one batch of committed binlog entries starting
// after binlogPos and returns the new watermark. A transaction is never
// split across batches: the cut happens before the first entry of a new
// txnId once the count or byte budget is reached.
func (m *ReplManager) masterSendBinlog(client *netw.BlockingTcpClient,
		storeId, dstStoreId uint32, binlogPos uint64) (uint64, error) {
	store := m.getStore(storeId)
	if store == nil {
		return 0, fmt.Errorf("store %d not found", storeId)
	}

	txn, err := store.NewTransaction()
	if err != nil {
		return 0, err
	}
	defer txn.Close()

	cursor := txn.NewBinlogCursor(binlogPos + 1)
	defer cursor.Close()

	var binlogs []storage.ReplLog
	cnt := 0
	nowId := uint64(0)
	estimateSize := 0

	for {
		explog, err := cursor.Next()
		if err == storage.ErrExhaust {
			break
		}
		if err != nil {
			m.log.Errorf("iter binlog failed:%v", err)
			return 0, err
		}
		if explog.LogKey.TxnId != nowId {
			// cut only on transaction boundaries, so one transaction is
			// never split across batches even when it busts the budgets
			if cnt >= suggestBatch || estimateSize >= suggestBytes {
				break
			}
			nowId = explog.LogKey.TxnId
		}
		binlogs = append(binlogs, explog)
		cnt++
		estimateSize += len(explog.LogValue.Val)
	}

	buf := new(bytes.Buffer)
	netw.FmtMultiBulkLen(buf, len(binlogs)*2+2)
	netw.FmtBulkString(buf, "applybinlogs")
	netw.FmtBulkString(buf, strconv.FormatUint(uint64(dstStoreId), 10))
	for i := range binlogs {
		keyBytes, valBytes, err := binlogs[i].Encode()
		if err != nil {
			return 0, err
		}
		netw.FmtBulk(buf, keyBytes)
		netw.FmtBulk(buf, valBytes)
	}
	payload := buf.Bytes()

	timeout := time.Second
	if len(payload) > 10*1024*1024 {
		timeout = 4 * time.Second
	} else if len(payload) > 1024*1024 {
		timeout = 2 * time.Second
	}
	if err := client.WriteData(payload, timeout); err != nil {
		return 0, err
	}
	reply, err := client.ReadLine(timeout)
	if err != nil {
		return 0, err
	}
	if reply != "+OK" {
		m.log.Warnf("store:%d dst store:%d apply binlogs failed:%s", storeId, dstStoreId, reply)
		return 0, fmt.Errorf("bad return string:%s", reply)
	}

	if len(binlogs) == 0 {
		return binlogPos, nil
	}
	binlogBatchCounter.Inc()
	binlogBytesCounter.Add(float64(len(payload)))
	return binlogs[len(binlogs)-1].LogKey.TxnId, nil
}

//  1) s->m INCRSYNC <storeId> <dstStoreId> <binlogPos>
//  2) m->s +OK
//  3) s->m +PONG
//  4) m->s periodly send binlogs
//  the 3) step is necessary, if ignored, the +OK in step 2) and binlogs
//  in step 4) may sticky together, and the resp protocol is not
//  fixed-size, which makes the slave side input parsing complicated.
//
// binlogPos is the greatest id that has been applied, NOT the smallest id
// that has not been applied, the same convention as BackupInfo.CommitId.
func (m *ReplManager) RegisterIncrSync(client *netw.BlockingTcpClient,
		storeIdArg, dstStoreIdArg, binlogPosArg string) {
	var storeId, dstStoreId, binlogPos uint64
	storeId, err := strconv.ParseUint(storeIdArg, 10, 64)
	if err == nil {
		dstStoreId, err = strconv.ParseUint(dstStoreIdArg, 10, 64)
	}
	if err == nil {
		binlogPos, err = strconv.ParseUint(binlogPosArg, 10, 64)
	}
	if err != nil {
		_ = client.WriteLine(fmt.Sprintf("-ERR parse opts failed:%v", err), time.Second)
		_ = client.Close()
		return
	}

	if storeId >= uint64(len(m.stores)) || dstStoreId >= uint64(len(m.stores)) {
		_ = client.WriteLine("-ERR invalid storeId", time.Second)
		_ = client.Close()
		return
	}

	m.mu.Lock()
	firstPos := m.firstBinlogId[storeId]
	m.mu.Unlock()

	// this check is not in the same critical section with the insertion
	// below, so it can pass on state that is already stale. It does not
	// harm correctness: the authoritative re-check happens at insertion.
	if firstPos > binlogPos {
		_ = client.WriteLine("-ERR invalid binlogPos", time.Second)
		_ = client.Close()
		return
	}
	if err := client.WriteLine("+OK", time.Second); err != nil {
		m.log.Warnf("slave incrsync handshake failed:%v", err)
		_ = client.Close()
		return
	}
	pong, err := client.ReadLine(time.Second)
	if err != nil {
		m.log.Warnf("slave incrsync handshake failed:%v", err)
		_ = client.Close()
		return
	}
	if pong != "+PONG" {
		m.log.Warnf("slave incrsync handshake not +PONG:%s", pong)
		_ = client.Close()
		return
	}

	remoteHost := client.RemoteRepr()
	registPosOk := func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.firstBinlogId[storeId] > binlogPos {
			return false
		}
		clientId := atomic.AddUint64(&m.clientIdGen, 1)
		m.pushStatus[storeId][clientId] = &MPovStatus{
			isRunning:     false,
			dstStoreId:    uint32(dstStoreId),
			binlogPos:     binlogPos,
			nextSchedTime: time.Now(),
			client:        client,
			clientId:      clientId,
		}
		return true
	}()
	if registPosOk {
		m.log.Infof("slave:%s registerIncrSync ok", remoteHost)
	} else {
		_ = client.Close()
		m.log.Infof("slave:%s registerIncrSync failed", remoteHost)
	}
}

// supplyFullSyncRoutine streams a consistent snapshot to the slave: one
// json manifest line, then per file a name line followed by the raw bytes.
// The backup is released on every exit path.
func (m *ReplManager) supplyFullSyncRoutine(client *netw.BlockingTcpClient, storeId uint32) {
	defer func() {
		_ = client.Close()
	}()

	store := m.getStore(storeId)
	if store == nil {
		m.log.Errorf("supplyFullSync got unknown store %d", storeId)
		return
	}
	if !store.IsRunning() {
		_ = client.WriteLine("-ERR store is not running", time.Second)
		return
	}

	bkInfo, err := store.Backup()
	if err != nil {
		_ = client.WriteLine(fmt.Sprintf("-ERR backup failed:%v", err), time.Second)
		return
	}
	defer func() {
		if err := store.ReleaseBackup(); err != nil {
			m.log.Errorf("supplyFullSync end clean store:%d error:%v", storeId, err)
		}
	}()
	fullSyncCounter.Inc()

	manifest, err := json.Marshal(bkInfo.Files)
	if err != nil {
		m.log.Errorf("store:%d marshal manifest failed:%v", storeId, err)
		return
	}
	if err := client.WriteLine(string(manifest), time.Second); err != nil {
		m.log.Errorf("store:%d writeLine failed:%v", storeId, err)
		return
	}

	names := make([]string, 0, len(bkInfo.Files))
	for name := range bkInfo.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	readBuf := make([]byte, fullFileChunk)
	for _, name := range names {
		if err := client.WriteLine(name, time.Second); err != nil {
			m.log.Errorf("write fname:%s to client failed:%v", name, err)
			return
		}
		if !m.sendBackupFile(client, filepath.Join(store.BackupDir(), name), bkInfo.Files[name], readBuf) {
			return
		}
	}

	reply, err := client.ReadLine(time.Second)
	if err != nil {
		m.log.Errorf("fullsync done read %s reply failed:%v", client.RemoteRepr(), err)
	} else {
		m.log.Infof("fullsync done read %s reply:%s", client.RemoteRepr(), reply)
	}
}

func (m *ReplManager) sendBackupFile(client *netw.BlockingTcpClient, fname string, size uint64, readBuf []byte) bool {
	file, err := os.Open(fname)
	if err != nil {
		m.log.Errorf("open file:%s for read failed:%v", fname, err)
		return false
	}
	defer file.Close()

	remain := size
	for remain > 0 {
		batchSize := uint64(len(readBuf))
		if remain < batchSize {
			batchSize = remain
		}
		buf := readBuf[:batchSize]
		if _, err := io.ReadFull(file, buf); err != nil {
			m.log.Errorf("read file:%s failed with err:%v", fname, err)
			return false
		}
		if err := client.WriteData(buf, time.Second); err != nil {
			m.log.Errorf("write bulk to client failed:%v", err)
			return false
		}
		remain -= batchSize
	}
	return true
}
