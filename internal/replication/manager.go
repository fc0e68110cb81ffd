package replication

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gujiacun/tendis/internal/netw"
	"github.com/gujiacun/tendis/internal/storage"
	"github.com/gujiacun/tendis/pkg/common"
)

const (
	schedTick     = 100 * time.Millisecond
	retentionTick = 1 * time.Second
)

// MPovStatus is the master's view of one attached slave's push stream.
// Entries are owned exclusively by the pushStatus registry; push jobs
// capture only (storeId, clientId) and re-resolve the entry per run.
type MPovStatus struct {
	isRunning     bool
	dstStoreId    uint32
	binlogPos     uint64
	nextSchedTime time.Time
	client        *netw.BlockingTcpClient
	clientId      uint64
}

// ReplManager drives master-side replication for every store instance:
// full sync supply on fullPusher, registered incr-sync streams pushed in
// lock-step on incrPusher.
type ReplManager struct {
	mu  sync.Mutex
	log *logrus.Logger

	stores []*storage.Store

	pushStatus    []map[uint64]*MPovStatus
	firstBinlogId []uint64
	clientIdGen   uint64

	fullPusher *WorkerPool
	incrPusher *WorkerPool

	stopC   chan struct{}
	stopped int32
}

func MakeReplManager(stores []*storage.Store, fullPusherCap, incrPusherCap int, logger *logrus.Logger) *ReplManager {
	m := &ReplManager{
		log:           logger,
		stores:        stores,
		pushStatus:    make([]map[uint64]*MPovStatus, len(stores)),
		firstBinlogId: make([]uint64, len(stores)),
		fullPusher:    MakeWorkerPool("fullPusher", fullPusherCap),
		incrPusher:    MakeWorkerPool("incrPusher", incrPusherCap),
		stopC:         make(chan struct{}),
	}
	for i := range m.pushStatus {
		m.pushStatus[i] = make(map[uint64]*MPovStatus)
	}
	for i, store := range stores {
		m.firstBinlogId[i] = store.FirstBinlogId()
	}
	return m
}

func (m *ReplManager) Start() {
	go m.schedulerLoop()
	go m.retentionLoop()
}

func (m *ReplManager) Stop() {
	if !atomic.CompareAndSwapInt32(&m.stopped, 0, 1) {
		return
	}
	close(m.stopC)

	m.mu.Lock()
	for storeId := range m.pushStatus {
		for clientId, pov := range m.pushStatus[storeId] {
			_ = pov.client.Close()
			delete(m.pushStatus[storeId], clientId)
		}
	}
	m.mu.Unlock()

	m.fullPusher.Stop()
	m.incrPusher.Stop()
}

func (m *ReplManager) IsFullSupplierFull() bool {
	return m.fullPusher.IsFull()
}

func (m *ReplManager) getStore(storeId uint32) *storage.Store {
	if storeId >= uint32(len(m.stores)) {
		return nil
	}
	return m.stores[storeId]
}

func (m *ReplManager) schedulerLoop() {
	ticker := time.NewTicker(schedTick)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopC:
			return
		case <-ticker.C:
			m.schedulePushes()
		}
	}
}

// schedulePushes submits one push job for every idle stream whose sched
// time elapsed. The isRunning flag keeps at most one job in flight per
// (storeId, clientId).
func (m *ReplManager) schedulePushes() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for storeId := range m.pushStatus {
		for clientId, pov := range m.pushStatus[storeId] {
			if pov.isRunning || now.Before(pov.nextSchedTime) {
				continue
			}
			pov.isRunning = true
			sid, cid := uint32(storeId), clientId
			if !m.incrPusher.Schedule(func() {
				m.masterPushRoutine(sid, cid)
			}) {
				pov.isRunning = false
				m.log.Warnf("incrPusher full, delay push for store %d client %d", storeId, clientId)
				return
			}
		}
	}
}

// retentionLoop mirrors each store's binlog retention floor into
// firstBinlogId so registration checks need not touch the engine.
func (m *ReplManager) retentionLoop() {
	ticker := time.NewTicker(retentionTick)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopC:
			return
		case <-ticker.C:
			m.refreshFirstBinlogIds()
		}
	}
}

func (m *ReplManager) refreshFirstBinlogIds() {
	for i, store := range m.stores {
		first := store.FirstBinlogId()
		m.mu.Lock()
		m.firstBinlogId[i] = first
		m.mu.Unlock()
	}
}

// StatusSnapshot reports the push registry for the admin api.
func (m *ReplManager) StatusSnapshot(storeIds []uint32) []common.StoreReplStatus {
	if len(storeIds) == 0 {
		storeIds = make([]uint32, len(m.stores))
		for i := range m.stores {
			storeIds[i] = uint32(i)
		}
	}
	res := make([]common.StoreReplStatus, 0, len(storeIds))
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, storeId := range storeIds {
		if storeId >= uint32(len(m.stores)) {
			continue
		}
		status := common.StoreReplStatus{
			StoreId:         storeId,
			FirstBinlogId:   m.firstBinlogId[storeId],
			HighestBinlogId: m.stores[storeId].HighestBinlogId(),
		}
		for _, pov := range m.pushStatus[storeId] {
			status.Clients = append(status.Clients, common.ReplClientStatus{
				ClientId:      pov.clientId,
				DstStoreId:    pov.dstStoreId,
				BinlogPos:     pov.binlogPos,
				Remote:        pov.client.RemoteRepr(),
				IsRunning:     pov.isRunning,
				NextSchedTime: pov.nextSchedTime.UnixMilli(),
			})
		}
		res = append(res, status)
	}
	return res
}
