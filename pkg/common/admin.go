package common

const (
	ApiReplStatus = "ReplStatus"
	ApiShowStores = "ShowStores"
)

type ReplStatusArgs struct {
	StoreIds []uint32
}

type ReplClientStatus struct {
	ClientId   uint64
	DstStoreId uint32
	BinlogPos  uint64
	Remote     string
	IsRunning  bool
	NextSchedTime int64
}

type StoreReplStatus struct {
	StoreId       uint32
	FirstBinlogId uint64
	HighestBinlogId uint64
	Clients       []ReplClientStatus
}

type ReplStatusReply struct {
	Err    Err
	Stores []StoreReplStatus
}

type ShowStoresArgs struct {
}

type ShowStoreRes struct {
	StoreId       uint32
	Running       bool
	KvCount       uint64
	FirstBinlogId uint64
	HighestBinlogId uint64
}

type ShowStoresReply struct {
	Err    Err
	Stores []ShowStoreRes
}
