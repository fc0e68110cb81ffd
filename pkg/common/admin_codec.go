package common

import (
	"github.com/Allen1211/msgp/msgp"
)

// Msgpack codecs for the admin api types. Written against the byte-level
// append/read api so the rpcx codec can stay reflection-free.

func (a *ReplStatusArgs) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendArrayHeader(b, uint32(len(a.StoreIds)))
	for _, id := range a.StoreIds {
		b = msgp.AppendUint32(b, id)
	}
	return b, nil
}

func (a *ReplStatusArgs) UnmarshalMsg(b []byte) ([]byte, error) {
	sz, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return b, err
	}
	a.StoreIds = make([]uint32, sz)
	for i := uint32(0); i < sz; i++ {
		if a.StoreIds[i], b, err = msgp.ReadUint32Bytes(b); err != nil {
			return b, err
		}
	}
	return b, nil
}

func (c *ReplClientStatus) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendArrayHeader(b, 6)
	b = msgp.AppendUint64(b, c.ClientId)
	b = msgp.AppendUint32(b, c.DstStoreId)
	b = msgp.AppendUint64(b, c.BinlogPos)
	b = msgp.AppendString(b, c.Remote)
	b = msgp.AppendBool(b, c.IsRunning)
	b = msgp.AppendInt64(b, c.NextSchedTime)
	return b, nil
}

func (c *ReplClientStatus) UnmarshalMsg(b []byte) ([]byte, error) {
	sz, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return b, err
	}
	if sz != 6 {
		return b, msgp.ArrayError{Wanted: 6, Got: sz}
	}
	if c.ClientId, b, err = msgp.ReadUint64Bytes(b); err != nil {
		return b, err
	}
	if c.DstStoreId, b, err = msgp.ReadUint32Bytes(b); err != nil {
		return b, err
	}
	if c.BinlogPos, b, err = msgp.ReadUint64Bytes(b); err != nil {
		return b, err
	}
	if c.Remote, b, err = msgp.ReadStringBytes(b); err != nil {
		return b, err
	}
	if c.IsRunning, b, err = msgp.ReadBoolBytes(b); err != nil {
		return b, err
	}
	if c.NextSchedTime, b, err = msgp.ReadInt64Bytes(b); err != nil {
		return b, err
	}
	return b, nil
}

func (s *StoreReplStatus) MarshalMsg(b []byte) ([]byte, error) {
	var err error
	b = msgp.AppendArrayHeader(b, 4)
	b = msgp.AppendUint32(b, s.StoreId)
	b = msgp.AppendUint64(b, s.FirstBinlogId)
	b = msgp.AppendUint64(b, s.HighestBinlogId)
	b = msgp.AppendArrayHeader(b, uint32(len(s.Clients)))
	for i := range s.Clients {
		if b, err = s.Clients[i].MarshalMsg(b); err != nil {
			return b, err
		}
	}
	return b, nil
}

func (s *StoreReplStatus) UnmarshalMsg(b []byte) ([]byte, error) {
	sz, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return b, err
	}
	if sz != 4 {
		return b, msgp.ArrayError{Wanted: 4, Got: sz}
	}
	if s.StoreId, b, err = msgp.ReadUint32Bytes(b); err != nil {
		return b, err
	}
	if s.FirstBinlogId, b, err = msgp.ReadUint64Bytes(b); err != nil {
		return b, err
	}
	if s.HighestBinlogId, b, err = msgp.ReadUint64Bytes(b); err != nil {
		return b, err
	}
	var n uint32
	if n, b, err = msgp.ReadArrayHeaderBytes(b); err != nil {
		return b, err
	}
	s.Clients = make([]ReplClientStatus, n)
	for i := uint32(0); i < n; i++ {
		if b, err = s.Clients[i].UnmarshalMsg(b); err != nil {
			return b, err
		}
	}
	return b, nil
}

func (r *ReplStatusReply) MarshalMsg(b []byte) ([]byte, error) {
	var err error
	b = msgp.AppendArrayHeader(b, 2)
	b = msgp.AppendString(b, string(r.Err))
	b = msgp.AppendArrayHeader(b, uint32(len(r.Stores)))
	for i := range r.Stores {
		if b, err = r.Stores[i].MarshalMsg(b); err != nil {
			return b, err
		}
	}
	return b, nil
}

func (r *ReplStatusReply) UnmarshalMsg(b []byte) ([]byte, error) {
	sz, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return b, err
	}
	if sz != 2 {
		return b, msgp.ArrayError{Wanted: 2, Got: sz}
	}
	var errStr string
	if errStr, b, err = msgp.ReadStringBytes(b); err != nil {
		return b, err
	}
	r.Err = Err(errStr)
	var n uint32
	if n, b, err = msgp.ReadArrayHeaderBytes(b); err != nil {
		return b, err
	}
	r.Stores = make([]StoreReplStatus, n)
	for i := uint32(0); i < n; i++ {
		if b, err = r.Stores[i].UnmarshalMsg(b); err != nil {
			return b, err
		}
	}
	return b, nil
}

func (a *ShowStoresArgs) MarshalMsg(b []byte) ([]byte, error) {
	return msgp.AppendArrayHeader(b, 0), nil
}

func (a *ShowStoresArgs) UnmarshalMsg(b []byte) ([]byte, error) {
	_, b, err := msgp.ReadArrayHeaderBytes(b)
	return b, err
}

func (s *ShowStoreRes) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendArrayHeader(b, 5)
	b = msgp.AppendUint32(b, s.StoreId)
	b = msgp.AppendBool(b, s.Running)
	b = msgp.AppendUint64(b, s.KvCount)
	b = msgp.AppendUint64(b, s.FirstBinlogId)
	b = msgp.AppendUint64(b, s.HighestBinlogId)
	return b, nil
}

func (s *ShowStoreRes) UnmarshalMsg(b []byte) ([]byte, error) {
	sz, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return b, err
	}
	if sz != 5 {
		return b, msgp.ArrayError{Wanted: 5, Got: sz}
	}
	if s.StoreId, b, err = msgp.ReadUint32Bytes(b); err != nil {
		return b, err
	}
	if s.Running, b, err = msgp.ReadBoolBytes(b); err != nil {
		return b, err
	}
	if s.KvCount, b, err = msgp.ReadUint64Bytes(b); err != nil {
		return b, err
	}
	if s.FirstBinlogId, b, err = msgp.ReadUint64Bytes(b); err != nil {
		return b, err
	}
	if s.HighestBinlogId, b, err = msgp.ReadUint64Bytes(b); err != nil {
		return b, err
	}
	return b, nil
}

func (r *ShowStoresReply) MarshalMsg(b []byte) ([]byte, error) {
	var err error
	b = msgp.AppendArrayHeader(b, 2)
	b = msgp.AppendString(b, string(r.Err))
	b = msgp.AppendArrayHeader(b, uint32(len(r.Stores)))
	for i := range r.Stores {
		if b, err = r.Stores[i].MarshalMsg(b); err != nil {
			return b, err
		}
	}
	return b, nil
}

func (r *ShowStoresReply) UnmarshalMsg(b []byte) ([]byte, error) {
	sz, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return b, err
	}
	if sz != 2 {
		return b, msgp.ArrayError{Wanted: 2, Got: sz}
	}
	var errStr string
	if errStr, b, err = msgp.ReadStringBytes(b); err != nil {
		return b, err
	}
	r.Err = Err(errStr)
	var n uint32
	if n, b, err = msgp.ReadArrayHeaderBytes(b); err != nil {
		return b, err
	}
	r.Stores = make([]ShowStoreRes, n)
	for i := uint32(0); i < n; i++ {
		if b, err = r.Stores[i].UnmarshalMsg(b); err != nil {
			return b, err
		}
	}
	return b, nil
}
