package server

import (
	"context"
	"errors"

	"github.com/gujiacun/tendis/internal/netw"
	"github.com/gujiacun/tendis/pkg/common"
)

const RPCServName = "TendisServ"

func (s *Server) StartRPCServer() error {
	rpcServ, err := netw.MakeAdminServer(RPCServName, s.conf.RPCAddr)
	if err != nil {
		return err
	}
	if err := rpcServ.Register(s); err != nil {
		return err
	}
	s.rpcServ = rpcServ
	go func() {
		if err := rpcServ.Start(); err != nil {
			s.log.Errorf("%v", err)
		}
	}()
	return nil
}

// RPCAddr is the admin listener's final address, useful when the config
// asked for port 0.
func (s *Server) RPCAddr() string {
	return s.rpcServ.Addr()
}

func (s *Server) ReplStatus(ctx context.Context, args *common.ReplStatusArgs, reply *common.ReplStatusReply) error {
	if s.Killed() {
		return errors.New(string(common.ErrNodeClosed))
	}
	for _, storeId := range args.StoreIds {
		if storeId >= uint32(len(s.stores)) {
			reply.Err = common.ErrInvalidStoreId
			return nil
		}
	}
	reply.Err = common.OK
	reply.Stores = s.repl.StatusSnapshot(args.StoreIds)
	return nil
}

func (s *Server) ShowStores(ctx context.Context, args *common.ShowStoresArgs, reply *common.ShowStoresReply) error {
	if s.Killed() {
		return errors.New(string(common.ErrNodeClosed))
	}
	reply.Err = common.OK
	for _, store := range s.stores {
		cnt, err := store.KvCount()
		if err != nil {
			s.log.Errorf("count store %d: %v", store.Id(), err)
		}
		reply.Stores = append(reply.Stores, common.ShowStoreRes{
			StoreId:         store.Id(),
			Running:         store.IsRunning(),
			KvCount:         cnt,
			FirstBinlogId:   store.FirstBinlogId(),
			HighestBinlogId: store.HighestBinlogId(),
		})
	}
	return nil
}
