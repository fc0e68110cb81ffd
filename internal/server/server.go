package server

import (
	"bufio"
	"bytes"
	"fmt"
	"hash/crc32"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/gujiacun/tendis/internal/etc"
	"github.com/gujiacun/tendis/internal/netw"
	"github.com/gujiacun/tendis/internal/replication"
	"github.com/gujiacun/tendis/internal/storage"
	"github.com/gujiacun/tendis/pkg/common"
)

const writeReplyTimeout = time.Second

// Server owns the store instances and the replication manager, accepts
// client connections and dispatches their commands. FULLSYNC and INCRSYNC
// hand the connection over to the replication subsystem and stop the
// dispatch loop for that connection.
type Server struct {
	conf etc.ServerConf
	log  *logrus.Logger

	listener net.Listener
	rpcServ  *netw.AdminServer

	stores []*storage.Store
	repl   *replication.ReplManager

	KilledC chan int
	dead    int32
}

func StartServer(conf etc.ServerConf) (*Server, error) {
	var logger *logrus.Logger
	var err error
	if conf.LogFile != "" {
		logger, err = common.InitFileLogger(conf.LogLevel, "tendis-server", conf.LogFile)
	} else {
		logger, err = common.InitLogger(conf.LogLevel, "tendis-server")
	}
	if err != nil {
		return nil, err
	}

	stores := make([]*storage.Store, conf.InstanceNum)
	for i := range stores {
		store, err := storage.MakeStore(conf.DBPath, uint32(i), logger)
		if err != nil {
			return nil, fmt.Errorf("open store %d: %v", i, err)
		}
		stores[i] = store
	}

	s := &Server{
		conf:    conf,
		log:     logger,
		stores:  stores,
		repl:    replication.MakeReplManager(stores, conf.FullPusherCap, conf.IncrPusherCap, logger),
		KilledC: make(chan int),
	}
	s.repl.Start()

	listener, err := net.Listen("tcp", conf.Addr)
	if err != nil {
		return nil, err
	}
	s.listener = listener
	go s.acceptLoop()

	if conf.MetricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(conf.MetricsAddr, nil); err != nil {
				logger.Errorf("metrics endpoint: %v", err)
			}
		}()
	}

	logger.Infof("tendis-server listening on %s with %d stores", conf.Addr, conf.InstanceNum)
	return s, nil
}

func (s *Server) Repl() *replication.ReplManager {
	return s.repl
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) Killed() bool {
	return atomic.LoadInt32(&s.dead) == 1
}

func (s *Server) Kill() {
	if !atomic.CompareAndSwapInt32(&s.dead, 0, 1) {
		return
	}
	_ = s.listener.Close()
	if s.rpcServ != nil {
		s.rpcServ.Stop()
	}
	s.repl.Stop()
	for _, store := range s.stores {
		if err := store.Close(); err != nil {
			s.log.Errorf("close store %d: %v", store.Id(), err)
		}
	}
	close(s.KilledC)
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.Killed() {
				return
			}
			s.log.Errorf("accept failed: %v", err)
			continue
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	reader := bufio.NewReaderSize(conn, netw.DefaultClientBufSize)
	for {
		args, err := netw.ReadCommand(reader)
		if err != nil {
			if err != io.EOF {
				s.log.Debugf("read command from %s failed: %v", conn.RemoteAddr(), err)
			}
			_ = conn.Close()
			return
		}
		if len(args) == 0 {
			s.reply(conn, "-ERR empty command")
			continue
		}
		switch strings.ToUpper(args[0]) {
		case "PING":
			s.reply(conn, "+PONG")
		case "QUIT":
			s.reply(conn, "+OK")
			_ = conn.Close()
			return
		case "SET":
			s.handleSet(conn, args)
		case "GET":
			s.handleGet(conn, args)
		case "DEL":
			s.handleDel(conn, args)
		case "INFO":
			s.handleInfo(conn)
		case "FULLSYNC":
			if len(args) != 2 {
				s.reply(conn, "-ERR wrong number of arguments for FULLSYNC")
				continue
			}
			client := netw.MakeBlockingTcpClientFromReader(conn, reader)
			s.repl.SupplyFullSync(client, args[1])
			return
		case "INCRSYNC":
			if len(args) != 4 {
				s.reply(conn, "-ERR wrong number of arguments for INCRSYNC")
				continue
			}
			client := netw.MakeBlockingTcpClientFromReader(conn, reader)
			s.repl.RegisterIncrSync(client, args[1], args[2], args[3])
			return
		default:
			s.reply(conn, fmt.Sprintf("-ERR unknown command %s", args[0]))
		}
	}
}

func (s *Server) routeStore(key string) *storage.Store {
	idx := crc32.ChecksumIEEE([]byte(key)) % uint32(len(s.stores))
	return s.stores[idx]
}

func (s *Server) handleSet(conn net.Conn, args []string) {
	if len(args) != 3 {
		s.reply(conn, "-ERR wrong number of arguments for SET")
		return
	}
	if _, err := s.routeStore(args[1]).Set([]byte(args[1]), []byte(args[2])); err != nil {
		s.reply(conn, fmt.Sprintf("-ERR %v", err))
		return
	}
	s.reply(conn, "+OK")
}

func (s *Server) handleGet(conn net.Conn, args []string) {
	if len(args) != 2 {
		s.reply(conn, "-ERR wrong number of arguments for GET")
		return
	}
	val, err := s.routeStore(args[1]).Get([]byte(args[1]))
	if err != nil {
		s.reply(conn, fmt.Sprintf("-ERR %v", err))
		return
	}
	if val == nil {
		s.reply(conn, "$-1")
		return
	}
	buf := new(bytes.Buffer)
	netw.FmtBulk(buf, val)
	s.replyRaw(conn, buf.Bytes())
}

func (s *Server) handleDel(conn net.Conn, args []string) {
	if len(args) != 2 {
		s.reply(conn, "-ERR wrong number of arguments for DEL")
		return
	}
	if _, err := s.routeStore(args[1]).Del([]byte(args[1])); err != nil {
		s.reply(conn, fmt.Sprintf("-ERR %v", err))
		return
	}
	s.reply(conn, ":1")
}

func (s *Server) handleInfo(conn net.Conn) {
	var builder strings.Builder
	builder.WriteString("# Stores\r\n")
	for _, store := range s.stores {
		builder.WriteString(fmt.Sprintf("store%d:running=%v,first_binlog=%d,highest_binlog=%d\r\n",
			store.Id(), store.IsRunning(), store.FirstBinlogId(), store.HighestBinlogId()))
	}
	buf := new(bytes.Buffer)
	netw.FmtBulkString(buf, builder.String())
	s.replyRaw(conn, buf.Bytes())
}

func (s *Server) reply(conn net.Conn, line string) {
	s.replyRaw(conn, []byte(line+"\r\n"))
}

func (s *Server) replyRaw(conn net.Conn, data []byte) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeReplyTimeout))
	if _, err := conn.Write(data); err != nil {
		s.log.Debugf("write reply to %s failed: %v", conn.RemoteAddr(), err)
	}
}
