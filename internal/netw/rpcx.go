package netw

import (
	"context"
	"fmt"
	"net"

	rpcx_client "github.com/smallnest/rpcx/client"
	"github.com/smallnest/rpcx/log"
	"github.com/smallnest/rpcx/protocol"
	"github.com/smallnest/rpcx/server"
	"github.com/smallnest/rpcx/share"

	"github.com/gujiacun/tendis/internal/netw/codec"
)

func init() {
	log.SetDummyLogger()

	share.Codecs[protocol.SerializeType(5)] = &codec.MsgpCodec{}
}

// AdminServer serves the replication admin api over rpcx with the msgp
// serialize type. The listener is bound at construction, so the final
// address is known before serving starts (the config may ask for port 0).
type AdminServer struct {
	name string
	ln   net.Listener
	serv *server.Server
}

func MakeAdminServer(name, addr string) (*AdminServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &AdminServer{
		name: name,
		ln:   ln,
		serv: server.NewServer(),
	}, nil
}

func (s *AdminServer) Register(service interface{}) error {
	return s.serv.RegisterName(s.name, service, "")
}

func (s *AdminServer) Start() error {
	return s.serv.ServeListener("tcp", s.ln)
}

func (s *AdminServer) Addr() string {
	return s.ln.Addr().String()
}

func (s *AdminServer) Stop() {
	_ = s.serv.Close()
}

// AdminClient is the console's end of the admin api.
type AdminClient struct {
	client rpcx_client.XClient
}

func MakeAdminClient(name, addr string) (*AdminClient, error) {
	d, err := rpcx_client.NewPeer2PeerDiscovery("tcp@"+addr, "")
	if err != nil {
		return nil, err
	}
	option := rpcx_client.DefaultOption
	option.SerializeType = protocol.SerializeType(5)
	return &AdminClient{
		client: rpcx_client.NewXClient(name, rpcx_client.Failfast, rpcx_client.RoundRobin, d, option),
	}, nil
}

func (c *AdminClient) Call(method string, args, reply interface{}) error {
	if err := c.client.Call(context.Background(), method, args, reply); err != nil {
		return fmt.Errorf("admin call %s: %w", method, err)
	}
	return nil
}

func (c *AdminClient) Close() {
	_ = c.client.Close()
}
