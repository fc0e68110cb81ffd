package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/liushuochen/gotable"

	"github.com/gujiacun/tendis/internal/netw"
	"github.com/gujiacun/tendis/internal/server"
	"github.com/gujiacun/tendis/pkg/common"
)

func main() {
	var addr string
	flag.StringVar(&addr, "addr", "127.0.0.1:6390", "server admin rpc address")
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cli, err := netw.MakeAdminClient(server.RPCServName, addr)
	if err != nil {
		fmt.Printf("cannot connect to %s: %v\n", addr, err)
		os.Exit(1)
	}
	defer cli.Close()

	switch flag.Arg(0) {
	case "status":
		showReplStatus(cli)
	case "stores":
		showStores(cli)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("usage: tendis-cli [-addr host:port] <status|stores>")
}

func showReplStatus(cli *netw.AdminClient) {
	args := common.ReplStatusArgs{}
	reply := common.ReplStatusReply{}
	if err := cli.Call(common.ApiReplStatus, &args, &reply); err != nil {
		fmt.Printf("query repl status failed: %v\n", err)
		os.Exit(1)
	}
	if reply.Err != common.OK {
		fmt.Printf("query repl status failed: %s\n", reply.Err)
		os.Exit(1)
	}

	table, err := gotable.Create("StoreId", "ClientId", "Remote", "DstStoreId", "BinlogPos", "Running", "NextSched")
	if err != nil {
		panic(err)
	}
	for _, store := range reply.Stores {
		clients := store.Clients
		sort.Slice(clients, func(i, j int) bool { return clients[i].ClientId < clients[j].ClientId })
		for _, c := range clients {
			row := []string{
				strconv.FormatUint(uint64(store.StoreId), 10),
				strconv.FormatUint(c.ClientId, 10),
				c.Remote,
				strconv.FormatUint(uint64(c.DstStoreId), 10),
				strconv.FormatUint(c.BinlogPos, 10),
				strconv.FormatBool(c.IsRunning),
				time.UnixMilli(c.NextSchedTime).Format("15:04:05.000"),
			}
			if err := table.AddRow(row); err != nil {
				panic(err)
			}
		}
	}
	fmt.Print(table.String())
}

func showStores(cli *netw.AdminClient) {
	args := common.ShowStoresArgs{}
	reply := common.ShowStoresReply{}
	if err := cli.Call(common.ApiShowStores, &args, &reply); err != nil {
		fmt.Printf("query stores failed: %v\n", err)
		os.Exit(1)
	}
	if reply.Err != common.OK {
		fmt.Printf("query stores failed: %s\n", reply.Err)
		os.Exit(1)
	}

	table, err := gotable.Create("StoreId", "Running", "Keys", "FirstBinlogId", "HighestBinlogId")
	if err != nil {
		panic(err)
	}
	for _, store := range reply.Stores {
		row := []string{
			strconv.FormatUint(uint64(store.StoreId), 10),
			strconv.FormatBool(store.Running),
			strconv.FormatUint(store.KvCount, 10),
			strconv.FormatUint(store.FirstBinlogId, 10),
			strconv.FormatUint(store.HighestBinlogId, 10),
		}
		if err := table.AddRow(row); err != nil {
			panic(err)
		}
	}
	fmt.Print(table.String())
}
