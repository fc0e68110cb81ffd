package main

import (
	"flag"

	log "github.com/sirupsen/logrus"

	"github.com/gujiacun/tendis/internal/etc"
	"github.com/gujiacun/tendis/internal/server"
)

func main() {
	conf := makeConfig()

	serv := startServer(conf)

	<-serv.KilledC
}

func makeConfig() etc.ServerConf {
	var confPath string
	flag.StringVar(&confPath, "c", "", "config file path")
	flag.Parse()

	if confPath == "" {
		log.Fatalf("no config file path provided")
	}

	return etc.ParseServerConf(confPath)
}

func startServer(conf etc.ServerConf) *server.Server {
	serv, err := server.StartServer(conf)
	if err != nil {
		log.Fatalf("start server error: %v", err)
	}
	if conf.RPCAddr != "" {
		if err := serv.StartRPCServer(); err != nil {
			log.Fatalf("start admin rpc server error: %v", err)
		}
	}
	return serv
}
