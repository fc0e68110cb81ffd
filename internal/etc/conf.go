package etc

import (
	"encoding/json"
	"os"

	log "github.com/sirupsen/logrus"
)

type ServerConf struct {
	Addr        string `json:"addr"`
	RPCAddr     string `json:"rpc_addr"`
	MetricsAddr string `json:"metrics_addr"`
	DBPath      string `json:"db_dir"`
	InstanceNum uint32 `json:"instance_num"`
	LogLevel    string `json:"log_level"`
	LogFile     string `json:"log_file"`

	FullPusherCap int `json:"full_pusher_cap"`
	IncrPusherCap int `json:"incr_pusher_cap"`
}

func ParseServerConf(confPath string) ServerConf {
	confBytes, err := os.ReadFile(confPath)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	conf := ServerConf{}
	if err := json.Unmarshal(confBytes, &conf); err != nil {
		log.Fatalf("failed to parse config file: %v", err)
	}
	return FillDefault(conf)
}

func FillDefault(conf ServerConf) ServerConf {
	if conf.Addr == "" {
		conf.Addr = "0.0.0.0:6379"
	}
	if conf.InstanceNum == 0 {
		conf.InstanceNum = 10
	}
	if conf.LogLevel == "" {
		conf.LogLevel = "info"
	}
	if conf.FullPusherCap == 0 {
		conf.FullPusherCap = 4
	}
	if conf.IncrPusherCap == 0 {
		conf.IncrPusherCap = 64
	}
	return conf
}
