package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	// the callables this worker can serve
	_ "github.com/PwzXxm/rpc-lite/ops"
	"github.com/PwzXxm/rpc-lite/rendezvous"
	"github.com/PwzXxm/rpc-lite/rpc"
	"github.com/PwzXxm/rpc-lite/rpccore"
	"github.com/PwzXxm/rpc-lite/utils"
	"github.com/common-nighthawk/go-figure"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type workerConfig struct {
	Rank          int
	WorldSize     int
	ListenAddr    string
	AdvertiseAddr string
	TimeoutSec    int
	PoolSize      int
	LogPath       string

	// exactly one of the two store backends must be set
	StoreFilePath string
	RedisAddr     string
	RedisPrefix   string
}

func StartWorkerFromFile(configFilepath string) error {
	var config workerConfig
	err := utils.ReadFromJSON(&config, configFilepath)
	if err != nil {
		return err
	}
	if config.TimeoutSec <= 0 {
		config.TimeoutSec = 5
	}

	fl := flock.New(configFilepath)
	if locked, _ := fl.TryLock(); !locked {
		return errors.New("Unable to lock the config file," +
			" make sure there isn't another instance running.")
	}
	defer func() {
		_ = fl.Unlock()
	}()

	store, err := newStoreFromConfig(config)
	if err != nil {
		return err
	}

	// new tcp network
	n := rpccore.NewTCPNetwork(time.Duration(config.TimeoutSec) * time.Second)
	name := rpc.WorkerName(config.Rank)
	node, err := n.NewLocalNode(name, config.AdvertiseAddr, config.ListenAddr)
	if err != nil {
		return err
	}

	// set logger
	logger, logFile, err := newLoggerFromConfig(config)
	if err != nil {
		return err
	}
	if logFile != nil {
		defer func() {
			_ = logFile.Close()
		}()
	}
	loggerEntry := logger.WithFields(logrus.Fields{"worker": name})

	figure.NewFigure("rpc-lite", "", true).Print()

	agent := rpc.NewAgent(node, n, loggerEntry, config.PoolSize)
	if err := agent.Init(config.Rank, config.WorldSize, store, config.AdvertiseAddr); err != nil {
		return err
	}

	// wait for stop signal
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	// start shutdown process; Join blocks until the whole group leaves
	fmt.Println("Joining the group and shutting down ...")
	if err := agent.Join(); err != nil {
		return err
	}
	n.Shutdown()
	return nil
}

func newLoggerFromConfig(config workerConfig) (*logrus.Logger, *os.File, error) {
	logger := logrus.New()
	logger.Out = os.Stdout
	if config.LogPath == "" {
		return logger, nil, nil
	}
	f, err := os.OpenFile(config.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "Unable to open the log file %v", config.LogPath)
	}
	logger.Out = f
	return logger, f, nil
}

func newStoreFromConfig(config workerConfig) (rendezvous.Store, error) {
	// group formation can wait a while for slow-starting peers
	waitTimeout := 5 * time.Minute
	switch {
	case config.StoreFilePath != "" && config.RedisAddr != "":
		return nil, errors.New("Config sets both a file store and a redis store.")
	case config.StoreFilePath != "":
		dir := filepath.Dir(config.StoreFilePath)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return nil, err
			}
		}
		return rendezvous.NewFileStore(config.StoreFilePath, waitTimeout), nil
	case config.RedisAddr != "":
		return rendezvous.NewRedisStore(config.RedisAddr, config.RedisPrefix, waitTimeout)
	default:
		return nil, errors.New("Config sets no rendezvous store backend.")
	}
}
