package main

/*------------------------------------------------------------------
 *
 * Purpose:   	Main program for the "trackgw" telematics gateway:
 *
 *			Huabao (JT/T 808 style) binary protocol server.
 *			TR900 and ManPower text protocol servers.
 *			OwnTracks HTTP endpoint.
 *			CSV position log.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	trackgw "github.com/openfleet/trackgw/src"
)

func main() {
	var configFileName = pflag.StringP("config-file", "c", "trackgw.yml", "Configuration file name.")
	var logLevel = pflag.StringP("log-level", "l", "", "Log level override: debug, info, warn or error.")
	var protocols = pflag.StringSliceP("protocol", "p", nil, "Serve only the named protocols (default: all configured).")
	var showVersion = pflag.BoolP("version", "v", false, "Print version and exit.")
	pflag.Parse()

	if *showVersion {
		fmt.Println(trackgw.VersionString())
		return
	}

	config, err := trackgw.LoadConfig(*configFileName)
	if err != nil {
		trackgw.Logger.Fatal("configuration", "error", err)
	}

	if *logLevel != "" {
		trackgw.SetLogLevel(*logLevel)
	} else if config.LogLevel != "" {
		trackgw.SetLogLevel(config.LogLevel)
	}

	trackgw.Logger.Info(trackgw.VersionString())

	if len(*protocols) > 0 {
		enabled := make(map[string]trackgw.ProtocolConfig, len(*protocols))
		for _, name := range *protocols {
			pc, ok := config.Protocols[name]
			if !ok {
				trackgw.Logger.Fatal("protocol not in configuration", "protocol", name)
			}
			enabled[name] = pc
		}
		config.Protocols = enabled
	}

	var directory trackgw.DeviceDirectory
	if config.Devices != "" {
		fileDirectory, err := trackgw.LoadDeviceDirectory(config.Devices)
		if err != nil {
			trackgw.Logger.Fatal("device roster", "error", err)
		}
		trackgw.Logger.Info("device roster loaded", "path", config.Devices, "devices", fileDirectory.Size())
		directory = fileDirectory
	}

	var consumers []trackgw.PositionConsumer
	positionLog, err := trackgw.NewPositionLog(config.PositionLog)
	if err != nil {
		trackgw.Logger.Fatal("position log", "error", err)
	}
	if positionLog != nil {
		defer positionLog.Close()
		consumers = append(consumers, positionLog)
	}

	pipeline := trackgw.NewPipeline(consumers...)
	defer pipeline.Close()

	gateway := trackgw.NewGateway(config, directory, pipeline)
	if err := gateway.Start(); err != nil {
		trackgw.Logger.Fatal("startup", "error", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	trackgw.Logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gateway.Stop(ctx); err != nil {
		trackgw.Logger.Warn("shutdown incomplete", "error", err)
	}
}
