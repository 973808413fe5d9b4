package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"

	"github.com/robotalks/uartecho/pkg/bridge/mqtt"
	"github.com/robotalks/uartecho/pkg/bridge/stream"
	"github.com/robotalks/uartecho/pkg/bridge/websocket"
	"github.com/robotalks/uartecho/pkg/cli/sh"
	fx "github.com/robotalks/uartecho/pkg/framework"
	"github.com/robotalks/uartecho/pkg/l0/board/versatile"
	"github.com/robotalks/uartecho/pkg/l0/uart"
	"github.com/robotalks/uartecho/pkg/sim/config"
)

func init() {
	config.SetupFlags()
}

func main() {
	flag.Parse()

	conf := config.Default()
	m := conf.MustNewMachine()
	shell, err := sh.New(m)
	if err != nil {
		log.Fatalln(err)
	}
	runner := fx.NewRunner().HandleSignals().Go(m)

	if conf.MQTTBrokerURL != "" {
		bridge, err := mqtt.NewBridgeFromURL(conf.MQTTBrokerURL, conf.BoardID, m, uart.UART0, uart.UART1, uart.UART2)
		if err != nil {
			log.Fatalln(err)
		}
		runner.Go(bridge)
	}
	if conf.SerialDevice != "" {
		port, err := stream.OpenSerial(conf.SerialDevice, conf.SerialBaud)
		if err != nil {
			log.Fatalln(err)
		}
		runner.Go(stream.New(m, versatile.ConsolePort, port))
	}
	if conf.WebsocketAddr != "" {
		handler, err := websocket.NewHandler(m, versatile.ConsolePort)
		if err != nil {
			log.Fatalln(err)
		}
		runner.Go(&websocket.Server{Addr: conf.WebsocketAddr, Handler: handler})
	}

	// Without a shell, the simulator runs until interrupted.
	if args := flag.Args(); len(args) > 0 || shell.Interactive {
		go func() {
			shell.Run(args...)
			runner.Stop()
		}()
	}
	runner.WaitOrFail()
}
