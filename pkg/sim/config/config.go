// Package config provides common options to run the board simulator.
package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"

	"github.com/robotalks/uartecho/pkg/l0/board/versatile"
	"github.com/robotalks/uartecho/pkg/l0/console"
	"github.com/robotalks/uartecho/pkg/sim/machine"
)

// Config defines the simulator options.
type Config struct {
	// BoardID names the simulated board on the message bus.
	BoardID string
	// Mode is the console mode: "continuous" or "oneshot".
	Mode string
	// Overrun is the console overrun policy: "discard" or "panic".
	Overrun string
	// Guarded masks the console interrupts during each firmware callback.
	Guarded bool

	TickInterval time.Duration
	BytesPerTick int

	// MQTTBrokerURL enables the MQTT bridge,
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string
	// SerialDevice enables the bridge of UART0 to a host serial device.
	SerialDevice string
	SerialBaud   int
	// WebsocketAddr enables the websocket terminal, e.g. :8080
	WebsocketAddr string
}

var defaultConfig = Config{
	Mode:         "continuous",
	Overrun:      "discard",
	TickInterval: machine.DefaultTickInterval,
	BytesPerTick: machine.DefaultBytesPerTick,
	SerialBaud:   115200,
}

func init() {
	if id, err := machineid.ID(); err == nil {
		defaultConfig.BoardID = id
	} else {
		defaultConfig.BoardID = "sim"
	}
	if val := os.Getenv("UARTECHO_BOARD_ID"); val != "" {
		defaultConfig.BoardID = val
	}
	if val := os.Getenv("UARTECHO_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("UARTECHO_SERIAL"); val != "" {
		defaultConfig.SerialDevice = val
	}
	if val := os.Getenv("UARTECHO_SERIAL_BAUD"); val != "" {
		if baud, err := strconv.Atoi(val); err == nil {
			defaultConfig.SerialBaud = baud
		}
	}
	if val := os.Getenv("UARTECHO_WS_ADDR"); val != "" {
		defaultConfig.WebsocketAddr = val
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.BoardID, "board", defaultConfig.BoardID, "Board ID.")
	flag.StringVar(&defaultConfig.Mode, "mode", defaultConfig.Mode, "Console mode: continuous, oneshot.")
	flag.StringVar(&defaultConfig.Overrun, "overrun", defaultConfig.Overrun, "Console overrun policy: discard, panic.")
	flag.BoolVar(&defaultConfig.Guarded, "guarded", defaultConfig.Guarded, "Mask console interrupts during firmware callbacks.")
	flag.DurationVar(&defaultConfig.TickInterval, "tick", defaultConfig.TickInterval, "Line tick interval.")
	flag.IntVar(&defaultConfig.BytesPerTick, "bytes-per-tick", defaultConfig.BytesPerTick, "Bytes transmitted per line tick.")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL.")
	flag.StringVar(&defaultConfig.SerialDevice, "serial", defaultConfig.SerialDevice, "Host serial device bridged to UART0.")
	flag.IntVar(&defaultConfig.SerialBaud, "baud", defaultConfig.SerialBaud, "Baud rate of the host serial device.")
	flag.StringVar(&defaultConfig.WebsocketAddr, "ws", defaultConfig.WebsocketAddr, "Listen address of the websocket terminal.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// BoardConfig translates the console options.
func (c *Config) BoardConfig() (conf versatile.Config, err error) {
	switch c.Mode {
	case "continuous", "":
		conf.Mode = console.ModeContinuous
	case "oneshot":
		conf.Mode = console.ModeOneShot
	default:
		return conf, fmt.Errorf("unknown console mode: %q", c.Mode)
	}
	switch c.Overrun {
	case "discard", "":
		conf.Overrun = console.OverrunDiscard
	case "panic":
		conf.Overrun = console.OverrunPanic
	default:
		return conf, fmt.Errorf("unknown overrun policy: %q", c.Overrun)
	}
	conf.Guarded = c.Guarded
	return conf, nil
}

// NewMachine creates the simulated board.
func (c *Config) NewMachine() (*machine.Machine, error) {
	conf, err := c.BoardConfig()
	if err != nil {
		return nil, err
	}
	m := machine.New(conf)
	m.TickInterval = c.TickInterval
	m.BytesPerTick = c.BytesPerTick
	glog.V(1).Infof("board %s: mode=%s overrun=%s tick=%s bytes/tick=%d",
		c.BoardID, c.Mode, c.Overrun, c.TickInterval, c.BytesPerTick)
	return m, nil
}

// MustNewMachine creates the simulated board and fails on error.
func (c *Config) MustNewMachine() *machine.Machine {
	m, err := c.NewMachine()
	if err != nil {
		log.Fatalln(err)
	}
	return m
}
