// Package sh provides the interactive shell of the board simulator.
package sh

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/uartecho/pkg/l0/console"
	"github.com/robotalks/uartecho/pkg/sim/machine"
)

// OutputLimit is the number of transmitted bytes kept per port.
const OutputLimit = 4096

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	// Port is the UART addressed by type and raw.
	Port int

	Shell   *ishell.Shell
	Machine *machine.Machine

	outLock sync.Mutex
	outputs [][]byte
}

// PortInfo describes a simulated UART.
type PortInfo struct {
	Port       int    `json:"port"`
	Name       string `json:"name"`
	RxBuffered int    `json:"rx_buffered"`
	TxBuffered int    `json:"tx_buffered"`
	DataReads  int    `json:"data_reads"`
	DataWrites int    `json:"data_writes"`
	Overruns   int    `json:"overruns"`
	TxDropped  int    `json:"tx_dropped"`
}

const (
	shellKey       = "$shell"
	requestTimeout = time.Second
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&TypeCmd,
		&RawCmd,
		&StateCmd,
		&OutputCmd,
		&PortsCmd,
		&PortCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell on the machine.
func New(m *machine.Machine) (*Shell, error) {
	s, err := newShell(m)
	if err != nil {
		return nil, err
	}
	s.Shell = ishell.New()
	s.Shell.Set(shellKey, s)
	s.updatePrompt()
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s, nil
}

func newShell(m *machine.Machine) (*Shell, error) {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Machine:     m,
		outputs:     make([][]byte, len(m.Devices)),
	}
	for n := range m.Devices {
		if err := m.Subscribe(n, machine.HandleOutputFunc(s.capture)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

func (s *Shell) updatePrompt() {
	if s.Shell != nil {
		s.Shell.SetPrompt(fmt.Sprintf("uart%d > ", s.Port))
	}
}

func (s *Shell) capture(port int, data []byte) {
	s.outLock.Lock()
	defer s.outLock.Unlock()
	out := append(s.outputs[port], data...)
	if len(out) > OutputLimit {
		out = out[len(out)-OutputLimit:]
	}
	s.outputs[port] = out
}

// SelectPort changes the port addressed by input commands.
func (s *Shell) SelectPort(port int) error {
	if port < 0 || port >= len(s.Machine.Devices) {
		return &machine.NoSuchPortError{Port: port}
	}
	s.Port = port
	s.updatePrompt()
	return nil
}

// Input delivers bytes to the selected port.
func (s *Shell) Input(data []byte) error {
	n, err := s.Machine.Input(s.Port, data)
	if err != nil {
		return err
	}
	if n < len(data) {
		return fmt.Errorf("uart%d: %d of %d bytes lost in receive FIFO", s.Port, len(data)-n, len(data))
	}
	return nil
}

// TakeOutput returns and clears the captured output of a port.
func (s *Shell) TakeOutput(port int) ([]byte, error) {
	if port < 0 || port >= len(s.outputs) {
		return nil, &machine.NoSuchPortError{Port: port}
	}
	s.outLock.Lock()
	defer s.outLock.Unlock()
	out := s.outputs[port]
	s.outputs[port] = nil
	return out, nil
}

// State captures the console session.
func (s *Shell) State() (machine.State, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return s.Machine.Snapshot(ctx)
}

// Ports lists the simulated UARTs.
func (s *Shell) Ports() []PortInfo {
	infos := make([]PortInfo, len(s.Machine.Devices))
	for n, dev := range s.Machine.Devices {
		stats := dev.Stats()
		rx, tx := dev.Buffered()
		infos[n] = PortInfo{
			Port:       n,
			Name:       dev.Name,
			RxBuffered: rx,
			TxBuffered: tx,
			DataReads:  stats.DataReads,
			DataWrites: stats.DataWrites,
			Overruns:   stats.Overruns,
			TxDropped:  stats.TxDropped,
		}
	}
	return infos
}

// FormatState prints State into friendly string for display.
func FormatState(state machine.State) string {
	var flags []string
	if state.Processing {
		flags = append(flags, "processing")
	}
	if state.Full {
		flags = append(flags, "full")
	}
	str := fmt.Sprintf("head=%d/%d tail=%d completed=%d dropped=%d line=%q",
		state.Head, console.LineCapacity, state.Tail, state.Completed, state.Dropped, state.Line)
	if len(flags) > 0 {
		str += " [" + strings.Join(flags, ",") + "]"
	}
	return str
}

func (s *Shell) show(c *ishell.Context, v interface{}, text string) {
	if !s.OutputJSON {
		c.Println(text)
		return
	}
	out, err := json.Marshal(v)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(string(out))
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// TypeCmd types a line into the selected port.
	TypeCmd = ishell.Cmd{
		Name:    "type",
		Aliases: []string{"t"},
		Help:    "TEXT...",
		Func: func(c *ishell.Context) {
			line := strings.Join(c.Args, " ") + string(console.Terminator)
			if err := ShellFrom(c).Input([]byte(line)); err != nil {
				c.Err(err)
			}
		},
	}

	// RawCmd sends hex encoded bytes to the selected port.
	RawCmd = ishell.Cmd{
		Name:    "raw",
		Aliases: []string{"r"},
		Help:    "HEX",
		Func: func(c *ishell.Context) {
			data, err := hex.DecodeString(strings.Join(c.Args, ""))
			if err != nil {
				c.Err(err)
				return
			}
			if err := ShellFrom(c).Input(data); err != nil {
				c.Err(err)
			}
		},
	}

	// StateCmd prints the console session.
	StateCmd = ishell.Cmd{
		Name:    "state",
		Aliases: []string{"s"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			state, err := s.State()
			if err != nil {
				c.Err(err)
				return
			}
			s.show(c, &state, FormatState(state))
		},
	}

	// OutputCmd prints and clears the bytes transmitted by a port.
	OutputCmd = ishell.Cmd{
		Name:    "output",
		Aliases: []string{"o"},
		Help:    "[PORT] [WAIT]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			port := s.Port
			if len(c.Args) > 0 {
				n, err := strconv.Atoi(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				port = n
			}
			if len(c.Args) > 1 {
				wait, err := time.ParseDuration(c.Args[1])
				if err != nil {
					c.Err(err)
					return
				}
				time.Sleep(wait)
			}
			out, err := s.TakeOutput(port)
			if err != nil {
				c.Err(err)
				return
			}
			s.show(c, out, strconv.Quote(string(out)))
		},
	}

	// PortsCmd lists the simulated UARTs.
	PortsCmd = ishell.Cmd{
		Name:    "ports",
		Aliases: []string{"p"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			infos := s.Ports()
			if s.OutputJSON {
				s.show(c, infos, "")
				return
			}
			for _, info := range infos {
				c.Printf("%d %s: rx=%d tx=%d reads=%d writes=%d overruns=%d tx-dropped=%d\n",
					info.Port, info.Name, info.RxBuffered, info.TxBuffered,
					info.DataReads, info.DataWrites, info.Overruns, info.TxDropped)
			}
		},
	}

	// PortCmd selects the port addressed by type and raw.
	PortCmd = ishell.Cmd{
		Name: "port",
		Help: "PORT",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) != 1 {
				c.Println(s.Port)
				return
			}
			n, err := strconv.Atoi(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			if err := s.SelectPort(n); err != nil {
				c.Err(err)
			}
		},
	}
)
