package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/robotalks/uartecho/pkg/bridge/mqtt"
	"github.com/robotalks/uartecho/pkg/bridge/msgs"
	"github.com/robotalks/uartecho/pkg/l0/console"
)

var (
	mqttURL = "mqtt://localhost:1883/uartecho/"
	board   = "+"
	port    = 0
)

func init() {
	if val := os.Getenv("UARTECHO_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&board, "board", board, "Board ID to monitor, required to send.")
	flag.IntVar(&port, "port", port, "UART to send to.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}

	q.Sub(board+"/+/+", mqtt.Handler(func(topic string, payload []byte) {
		frame, err := msgs.DecodeUARTFrame(payload)
		if err != nil {
			log.Printf("%s: bad frame: %v", topic, err)
			return
		}
		log.Printf("%s: #%d %q", topic, frame.Seq, frame.Data)
	}))

	// Remaining args are sent as one line.
	if args := flag.Args(); len(args) > 0 {
		if strings.ContainsAny(board, "+#") {
			log.Fatalln("-board is required to send")
		}
		line := strings.Join(args, " ") + string(console.Terminator)
		frame := &msgs.UARTFrame{Board: "uartmon", Port: uint32(port), Seq: 1, Data: []byte(line)}
		payload, err := frame.Encode()
		if err != nil {
			log.Fatalln(err)
		}
		if token := q.Pub(mqtt.RxTopic(board, port), payload); token.Wait() && token.Error() != nil {
			log.Fatalln(token.Error())
		}
	}
	<-(chan struct{})(nil)
}
