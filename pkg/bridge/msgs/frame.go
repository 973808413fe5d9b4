// Package msgs defines the messages exchanged by the UART bridges.
package msgs

import (
	"github.com/golang/protobuf/proto"
)

// UARTFrame carries bytes received or transmitted by a board UART.
type UARTFrame struct {
	Board string `protobuf:"bytes,1,opt,name=board,proto3" json:"board,omitempty"`
	Port  uint32 `protobuf:"varint,2,opt,name=port,proto3" json:"port,omitempty"`
	// Seq increases by one per frame from the same sender and port.
	Seq  uint32 `protobuf:"varint,3,opt,name=seq,proto3" json:"seq,omitempty"`
	Data []byte `protobuf:"bytes,4,opt,name=data,proto3" json:"data,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *UARTFrame) ProtoMessage() {}

// Reset implements proto.Message.
func (m *UARTFrame) Reset() { *m = UARTFrame{} }

// String implements proto.Message.
func (m *UARTFrame) String() string { return proto.CompactTextString(m) }

// Encode serializes the frame.
func (m *UARTFrame) Encode() ([]byte, error) {
	return proto.Marshal(m)
}

// DecodeUARTFrame parses a serialized frame.
func DecodeUARTFrame(payload []byte) (*UARTFrame, error) {
	var m UARTFrame
	if err := proto.Unmarshal(payload, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
