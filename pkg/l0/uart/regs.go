package uart

// PL011 register block of the Versatile Application Baseboard (DUI0225),
// one 4KB window per UART.
const (
	UART0Base uintptr = 0x101F1000
	UART1Base uintptr = 0x101F2000
	UART2Base uintptr = 0x101F3000
)

// Port numbers.
const (
	UART0 = iota
	UART1
	UART2

	// NumPorts is the number of UARTs on the board.
	NumPorts
)

// Register offsets.
const (
	RegDR   uintptr = 0x000 // data
	RegFR   uintptr = 0x018 // flags
	RegIMSC uintptr = 0x038 // interrupt mask set/clear
)

// FR bits.
const (
	FlagRXFE uint8 = 1 << 4 // receive FIFO empty
	FlagTXFF uint8 = 1 << 5 // transmit FIFO full
)

// IMSC bits.
const (
	MaskRXIM uint32 = 1 << 4
	MaskTXIM uint32 = 1 << 5
)

var bases = [NumPorts]uintptr{UART0Base, UART1Base, UART2Base}
