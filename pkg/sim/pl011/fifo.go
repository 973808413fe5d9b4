package pl011

// FIFODepth is the depth of both receive and transmit FIFOs.
const FIFODepth = 16

type fifo struct {
	buf  [FIFODepth]byte
	head int
	size int
}

func (f *fifo) empty() bool { return f.size == 0 }
func (f *fifo) full() bool  { return f.size == len(f.buf) }

func (f *fifo) push(b byte) bool {
	if f.full() {
		return false
	}
	f.buf[(f.head+f.size)%len(f.buf)] = b
	f.size++
	return true
}

func (f *fifo) pop() (byte, bool) {
	if f.empty() {
		return 0, false
	}
	b := f.buf[f.head]
	f.head = (f.head + 1) % len(f.buf)
	f.size--
	return b, true
}
