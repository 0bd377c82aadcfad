package main

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/as/log"
)

// ErrReleased is returned when reading a block after Close.
var ErrReleased = errors.New("block released")

// Block is memory backed data
type Block struct {
	sync.Mutex
	Data     []byte
	fin      bool
	released bool
	ready    int64
}

func (b *Block) Init() (err error) {
	b.Lock()
	b.fin = false
	b.released = false
	b.Data = b.Data[:0]
	b.Unlock()
	atomic.AddInt64(&b.ready, +1)
	return nil
}

func (b *Block) Ready() bool {
	return atomic.LoadInt64(&b.ready) != 0
}

// Fin marks the writer as done. Reads past the end return io.EOF
// from here on instead of waiting for more data.
func (b *Block) Fin() {
	b.Lock()
	b.fin = true
	b.Unlock()
}

func (b *Block) Close() error {
	log.Debug.F("closing memory block (%d bytes)", b.Len())
	b.Lock()
	b.Data = nil
	b.released = true
	b.Unlock()
	return nil
}

func (b *Block) Write(p []byte) (n int, err error) {
	b.Lock()
	defer b.Unlock()
	if b.released {
		return 0, ErrReleased
	}
	b.Data = append(b.Data, p...)
	return len(p), nil
}

// ReadAt follows the io.ReaderAt contract once the block is final. Before
// that, a read past the written data returns what is there and a nil error.
func (b *Block) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, errors.New("block: negative offset")
	}
	b.Lock()
	defer b.Unlock()
	if b.released {
		return 0, ErrReleased
	}
	at := int(off)
	if at < len(b.Data) {
		n = copy(p, b.Data[at:])
	}
	if n < len(p) && b.fin {
		err = io.EOF
	}
	return n, err
}

func (b *Block) Len() int {
	b.Lock()
	defer b.Unlock()
	return len(b.Data)
}

// Head returns a copy of up to n leading bytes.
func (b *Block) Head(n int) []byte {
	b.Lock()
	defer b.Unlock()
	if n > len(b.Data) {
		n = len(b.Data)
	}
	return append([]byte(nil), b.Data[:n]...)
}
