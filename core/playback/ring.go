package playback

import (
	"math"
	"sync/atomic"
)

// Ring is a single-producer, single-consumer ring of samples. The producer
// calls Write and Clear, the render callback calls Read. Neither side blocks
// or takes a lock. When the producer laps the consumer, the oldest unread
// samples are lost.
type Ring struct {
	slots []atomic.Uint32
	size  uint64

	// head is owned by the reader, tail and clearTo by the writer.
	head    atomic.Uint64
	tail    atomic.Uint64
	clearTo atomic.Uint64
}

func NewRing(size int) *Ring {
	if size <= 0 {
		size = 1
	}
	return &Ring{slots: make([]atomic.Uint32, size), size: uint64(size)}
}

func (r *Ring) Cap() int { return int(r.size) }

// Write appends samples and returns how many unread samples it evicted.
func (r *Ring) Write(samples []float32) int {
	tail := r.tail.Load()
	for i, s := range samples {
		r.slots[(tail+uint64(i))%r.size].Store(math.Float32bits(s))
	}
	tail += uint64(len(samples))
	r.tail.Store(tail)

	unread := tail - r.readPosition()
	if unread > r.size {
		return int(unread - r.size)
	}
	return 0
}

// Clear discards everything written so far. The reader skips it on its next
// Read.
func (r *Ring) Clear() {
	r.clearTo.Store(r.tail.Load())
}

// Len reports how many samples are waiting to be read.
func (r *Ring) Len() int {
	return int(min(r.tail.Load()-r.readPosition(), r.size))
}

// Read fills out with the next samples and pads the rest with silence. It
// returns how many samples came from the ring.
func (r *Ring) Read(out []float32) int {
	head := r.readPosition()
	tail := r.tail.Load()
	if tail-head > r.size {
		head = tail - r.size
	}

	n := int(min(uint64(len(out)), tail-head))
	for i := range n {
		out[i] = math.Float32frombits(r.slots[(head+uint64(i))%r.size].Load())
	}
	clear(out[n:])

	r.head.Store(head + uint64(n))
	return n
}

func (r *Ring) readPosition() uint64 {
	return max(r.head.Load(), r.clearTo.Load())
}
