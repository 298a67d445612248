package sim

import (
	"sync"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/telemetry"
)

const (
	commandBufferOccupancyMetricKey = "sim_command_buffer_occupancy"
	commandBufferOverflowMetricKey  = "sim_command_buffer_overflow_total"
	commandBufferEvictedMetricKey   = "sim_command_buffer_evicted_total"
)

// PushOutcome reports what happened to a staged command.
type PushOutcome int

const (
	PushStored PushOutcome = iota
	// PushDisplaced means the command was stored by evicting the oldest
	// gameplay command.
	PushDisplaced
	PushRejected
)

// CommandBuffer is the fixed-capacity FIFO between connection goroutines and
// the tick. Join and Leave must never be lost: when the ring is full they
// displace the oldest cast or class selection instead of being rejected.
type CommandBuffer struct {
	mu      sync.Mutex
	ring    []Command
	start   int
	size    int
	metrics telemetry.Metrics
}

func NewCommandBuffer(capacity int, metrics telemetry.Metrics) *CommandBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &CommandBuffer{ring: make([]Command, capacity), metrics: telemetry.OrDiscard(metrics)}
}

func (b *CommandBuffer) Capacity() int {
	if b == nil {
		return 0
	}
	return len(b.ring)
}

// Push stages cmd. On PushDisplaced the evicted command is returned so the
// caller can report it.
func (b *CommandBuffer) Push(cmd Command) (PushOutcome, Command) {
	if b == nil {
		return PushRejected, Command{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size < len(b.ring) {
		b.ring[(b.start+b.size)%len(b.ring)] = cmd
		b.size++
		b.storeOccupancyLocked()
		return PushStored, Command{}
	}

	if !cmd.Type.Lifecycle() {
		b.add(commandBufferOverflowMetricKey)
		return PushRejected, Command{}
	}
	victim := -1
	for i := 0; i < b.size; i++ {
		if !b.at(i).Type.Lifecycle() {
			victim = i
			break
		}
	}
	if victim < 0 {
		b.add(commandBufferOverflowMetricKey)
		return PushRejected, Command{}
	}
	evicted := b.at(victim)
	// Shift the tail left over the victim and append cmd at the end.
	for i := victim; i < b.size-1; i++ {
		b.ring[(b.start+i)%len(b.ring)] = b.at(i + 1)
	}
	b.ring[(b.start+b.size-1)%len(b.ring)] = cmd
	b.add(commandBufferEvictedMetricKey)
	return PushDisplaced, evicted
}

// Drain returns the staged commands oldest first and empties the ring.
func (b *CommandBuffer) Drain() []Command {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size == 0 {
		return nil
	}
	out := make([]Command, b.size)
	for i := range out {
		out[i] = b.at(i)
		b.ring[(b.start+i)%len(b.ring)] = Command{}
	}
	b.start = (b.start + b.size) % len(b.ring)
	b.size = 0
	b.storeOccupancyLocked()
	return out
}

func (b *CommandBuffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func (b *CommandBuffer) at(i int) Command {
	return b.ring[(b.start+i)%len(b.ring)]
}

func (b *CommandBuffer) add(key string) {
	b.metrics.Add(key, 1)
}

func (b *CommandBuffer) storeOccupancyLocked() {
	b.metrics.Store(commandBufferOccupancyMetricKey, uint64(b.size))
}
