// Package snowflake generates time-ordered 63-bit identifiers.
//
// Layout: 41 bits of milliseconds since the epoch, 10 bits of node id and
// 12 bits of per-millisecond sequence. Ids from one node are strictly
// increasing, so ordering by id is ordering by creation.
package snowflake

import (
	"errors"
	"sync"
	"time"
)

const (
	// 2025-01-01 00:00:00 UTC
	epoch int64 = 1735689600000

	nodeBits     = 10
	sequenceBits = 12

	maxNode     = (1 << nodeBits) - 1
	maxSequence = (1 << sequenceBits) - 1

	timeShift = nodeBits + sequenceBits
	nodeShift = sequenceBits

	// backwards jumps up to this many ms are waited out instead of failing
	maxDrift int64 = 5
)

var (
	ErrInvalidNode    = errors.New("snowflake: node must be between 0 and 1023")
	ErrClockMovedBack = errors.New("snowflake: clock moved backwards")
)

// Node hands out ids for one node id.
type Node struct {
	mu   sync.Mutex
	node int64
	seq  int64
	last int64
	now  func() int64
}

// NewNode creates a generator for the given node id.
func NewNode(node int64) (*Node, error) {
	return newNode(node, func() int64 { return time.Now().UnixMilli() })
}

func newNode(node int64, clock func() int64) (*Node, error) {
	if node < 0 || node > maxNode {
		return nil, ErrInvalidNode
	}
	return &Node{node: node, now: clock}, nil
}

// Next returns the next id.
func (n *Node) Next() (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	if now < n.last {
		if n.last-now > maxDrift {
			return 0, ErrClockMovedBack
		}
		now = n.waitUntil(n.last)
	}

	if now == n.last {
		n.seq = (n.seq + 1) & maxSequence
		if n.seq == 0 {
			now = n.waitUntil(n.last + 1)
		}
	} else {
		n.seq = 0
	}
	n.last = now

	return ((now - epoch) << timeShift) | (n.node << nodeShift) | n.seq, nil
}

func (n *Node) waitUntil(ms int64) int64 {
	now := n.now()
	for now < ms {
		time.Sleep(100 * time.Microsecond)
		now = n.now()
	}
	return now
}

// Time extracts the creation time of an id.
func Time(id int64) time.Time {
	return time.UnixMilli((id >> timeShift) + epoch)
}

// NodeOf extracts the node id of an id.
func NodeOf(id int64) int64 {
	return (id >> nodeShift) & maxNode
}
