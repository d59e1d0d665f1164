package realtime

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

type Role string

const (
	RoleVisitor Role = "VISITOR"
	RoleAdmin   Role = "ADMIN"
)

// Client is one persistent connection as seen by the hub. Its outbound queue is
// bounded; when full the oldest pending event is discarded.
type Client struct {
	ID       uuid.UUID
	Role     Role
	TenantID int64
	UserID   *int64

	// mu guards rooms, bound and closed. Lock order: Client.mu before roomShard.mu.
	mu     sync.Mutex
	rooms  map[int64]struct{}
	closed bool
	// bound is the only conversation a visitor may ever join; zero until the first join.
	bound int64

	qmu      sync.Mutex
	outbound chan Event
	done     chan struct{}
	dropped  atomic.Int64
	onDrop   func()
}

func newClient(role Role, tenantID int64, userID *int64, queueSize int, onDrop func()) *Client {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Client{
		ID:       uuid.New(),
		Role:     role,
		TenantID: tenantID,
		UserID:   userID,
		rooms:    make(map[int64]struct{}),
		outbound: make(chan Event, queueSize),
		done:     make(chan struct{}),
		onDrop:   onDrop,
	}
}

func (c *Client) IsAdmin() bool { return c.Role == RoleAdmin }

// Outbound is closed once the client is unregistered.
func (c *Client) Outbound() <-chan Event { return c.outbound }

func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Dropped() int64 { return c.dropped.Load() }

func (c *Client) Rooms() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int64, 0, len(c.rooms))
	for id := range c.rooms {
		out = append(out, id)
	}
	return out
}

func (c *Client) InRoom(conversationID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[conversationID]
	return ok
}

// Enqueue never blocks. It reports false only when the client is closed.
func (c *Client) Enqueue(ev Event) bool {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.outbound <- ev:
		return true
	default:
	}
	select {
	case <-c.outbound:
		c.dropped.Add(1)
		if c.onDrop != nil {
			c.onDrop()
		}
	default:
	}
	select {
	case c.outbound <- ev:
	default:
	}
	return true
}

func (c *Client) close() {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	select {
	case <-c.done:
		return
	default:
	}
	close(c.done)
	close(c.outbound)
}
