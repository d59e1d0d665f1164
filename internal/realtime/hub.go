package realtime

import (
	"sync"
	"sync/atomic"

	"github.com/yungbote/livechat-backend/internal/observability"
	"github.com/yungbote/livechat-backend/internal/platform/apierr"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
)

const shardCount = 32

type RoomState int

const (
	RoomEmpty RoomState = iota
	RoomVisitorOnly
	RoomWithAdmin
)

func (s RoomState) String() string {
	switch s {
	case RoomVisitorOnly:
		return "OCCUPIED_VISITOR_ONLY"
	case RoomWithAdmin:
		return "OCCUPIED_WITH_ADMIN"
	default:
		return "EMPTY"
	}
}

type room struct {
	members map[*Client]struct{}
	admins  int
}

type roomShard struct {
	mu    sync.RWMutex
	rooms map[int64]*room
}

// Hub tracks in-memory room membership and fans events out to member queues.
// Rooms are sharded by conversation id; delivery happens outside shard locks.
type Hub struct {
	log       *logger.Logger
	metrics   *observability.Metrics
	queueSize int

	shards [shardCount]roomShard
	active atomic.Int64

	adminsMu sync.RWMutex
	admins   map[int64]map[*Client]struct{}
}

func NewHub(log *logger.Logger, metrics *observability.Metrics, queueSize int) *Hub {
	h := &Hub{
		log:       log.With("component", "RoomHub"),
		metrics:   metrics,
		queueSize: queueSize,
		admins:    make(map[int64]map[*Client]struct{}),
	}
	for i := range h.shards {
		h.shards[i].rooms = make(map[int64]*room)
	}
	return h
}

func (h *Hub) shard(conversationID int64) *roomShard {
	idx := uint64(conversationID) % shardCount
	return &h.shards[idx]
}

// Register creates a client for a new connection. Admin clients also subscribe
// to their tenant's admin channel.
func (h *Hub) Register(role Role, tenantID int64, userID *int64) *Client {
	c := newClient(role, tenantID, userID, h.queueSize, h.metrics.OutboundDropped)
	if c.IsAdmin() {
		h.adminsMu.Lock()
		set := h.admins[tenantID]
		if set == nil {
			set = make(map[*Client]struct{})
			h.admins[tenantID] = set
		}
		set[c] = struct{}{}
		h.adminsMu.Unlock()
	}
	h.metrics.ConnOpened(string(role))
	h.log.Debug("client registered", "client_id", c.ID, "role", role, "tenant_id", tenantID)
	return c
}

// Join adds c to the room. It reports false when c was already a member.
// A visitor client is bound to the first room it joins, even after leaving it.
func (h *Hub) Join(conversationID int64, c *Client) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, apierr.ValidationFailed("connection closed")
	}
	if _, ok := c.rooms[conversationID]; ok {
		return false, nil
	}
	if c.Role == RoleVisitor {
		if c.bound != 0 && c.bound != conversationID {
			return false, apierr.ValidationFailed("visitor connection already bound to another conversation")
		}
		c.bound = conversationID
	}
	c.rooms[conversationID] = struct{}{}

	sh := h.shard(conversationID)
	sh.mu.Lock()
	r := sh.rooms[conversationID]
	if r == nil {
		r = &room{members: make(map[*Client]struct{})}
		sh.rooms[conversationID] = r
		h.metrics.RoomsActive(int(h.active.Add(1)))
	}
	r.members[c] = struct{}{}
	if c.IsAdmin() {
		r.admins++
	}
	sh.mu.Unlock()
	return true, nil
}

// Leave removes c from the room. The room is dropped once it has no members.
func (h *Hub) Leave(conversationID int64, c *Client) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rooms[conversationID]; !ok {
		return false
	}
	delete(c.rooms, conversationID)
	h.removeMember(conversationID, c)
	return true
}

// caller holds c.mu
func (h *Hub) removeMember(conversationID int64, c *Client) {
	sh := h.shard(conversationID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	r := sh.rooms[conversationID]
	if r == nil {
		return
	}
	if _, ok := r.members[c]; !ok {
		return
	}
	delete(r.members, c)
	if c.IsAdmin() {
		r.admins--
	}
	if len(r.members) == 0 {
		delete(sh.rooms, conversationID)
		h.metrics.RoomsActive(int(h.active.Add(-1)))
	}
}

// Unregister removes c from every room and the admin channel, then closes its
// queue. It returns the rooms c was in.
func (h *Hub) Unregister(c *Client) []int64 {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	rooms := make([]int64, 0, len(c.rooms))
	for id := range c.rooms {
		rooms = append(rooms, id)
		h.removeMember(id, c)
	}
	c.rooms = make(map[int64]struct{})
	c.mu.Unlock()

	if c.IsAdmin() {
		h.adminsMu.Lock()
		if set := h.admins[c.TenantID]; set != nil {
			delete(set, c)
			if len(set) == 0 {
				delete(h.admins, c.TenantID)
			}
		}
		h.adminsMu.Unlock()
	}
	c.close()
	h.metrics.ConnClosed(string(c.Role))
	h.log.Debug("client unregistered", "client_id", c.ID, "rooms", len(rooms))
	return rooms
}

func (h *Hub) HasAdmin(conversationID int64) bool {
	return h.State(conversationID) == RoomWithAdmin
}

func (h *Hub) State(conversationID int64) RoomState {
	sh := h.shard(conversationID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	r := sh.rooms[conversationID]
	switch {
	case r == nil || len(r.members) == 0:
		return RoomEmpty
	case r.admins > 0:
		return RoomWithAdmin
	default:
		return RoomVisitorOnly
	}
}

func (h *Hub) MemberCount(conversationID int64) int {
	sh := h.shard(conversationID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	if r := sh.rooms[conversationID]; r != nil {
		return len(r.members)
	}
	return 0
}

func (h *Hub) ActiveRooms() int {
	return int(h.active.Load())
}

// Publish delivers ev to every member except the given client and returns the
// number of queues it reached. It never blocks on a slow member.
func (h *Hub) Publish(conversationID int64, ev Event, except *Client) int {
	sh := h.shard(conversationID)
	sh.mu.RLock()
	r := sh.rooms[conversationID]
	if r == nil {
		sh.mu.RUnlock()
		return 0
	}
	targets := make([]*Client, 0, len(r.members))
	for c := range r.members {
		if c != except {
			targets = append(targets, c)
		}
	}
	sh.mu.RUnlock()

	return deliver(targets, ev)
}

// PublishTenantAdmins delivers ev on the tenant's admin channel.
func (h *Hub) PublishTenantAdmins(tenantID int64, ev Event) int {
	h.adminsMu.RLock()
	set := h.admins[tenantID]
	targets := make([]*Client, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	h.adminsMu.RUnlock()

	return deliver(targets, ev)
}

func deliver(targets []*Client, ev Event) int {
	n := 0
	for _, c := range targets {
		if c.Enqueue(ev) {
			n++
		}
	}
	return n
}
