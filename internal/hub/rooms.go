package hub

import "sort"

// RoomName 返回看板对应的房间名
func RoomName(boardID string) string { return "board:" + boardID }

// RoomRegistry 记录每个看板房间内的连接。不是并发安全的，由 Hub 持锁访问。
type RoomRegistry struct {
	rooms map[string]map[*Client]bool
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[string]map[*Client]bool)}
}

// Ensure 确保房间存在
func (r *RoomRegistry) Ensure(boardID string) {
	if _, ok := r.rooms[boardID]; !ok {
		r.rooms[boardID] = make(map[*Client]bool)
	}
}

// Join 把连接加入房间，返回是否为新加入
func (r *RoomRegistry) Join(boardID string, c *Client) bool {
	r.Ensure(boardID)
	if r.rooms[boardID][c] {
		return false
	}
	r.rooms[boardID][c] = true
	return true
}

// Leave 把连接移出房间，返回连接原本是否在房间内。空房间留给 Prune 清理。
func (r *RoomRegistry) Leave(boardID string, c *Client) bool {
	members, ok := r.rooms[boardID]
	if !ok || !members[c] {
		return false
	}
	delete(members, c)
	return true
}

func (r *RoomRegistry) Has(boardID string, c *Client) bool {
	return r.rooms[boardID][c]
}

// IsEmpty 房间不存在或没有连接时返回 true
func (r *RoomRegistry) IsEmpty(boardID string) bool {
	return len(r.rooms[boardID]) == 0
}

// Prune 删除所有空房间，返回被删除的看板 ID
func (r *RoomRegistry) Prune() []string {
	var pruned []string
	for boardID, members := range r.rooms {
		if len(members) == 0 {
			delete(r.rooms, boardID)
			pruned = append(pruned, boardID)
		}
	}
	sort.Strings(pruned)
	return pruned
}

// Members 返回房间内的连接，except 会被排除
func (r *RoomRegistry) Members(boardID string, except *Client) []*Client {
	members := r.rooms[boardID]
	out := make([]*Client, 0, len(members))
	for c := range members {
		if c != except {
			out = append(out, c)
		}
	}
	return out
}

// RoomsOf 返回连接所在的全部看板
func (r *RoomRegistry) RoomsOf(c *Client) []string {
	var boards []string
	for boardID, members := range r.rooms {
		if members[c] {
			boards = append(boards, boardID)
		}
	}
	sort.Strings(boards)
	return boards
}

// BoardIDs 返回所有存在的房间
func (r *RoomRegistry) BoardIDs() []string {
	ids := make([]string, 0, len(r.rooms))
	for boardID := range r.rooms {
		ids = append(ids, boardID)
	}
	sort.Strings(ids)
	return ids
}

func (r *RoomRegistry) Len() int { return len(r.rooms) }
