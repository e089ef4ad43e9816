package hub

import "sync"

// PresenceEntry 是某个连接在看板上的在线记录。同一用户的多个连接各有一条。
type PresenceEntry struct {
	ConnectionID string
	UserID       string
	Username     string
}

// PresenceUser 是发给客户端的在线用户
type PresenceUser struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// PresenceStore 保存各看板的在线记录。单实例部署用内存实现即可。
type PresenceStore interface {
	Add(boardID string, entry PresenceEntry)
	// Remove 按连接 ID 删除记录，看板没有记录后一并删除该看板
	Remove(boardID, connectionID string) (PresenceEntry, bool)
	List(boardID string) []PresenceEntry
	Boards() []string
	// Drop 删除看板的全部记录
	Drop(boardID string)
}

// MemoryPresenceStore 是 PresenceStore 的内存实现，按加入顺序保存。
type MemoryPresenceStore struct {
	mu      sync.RWMutex
	entries map[string][]PresenceEntry
}

func NewMemoryPresenceStore() *MemoryPresenceStore {
	return &MemoryPresenceStore{entries: make(map[string][]PresenceEntry)}
}

func (s *MemoryPresenceStore) Add(boardID string, entry PresenceEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries[boardID] {
		if e.ConnectionID == entry.ConnectionID {
			return
		}
	}
	s.entries[boardID] = append(s.entries[boardID], entry)
}

func (s *MemoryPresenceStore) Remove(boardID, connectionID string) (PresenceEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.entries[boardID]
	for i, e := range entries {
		if e.ConnectionID != connectionID {
			continue
		}
		entries = append(entries[:i:i], entries[i+1:]...)
		if len(entries) == 0 {
			delete(s.entries, boardID)
		} else {
			s.entries[boardID] = entries
		}
		return e, true
	}
	return PresenceEntry{}, false
}

func (s *MemoryPresenceStore) List(boardID string) []PresenceEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]PresenceEntry(nil), s.entries[boardID]...)
}

func (s *MemoryPresenceStore) Boards() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}

func (s *MemoryPresenceStore) Drop(boardID string) {
	s.mu.Lock()
	delete(s.entries, boardID)
	s.mu.Unlock()
}

func presenceUsers(entries []PresenceEntry) []PresenceUser {
	users := make([]PresenceUser, 0, len(entries))
	for _, e := range entries {
		users = append(users, PresenceUser{UserID: e.UserID, Username: e.Username})
	}
	return users
}
