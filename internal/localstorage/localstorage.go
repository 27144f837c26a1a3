// Package localstorage tracks per-requester chat state: what the bot is
// waiting for and which linking attempt, if any, the requester owns.
package localstorage

import (
	"sync"
)

const (
	StateIdle = iota
	StateWaitingPhone
	StatePairing
)

type UserInfo struct {
	State     int
	AttemptID string
}

type Storage struct {
	mu   sync.Mutex
	smap map[int64]*UserInfo
}

func New() *Storage {
	return &Storage{smap: make(map[int64]*UserInfo)}
}

func (s *Storage) Set(userID int64, userInfo *UserInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.smap[userID] = userInfo
}

func (s *Storage) Get(userID int64) (*UserInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userInfo, ok := s.smap[userID]
	return userInfo, ok
}

func (s *Storage) SetState(userID int64, state int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if userInfo, ok := s.smap[userID]; ok {
		userInfo.State = state
		return
	}
	s.smap[userID] = &UserInfo{State: state}
}

// SetAttempt records the requester's in-flight attempt token.
func (s *Storage) SetAttempt(userID int64, attemptID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if userInfo, ok := s.smap[userID]; ok {
		userInfo.AttemptID = attemptID
		return
	}
	s.smap[userID] = &UserInfo{AttemptID: attemptID}
}

func (s *Storage) Delete(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.smap, userID)
}
