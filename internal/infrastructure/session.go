package infrastructure

import (
	"fmt"
	"sync"

	"ukwikibot/pkg/log"
)

// chatSession holds the pending work of one chat.
type chatSession struct {
	queue []func()
}

// SessionManager runs the work submitted for a chat one item at a time,
// in submission order, while different chats proceed concurrently.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*chatSession
	wg       sync.WaitGroup
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*chatSession),
	}
}

// Submit queues fn for chatID and returns immediately.
func (sm *SessionManager) Submit(chatID string, fn func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if session, busy := sm.sessions[chatID]; busy {
		session.queue = append(session.queue, fn)
		return
	}

	sm.sessions[chatID] = &chatSession{}
	sm.wg.Add(1)
	go sm.drain(chatID, fn)
}

func (sm *SessionManager) drain(chatID string, fn func()) {
	defer sm.wg.Done()
	for fn != nil {
		runSafely(chatID, fn)

		sm.mu.Lock()
		session := sm.sessions[chatID]
		if len(session.queue) == 0 {
			delete(sm.sessions, chatID)
			fn = nil
		} else {
			fn = session.queue[0]
			session.queue = session.queue[1:]
		}
		sm.mu.Unlock()
	}
}

// ActiveChats returns the number of chats with queued or running work.
func (sm *SessionManager) ActiveChats() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

// Wait blocks until all submitted work has finished.
func (sm *SessionManager) Wait() {
	sm.wg.Wait()
}

func runSafely(chatID string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(log.Fields{
				"chat_id": chatID,
				"panic":   fmt.Sprint(r),
			}, "[SessionManager.drain] recovered from panic")
		}
	}()
	fn()
}
