package ws

import (
	"fmt"
	"sync"
)

const (
	SUB_POSITION = "position"
	SUB_DEPOSIT  = "deposit"
)

type appSubscription struct {
	id    string
	event string
}

type subManger struct {
	nextId int
	subs   []appSubscription
	mutex  sync.Mutex
}

func newSubManager() *subManger {
	return &subManger{}
}

func (sm *subManger) addSubscription(event string) string {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sm.nextId++
	s_id := fmt.Sprintf("0x%x", sm.nextId)
	sm.subs = append(sm.subs, appSubscription{
		id:    s_id,
		event: event,
	})

	return s_id
}

func (sm *subManger) removeSubscription(id string) bool {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	for i, sub := range sm.subs {
		if sub.id == id {
			sm.subs = append(sm.subs[:i], sm.subs[i+1:]...)
			return true
		}
	}
	return false
}

func (sm *subManger) getSubsForEvent(event string) []appSubscription {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	var subs []appSubscription
	for _, sub := range sm.subs {
		if sub.event == event {
			subs = append(subs, sub)
		}
	}

	return subs
}
