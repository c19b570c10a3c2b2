package echo

import (
	"sync"
	"sync/atomic"
)

// Pong is the reply to Ping
const Pong = "pong"

// NewLocalEcho creates the in-process implementation of IEcho
func NewLocalEcho() *LocalEcho {
	return &LocalEcho{}
}

// LocalEcho implements IEcho and records the notifications it received
type LocalEcho struct {
	calls         atomic.Int64
	notifications atomic.Int64
	mu            sync.Mutex
	lastNotify    string
}

// --------------------------------------------------------------------------
// Interface Methods (docu see echo.IEcho)
// --------------------------------------------------------------------------

func (e *LocalEcho) Echo(msg string) (string, error) {
	e.calls.Add(1)
	return msg, nil
}

func (e *LocalEcho) Ping() (string, error) {
	e.calls.Add(1)
	return Pong, nil
}

func (e *LocalEcho) Notify(msg string) error {
	e.mu.Lock()
	e.lastNotify = msg
	e.mu.Unlock()
	e.notifications.Add(1)
	return nil
}

// --------------------------------------------------------------------------
// Introspection
// --------------------------------------------------------------------------

// Calls returns the number of Echo and Ping calls served
func (e *LocalEcho) Calls() int64 {
	return e.calls.Load()
}

// Notifications returns the number of notifications received and the last message
func (e *LocalEcho) Notifications() (int64, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.notifications.Load(), e.lastNotify
}
