package robot

import (
	"bytes"
	"sync"

	"go.bug.st/serial"
)

// MockPort implements Port for testing. It captures written bytes and can be
// told to fail writes.
type MockPort struct {
	mu sync.Mutex

	// WriteError is returned by every Write call while set
	WriteError error

	buf    bytes.Buffer
	writes int
	closes int
}

// Write captures p unless WriteError is set.
func (m *MockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteError != nil {
		return 0, m.WriteError
	}
	m.writes++
	return m.buf.Write(p)
}

// Close records the call.
func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

// SetWriteError changes the write failure under the lock.
func (m *MockPort) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteError = err
}

// Written returns everything written so far.
func (m *MockPort) Written() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf.String()
}

// Closes returns how many times Close was called.
func (m *MockPort) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

// Opener returns an Opener that hands out m.
func (m *MockPort) Opener() Opener {
	return func(string, *serial.Mode) (Port, error) { return m, nil }
}
