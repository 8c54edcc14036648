package testutil

import (
	"bytes"
	"io"
	"sync"

	"doclife/internal/doc"
)

// FaultyMirror wraps a doc.Mirror and injects faults into the next Put or
// Delete.
type FaultyMirror struct {
	doc.Mirror

	mu             sync.Mutex
	corruptNextPut bool
	failNextPut    error
	failNextDelete error
	puts           int
}

// NewFaultyMirror wraps m.
func NewFaultyMirror(m doc.Mirror) *FaultyMirror {
	return &FaultyMirror{Mirror: m}
}

// CorruptNextPut makes the next Put store content with its first byte flipped.
func (m *FaultyMirror) CorruptNextPut() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.corruptNextPut = true
}

// FailNextPut makes the next Put return err.
func (m *FaultyMirror) FailNextPut(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNextPut = err
}

// FailNextDelete makes the next Delete return err.
func (m *FaultyMirror) FailNextDelete(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNextDelete = err
}

// Puts returns the number of successful Put calls.
func (m *FaultyMirror) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

func (m *FaultyMirror) Put(relPath string, r io.Reader) error {
	m.mu.Lock()
	failErr := m.failNextPut
	corrupt := m.corruptNextPut
	m.failNextPut = nil
	m.corruptNextPut = false
	m.mu.Unlock()

	if failErr != nil {
		return failErr
	}
	if corrupt {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			data = []byte{0}
		} else {
			data[0] ^= 0xff
		}
		r = bytes.NewReader(data)
	}
	if err := m.Mirror.Put(relPath, r); err != nil {
		return err
	}
	m.mu.Lock()
	m.puts++
	m.mu.Unlock()
	return nil
}

func (m *FaultyMirror) Delete(relPath string) error {
	m.mu.Lock()
	failErr := m.failNextDelete
	m.failNextDelete = nil
	m.mu.Unlock()
	if failErr != nil {
		return failErr
	}
	return m.Mirror.Delete(relPath)
}

var _ doc.Mirror = (*FaultyMirror)(nil)
