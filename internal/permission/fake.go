package permission

import "sync"

// Fake is a test double whose answer can be flipped between calls.
type Fake struct {
	mu      sync.Mutex
	granted bool

	// Calls counts IsGranted invocations.
	Calls int
}

// NewFake creates a Fake with the given initial answer.
func NewFake(granted bool) *Fake {
	return &Fake{granted: granted}
}

// IsGranted returns the current scripted answer.
func (f *Fake) IsGranted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	return f.granted
}

// Set changes the answer returned by subsequent calls.
func (f *Fake) Set(granted bool) {
	f.mu.Lock()
	f.granted = granted
	f.mu.Unlock()
}
