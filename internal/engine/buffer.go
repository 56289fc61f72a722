package engine

import "sync"

// Buffer is an in-memory Source. The watch command and tests write to it;
// the loop reads it when a submit is processed.
type Buffer struct {
	mu   sync.RWMutex
	text string
}

// NewBuffer creates a buffer holding text.
func NewBuffer(text string) *Buffer {
	return &Buffer{text: text}
}

// Text returns the current contents.
func (b *Buffer) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text
}

// SetText replaces the contents.
func (b *Buffer) SetText(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = text
}
