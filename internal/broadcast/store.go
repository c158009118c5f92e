package broadcast

import (
	"context"
	"encoding/json"
)

// SessionBackend is the persistence abstraction for the broadcast session
// blob, keyed by a fixed session key. Implementations can be in-memory or
// remote. Expiry is a field on the session interpreted by the policy layer,
// not by the backend. A missing session is (nil, nil), not an error.
type SessionBackend interface {
	Get(ctx context.Context) (*BroadcastSession, error)
	Put(ctx context.Context, s *BroadcastSession) error
	Delete(ctx context.Context) error
}

// MemoryBackend is an in-memory SessionBackend. It stores the marshaled
// session, so readers get the same decode behavior as a remote backend and
// never alias the writer's block slices.
type MemoryBackend struct {
	blob []byte
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Get implements SessionBackend.Get.
func (m *MemoryBackend) Get(context.Context) (*BroadcastSession, error) {
	if m.blob == nil {
		return nil, nil
	}
	var s BroadcastSession
	if err := json.Unmarshal(m.blob, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Put implements SessionBackend.Put.
func (m *MemoryBackend) Put(_ context.Context, s *BroadcastSession) error {
	blob, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.blob = blob
	return nil
}

// Delete implements SessionBackend.Delete.
func (m *MemoryBackend) Delete(context.Context) error {
	m.blob = nil
	return nil
}
