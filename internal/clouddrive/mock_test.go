package clouddrive

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ConfigButler/vfscore/internal/vfs"
)

// mockDrive is an in-process DriveClient used to exercise the adapter
// without a real cloud API, the way the teacher's tests fake out
// Kubernetes clients rather than hitting a live API server.
type mockDrive struct {
	mu       sync.Mutex
	nextID   int64
	children map[string][]FileInfo // parentID -> children
	content  map[string][]byte     // fileID -> content
}

func newMockDrive(rootID string) *mockDrive {
	return &mockDrive{
		children: map[string][]FileInfo{rootID: nil},
		content:  map[string][]byte{},
	}
}

func (m *mockDrive) newID() string {
	return fmt.Sprintf("id-%d", atomic.AddInt64(&m.nextID, 1))
}

func (m *mockDrive) ListChildren(_ context.Context, parentID string) ([]FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]FileInfo(nil), m.children[parentID]...), nil
}

func (m *mockDrive) GetContent(_ context.Context, fileID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.content[fileID]
	if !ok {
		return nil, vfs.NewError(vfs.KindNotFound, "open", fileID)
	}
	return data, nil
}

func (m *mockDrive) CreateFile(_ context.Context, parentID, name string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.newID()
	m.children[parentID] = append(m.children[parentID], FileInfo{ID: id, Name: name, Size: int64(len(data))})
	m.content[id] = data
	return id, nil
}

func (m *mockDrive) CreateFolder(_ context.Context, parentID, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.newID()
	m.children[parentID] = append(m.children[parentID], FileInfo{ID: id, Name: name, IsFolder: true})
	m.children[id] = nil
	return id, nil
}

func (m *mockDrive) UpdateContent(_ context.Context, fileID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content[fileID] = data
	return nil
}

func (m *mockDrive) Delete(_ context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for parent, kids := range m.children {
		for i, k := range kids {
			if k.ID == fileID {
				m.children[parent] = append(kids[:i], kids[i+1:]...)
			}
		}
	}
	delete(m.content, fileID)
	delete(m.children, fileID)
	return nil
}

func (m *mockDrive) Move(_ context.Context, fileID, newParentID, newName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var moved FileInfo
	for parent, kids := range m.children {
		for i, k := range kids {
			if k.ID == fileID {
				moved = k
				m.children[parent] = append(kids[:i], kids[i+1:]...)
			}
		}
	}
	moved.Name = newName
	m.children[newParentID] = append(m.children[newParentID], moved)
	return nil
}
