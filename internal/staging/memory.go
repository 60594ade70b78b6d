package staging

// memoryStore keeps the staged document in memory, making it useful for
// testing and for sessions that should not outlive the process.
type memoryStore struct {
	data []byte
}

func (m *memoryStore) Read() ([]byte, bool, error) {
	if m.data == nil {
		return nil, false, nil
	}
	return append([]byte(nil), m.data...), true, nil
}

func (m *memoryStore) Write(data []byte) error {
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *memoryStore) Remove() error {
	m.data = nil
	return nil
}

// NewMemoryStagingArea creates an in-memory staging area.
// maxSize is the maximum serialized size in bytes; must be positive.
func NewMemoryStagingArea(maxSize int64) *StagingArea {
	return &StagingArea{store: &memoryStore{}, maxSize: maxSize}
}
