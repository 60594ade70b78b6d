package staging

// stagingStore abstracts where the serialized pending state lives.
// Concurrency is managed by the caller (StagingArea.mu), so stores
// do not need to be safe for concurrent use.
type stagingStore interface {
	// Read returns the stored document. ok is false if nothing is stored.
	Read() (data []byte, ok bool, err error)

	// Write replaces the stored document.
	Write(data []byte) error

	// Remove deletes the stored document. Removing nothing is not an error.
	Remove() error
}
