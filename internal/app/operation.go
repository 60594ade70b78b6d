package app

// Operation tracks a CLI invocation that may change state.
// Operations are created in memory with ID=0. Only commands that change
// pending or server state persist them, which gives them an id from the cache.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "success" or "error"
}

// NewOperation creates a new in-memory operation.
func NewOperation(operation string) *Operation {
	return &Operation{
		Operation: operation,
		Status:    "success",
	}
}

// Persisted returns true if this operation has been recorded in the cache.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as failed.
func (op *Operation) Fail() {
	op.Status = "error"
}
