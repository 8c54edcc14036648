package app

// Operation tracks a CLI command that may mutate the metadata database.
// Operations are created in memory with ID=0. Only mutating commands persist
// them, which gives them an auto-increment ID that doubles as the metadata
// version.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "success" or "error"
}

// NewOperation creates a new in-memory operation.
func NewOperation(operation, parameters string) *Operation {
	return &Operation{
		Operation:  operation,
		Parameters: parameters,
		Status:     StatusSuccess,
	}
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Persisted returns true if this operation has been saved to the database.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as failed. The status is written when the app closes.
func (op *Operation) Fail() {
	op.Status = StatusError
}
