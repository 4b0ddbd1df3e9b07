package loader

import "fmt"

// Phase names the coordinator step that failed, reported to the caller
// so a failed run can say where it stopped.
type Phase string

const (
	PhaseDimensions Phase = "dimensions"
	PhaseResolve    Phase = "key-resolution"
	PhaseEnrich     Phase = "enrichment"
	PhaseFacts      Phase = "facts"
)

// ConfigError means a pre-provisioned dimension cannot cover a value in
// the batch, notably a date outside the provisioned calendar range. The
// operator has to re-provision before retrying, the data itself is fine.
type ConfigError struct {
	Dimension string
	Detail    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s dimension not provisioned for batch: %s", e.Dimension, e.Detail)
}

// IntegrityError means enrichment found a natural key with no surrogate
// mapping. Upstream validation should have caught it, so this always
// fails the run rather than dropping or nulling the row.
type IntegrityError struct {
	Dimension     string
	Value         string
	TransactionID string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("no %s key for %q (transaction %s)", e.Dimension, e.Value, e.TransactionID)
}

// StorageError wraps a failure talking to the warehouse. The whole run
// rolls back, and since loading is idempotent the caller may retry the
// batch as-is.
type StorageError struct {
	Phase Phase
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Phase, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
