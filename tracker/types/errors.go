package types

import "fmt"

// InvalidRecordError rejects a malformed record or an operation that would be
// meaningless, such as computing a percent change against a zero baseline.
// It affects only the offending record, never the whole batch.
type InvalidRecordError struct {
	Reason string
}

func (e *InvalidRecordError) Error() string {
	return "invalid record: " + e.Reason
}

// StorageError wraps an I/O or constraint failure inside the persistence
// layer. The wrapped operation aborts and its transaction rolls back.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NotFoundError reports an absent baseline, component, or data window. It is
// an expected outcome for detection and reporting, not a failure.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}
