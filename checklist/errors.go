package checklist

import (
	"errors"
	"fmt"
	"net/http"
)

// errors.go provides the error taxonomy for the checklist package
//
// error type checking:
//
//	sentinels can be checked with errors.Is(err, ErrType)
//	typed errors can be extracted with errors.As(err, &target)

// used for the mirror
var (
	ErrItemNotFound = errors.New("item not found")
	ErrStaleResult  = errors.New("result is for a previous namespace or load")
)

// used for credentials and namespaces
var (
	ErrNoToken          = errors.New("no auth token")
	ErrInvalidNamespace = errors.New("invalid namespace")
)

// network or connection failure, including a failed list request
type TransportError struct {
	Op  string
	Err error
}

func (self *TransportError) Error() string {
	return fmt.Sprintf("%s transport error: %s", self.Op, self.Err)
}

func (self *TransportError) Unwrap() error {
	return self.Err
}

// non-2xx response to a request
type OperationError struct {
	Op         string
	StatusCode int
	Status     string
}

func newOperationError(op string, statusCode int, status string) *OperationError {
	if status == "" {
		status = fmt.Sprintf("%d %s", statusCode, http.StatusText(statusCode))
	}
	return &OperationError{
		Op:         op,
		StatusCode: statusCode,
		Status:     status,
	}
}

func (self *OperationError) Error() string {
	return fmt.Sprintf("%s failed: %s", self.Op, self.Status)
}

func (self *OperationError) Is(target error) bool {
	return target == ErrItemNotFound && self.StatusCode == http.StatusNotFound
}

// malformed inbound event. these are dropped and logged, never applied
type ProtocolError struct {
	Reason  string
	Payload []byte
}

func (self *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", self.Reason)
}

// reported out of band when an optimistic toggle commit fails.
// the item keeps its optimistic value, there is no rollback
type CommitError struct {
	Uid       string
	IsChecked bool
	Err       error
}

func (self *CommitError) Error() string {
	return fmt.Sprintf("toggle commit %s (is_checked=%t): %s", self.Uid, self.IsChecked, self.Err)
}

func (self *CommitError) Unwrap() error {
	return self.Err
}
