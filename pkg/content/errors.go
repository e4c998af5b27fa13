package content

import (
	"errors"
	"fmt"
)

// Kind classifies a content failure so the transport layer can map it to a
// stable caller-visible status.
type Kind uint8

const (
	KindInternal Kind = iota
	KindPathTraversal
	KindInvalidName
	KindInvalidTarget
	KindNotFound
	KindAlreadyExists
	KindPayloadTooLarge
	KindTreeTooDeep
	KindExternalProcessFailed
)

var kindNames = map[Kind]string{
	KindInternal:              "Internal",
	KindPathTraversal:         "PathTraversal",
	KindInvalidName:           "InvalidName",
	KindInvalidTarget:         "InvalidTarget",
	KindNotFound:              "NotFound",
	KindAlreadyExists:         "AlreadyExists",
	KindPayloadTooLarge:       "PayloadTooLarge",
	KindTreeTooDeep:           "TreeTooDeep",
	KindExternalProcessFailed: "ExternalProcessFailed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Sentinels usable with errors.Is.
var (
	ErrPathTraversal         = &Error{Kind: KindPathTraversal}
	ErrInvalidName           = &Error{Kind: KindInvalidName}
	ErrInvalidTarget         = &Error{Kind: KindInvalidTarget}
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrAlreadyExists         = &Error{Kind: KindAlreadyExists}
	ErrPayloadTooLarge       = &Error{Kind: KindPayloadTooLarge}
	ErrTreeTooDeep           = &Error{Kind: KindTreeTooDeep}
	ErrExternalProcessFailed = &Error{Kind: KindExternalProcessFailed}
)

// Error is the error type returned by every Workspace operation that fails for
// a reason the caller can act on.
type Error struct {
	Kind   Kind
	Op     string
	Path   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " " + fmt.Sprintf("%q", e.Path)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the package sentinels work with
// errors.Is regardless of Op/Path.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Message is the human-readable text exposed to callers. Diagnostics from
// external processes are returned verbatim.
func (e *Error) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Path)
	}
	return e.Kind.String()
}

func newError(kind Kind, op, path, detail string) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Detail: detail}
}

// KindOf reports the kind of err, or KindInternal for errors outside the
// taxonomy.
func KindOf(err error) Kind {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return KindInternal
}
