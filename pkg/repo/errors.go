package repo

import "fmt"

// Error wraps a failure from a Provider or Repository operation, carrying
// both the underlying cause and a human-facing message.
type Error struct {
	Underlying error
	Message    string
}

func (e *Error) Error() string {
	if e.Underlying == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Underlying)
}

func (e *Error) Unwrap() error { return e.Underlying }

func wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Underlying: err, Message: fmt.Sprintf(format, args...)}
}

// RevisionNotFound is returned by ResolveRevision when a tag/branch/sha does
// not exist in the repository, as distinct from "the underlying git
// invocation itself failed".
type RevisionNotFound struct {
	Identifier string
	Suggestion string // e.g. "main" when "master" was requested and renamed
}

func (e *RevisionNotFound) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("revision %q not found; did you mean %q?", e.Identifier, e.Suggestion)
	}
	return fmt.Sprintf("revision %q not found", e.Identifier)
}

// MalformedGitResponse is returned when git produced output this package
// could not parse (as opposed to a clean failure exit code).
type MalformedGitResponse struct {
	Operation string
	Output    string
}

func (e *MalformedGitResponse) Error() string {
	return fmt.Sprintf("malformed response from git %s: %s", e.Operation, e.Output)
}

// NotABareRepo is returned by Open when the given path is not a bare clone.
type NotABareRepo struct {
	Path string
}

func (e *NotABareRepo) Error() string {
	return fmt.Sprintf("%s is not a bare repository", e.Path)
}
