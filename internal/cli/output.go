package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/archivist/internal/model"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failed (origin unavailable, record not found, seed failures)
	ExitCommandError = 2 // Command error (bad arguments, invalid config, database cannot be opened)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Success outputs a successful result in the configured format.
// In text mode data is printed with fmt.Fprintln, so types with a
// String method control their own rendering.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(err error) error {
	code := GetExitCode(err)
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: err.Error()},
		})
	}

	_, werr := fmt.Fprintf(f.Writer, "Error: %v\n", err)
	return werr
}

func newFormatter(opts *RootOptions, w io.Writer) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: w}
}

// entryList renders posts one per line.
type entryList []model.Entry

func (l entryList) String() string {
	if len(l) == 0 {
		return "(no posts)"
	}
	lines := make([]string, len(l))
	for i, e := range l {
		lines[i] = entry(e).String()
	}
	return strings.Join(lines, "\n")
}

// MarshalJSON keeps an empty list as [] rather than null.
func (l entryList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]model.Entry(l))
}

type entry model.Entry

func (e entry) String() string {
	author := fmt.Sprintf("user:%d", e.Post.AuthorID)
	if e.Author != nil {
		author = "@" + e.Author.Handle
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-20s %s  %s",
		model.FormatTimestamp(e.Post.CreatedAt), fmt.Sprintf("[%d]", e.Post.ID), author,
		strings.ReplaceAll(e.Post.Text, "\n", " "))
	for _, r := range e.Post.References {
		fmt.Fprintf(&b, "  (%s %d)", r.Kind, r.ID)
	}
	return b.String()
}

func (e entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(model.Entry(e))
}

type user model.User

func (u user) String() string {
	s := fmt.Sprintf("[%d] @%s  %s", u.ID, u.Handle, u.Name)
	if u.Description != "" {
		s += "\n" + u.Description
	}
	return s
}

func (u user) MarshalJSON() ([]byte, error) {
	return json.Marshal(model.User(u))
}

type stats model.Stats

func (s stats) String() string {
	return fmt.Sprintf("users:         %d\nposts:         %d\nconversations: %d\nreferences:    %d",
		s.Users, s.Posts, s.Conversations, s.References)
}

func (s stats) MarshalJSON() ([]byte, error) {
	return json.Marshal(model.Stats(s))
}
