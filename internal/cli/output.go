package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"tillsync/internal/core/apperror"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the operation was refused (business rule, validation)
	ExitCommandError = 2 // the command could not run (config, local store)
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
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

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError mirrors the API error body.
type CLIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Success prints data. Text mode uses text when given, JSON otherwise.
func (f *OutputFormatter) Success(data any, text string) error {
	if f.Format == "json" {
		return f.writeJSON(CLIResponse{Status: "ok", Data: data})
	}
	if text == "" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	_, err := fmt.Fprintln(f.Writer, text)
	return err
}

// Error reports err and returns it with an exit code attached.
// An *ExitError passes through untouched: its command already reported it.
func (f *OutputFormatter) Error(err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	cliErr := &CLIError{Code: apperror.CodeInternal, Message: err.Error()}
	if appErr, ok := apperror.AsAppError(err); ok {
		cliErr = &CLIError{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}
	}
	if f.Format == "json" {
		_ = f.writeJSON(CLIResponse{Status: "error", Error: cliErr})
	} else {
		fmt.Fprintf(f.errWriter(), "error: %s (%s)\n", cliErr.Message, cliErr.Code)
	}

	code := ExitFailure
	if cliErr.Code == apperror.CodeInternal {
		code = ExitCommandError
	}
	return WrapExitError(code, cliErr.Code, err)
}

// VerboseLog prints diagnostics to ErrWriter when verbose.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.errWriter(), format+"\n", args...)
}

func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

func (f *OutputFormatter) writeJSON(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
