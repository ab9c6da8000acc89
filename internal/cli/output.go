package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Exit codes for shopctl.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the command ran but was rejected (bad id, unknown product)
	ExitCommandError = 2 // the command could not run (profile, catalog, backend)
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

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from err. Errors that are not an
// ExitError map to ExitFailure.
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

// Response is the JSON envelope written in --format json.
type Response struct {
	Status  string          `json:"status"`
	Data    any             `json:"data,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
	Notices []domain.Notice `json:"notices,omitempty"`
}

// ResponseError describes a failed command.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Output renders command results as text or JSON.
type Output struct {
	Format string
	Writer io.Writer
}

// Success writes data. In text mode text renders it; a nil text falls back
// to fmt's default formatting.
func (o *Output) Success(data any, notices []domain.Notice, text func(io.Writer)) error {
	if o.Format == "json" {
		return json.NewEncoder(o.Writer).Encode(Response{Status: "ok", Data: data, Notices: notices})
	}
	if text != nil {
		text(o.Writer)
	} else if data != nil {
		fmt.Fprintln(o.Writer, data)
	}
	for _, n := range notices {
		fmt.Fprintf(o.Writer, "! %s\n", n.Message)
	}
	return nil
}

// Error writes a failed result.
func (o *Output) Error(err error) error {
	code := "ERROR"
	msg := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		code, msg = appErr.Code, appErr.Message
	}
	if o.Format == "json" {
		return json.NewEncoder(o.Writer).Encode(Response{
			Status: "error",
			Error:  &ResponseError{Code: code, Message: msg},
		})
	}
	fmt.Fprintf(o.Writer, "Error [%s]: %s\n", code, msg)
	return nil
}

func writeCart(w io.Writer, view service.CartView) {
	if len(view.Lines) == 0 {
		fmt.Fprintln(w, "cart is empty")
		return
	}
	for _, l := range view.Lines {
		fmt.Fprintf(w, "%-12s %-28s %3d x %10s = %10s\n",
			l.Product.ID, l.Product.Name, l.Quantity,
			l.Product.Price.StringFixed(2), l.Subtotal().StringFixed(2))
	}
	fmt.Fprintf(w, "%d item(s), total %s\n", view.Count, view.Total.StringFixed(2))
}

func writeProducts(w io.Writer, empty string, products []domain.Product) {
	if len(products) == 0 {
		fmt.Fprintln(w, empty)
		return
	}
	for i, p := range products {
		fmt.Fprintf(w, "%2d. %-12s %-28s %10s\n", i+1, p.ID, p.Name, p.Price.StringFixed(2))
	}
}

func writeIDs(w io.Writer, empty string, ids []domain.ProductID) {
	if len(ids) == 0 {
		fmt.Fprintln(w, empty)
		return
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	fmt.Fprintln(w, strings.Join(parts, "\n"))
}
