// Package xerrors defines the categorized error taxonomy shared by every
// pipeline stage. Errors are values, built from a small set of constructors,
// not an exception hierarchy: retry, fetch, storage and transaction code all
// report through the same CategorizedError shape so callers can branch on
// Category() instead of string-matching messages.
package xerrors

import (
	"errors"
	"fmt"
)

// Category classifies an error by the pipeline stage that produced it.
type Category string

const (
	Fetch       Category = "fetch"
	Render      Category = "render"
	Filter      Category = "filter"
	Schema      Category = "schema"
	Extraction  Category = "extraction"
	LLM         Category = "llm"
	Storage     Category = "storage"
	Transaction Category = "transaction"
	Config      Category = "config"
)

// Retryable reports whether errors of this category are retryable by
// default, per the taxonomy in the error handling design.
func (c Category) Retryable() bool {
	switch c {
	case Fetch, Render:
		return true
	default:
		return false
	}
}

// CategorizedError wraps a cause with a Category and an optional component
// name for logging/metrics.
type CategorizedError struct {
	category  Category
	component string
	message   string
	cause     error
}

func (e *CategorizedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.category, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.category, e.message)
}

func (e *CategorizedError) Unwrap() error { return e.cause }

// Category returns the error's taxonomy category.
func (e *CategorizedError) Category() Category { return e.category }

// Component returns the component name that raised the error, if set.
func (e *CategorizedError) Component() string { return e.component }

func new_(cat Category, component, msg string, cause error) *CategorizedError {
	return &CategorizedError{category: cat, component: component, message: msg, cause: cause}
}

func New(cat Category, component, msg string) *CategorizedError {
	return new_(cat, component, msg, nil)
}

func Wrap(cat Category, component, msg string, cause error) *CategorizedError {
	return new_(cat, component, msg, cause)
}

func FetchErr(component, msg string, cause error) *CategorizedError       { return Wrap(Fetch, component, msg, cause) }
func RenderErr(component, msg string, cause error) *CategorizedError      { return Wrap(Render, component, msg, cause) }
func FilterErr(component, msg string, cause error) *CategorizedError      { return Wrap(Filter, component, msg, cause) }
func SchemaErr(component, msg string, cause error) *CategorizedError      { return Wrap(Schema, component, msg, cause) }
func ExtractionErr(component, msg string, cause error) *CategorizedError  { return Wrap(Extraction, component, msg, cause) }
func LLMErr(component, msg string, cause error) *CategorizedError         { return Wrap(LLM, component, msg, cause) }
func StorageErr(component, msg string, cause error) *CategorizedError     { return Wrap(Storage, component, msg, cause) }
func TransactionErr(component, msg string, cause error) *CategorizedError { return Wrap(Transaction, component, msg, cause) }
func ConfigErr(component, msg string, cause error) *CategorizedError      { return Wrap(Config, component, msg, cause) }

// CategoryOf extracts the Category from err if it (or something it wraps) is
// a *CategorizedError; ok is false otherwise.
func CategoryOf(err error) (cat Category, ok bool) {
	var ce *CategorizedError
	if errors.As(err, &ce) {
		return ce.category, true
	}
	return "", false
}

// Sentinel storage/transaction errors, wrapped with eris for stack context
// at the point they're raised (see internal/storage).
var (
	ErrProductNotFound    = errors.New("product not found")
	ErrDuplicateProduct   = errors.New("duplicate product")
	ErrStorageConnection  = errors.New("storage connection error")
	ErrTransactionInactive       = errors.New("transaction is not active")
	ErrTransactionAlreadyDone    = errors.New("transaction already committed or rolled back")
)
