// Package errors standardizes error handling across embargo.
//
// Errors are classified into three classes that drive handling policy:
//
//   - Transient: temporary failures (connection loss, store unavailable)
//     that callers may retry.
//   - Invalid: bad input or configuration; retrying will not help.
//   - Fatal: unrecoverable conditions; the surrounding task should stop
//     and let the substrate restart it.
//
// Components wrap errors at their boundaries with WrapTransient,
// WrapInvalid, or WrapFatal, producing messages of the form
// "component.method: action failed: <cause>" while preserving the cause
// chain for errors.Is / errors.As.
package errors
