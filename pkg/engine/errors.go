package engine

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

// ErrorKind classifies errors raised by script execution.
type ErrorKind int

const (
	// ErrKindGeneric is a thrown value that is not an Error instance,
	// like `throw 3.14;`.
	ErrKindGeneric ErrorKind = iota

	// ErrKindInternal is an engine-internal failure.
	ErrKindInternal
	// ErrKindStackOverflow is raised when script exceeds the call depth limit.
	ErrKindStackOverflow
	// ErrKindInterrupted is raised when execution is cancelled via Interrupt.
	ErrKindInterrupted

	// ErrKindError is an instance of `Error`.
	ErrKindError
	// ErrKindEval is an instance of `EvalError`.
	ErrKindEval
	// ErrKindRange is an instance of `RangeError`.
	ErrKindRange
	// ErrKindReference is an instance of `ReferenceError`.
	ErrKindReference
	// ErrKindSyntax is an instance of `SyntaxError`.
	ErrKindSyntax
	// ErrKindType is an instance of `TypeError`.
	ErrKindType
	// ErrKindURI is an instance of `URIError`.
	ErrKindURI
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindGeneric:
		return "generic"
	case ErrKindInternal:
		return "internal"
	case ErrKindStackOverflow:
		return "stack_overflow"
	case ErrKindInterrupted:
		return "interrupted"
	case ErrKindError:
		return "Error"
	case ErrKindEval:
		return "EvalError"
	case ErrKindRange:
		return "RangeError"
	case ErrKindReference:
		return "ReferenceError"
	case ErrKindSyntax:
		return "SyntaxError"
	case ErrKindType:
		return "TypeError"
	case ErrKindURI:
		return "URIError"
	default:
		return fmt.Sprintf("unknown_error_kind_%d", int(k))
	}
}

// JSError is an error originating from script execution. Message carries the
// coerced string of the thrown value, which for Error instances reads
// "<Name>: <message>".
type JSError struct {
	Kind    ErrorKind
	Message string
	Stack   string
}

func (e *JSError) Error() string { return e.Message }

// UnsupportedTypeError indicates a script value with no neutral Value mapping.
type UnsupportedTypeError struct {
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("engine: no value mapping for %s", e.Type)
}

// ErrNoSuchGlobal is returned by CallGlobal when the named global is missing.
var ErrNoSuchGlobal = errors.New("engine: global not found")

var errorKindsByName = map[string]ErrorKind{
	"Error":          ErrKindError,
	"EvalError":      ErrKindEval,
	"RangeError":     ErrKindRange,
	"ReferenceError": ErrKindReference,
	"SyntaxError":    ErrKindSyntax,
	"TypeError":      ErrKindType,
	"URIError":       ErrKindURI,
}

// classifyError maps engine-level failures onto the JSError taxonomy. Errors
// that are not script failures (I/O and the like) pass through unchanged.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	switch e := err.(type) {
	case *goja.StackOverflowError:
		return &JSError{Kind: ErrKindStackOverflow, Message: e.Error(), Stack: e.String()}
	case *goja.InterruptedError:
		return &JSError{Kind: ErrKindInterrupted, Message: e.Error(), Stack: e.String()}
	case *goja.Exception:
		return classifyThrown(e)
	case *goja.CompilerSyntaxError:
		return &JSError{Kind: ErrKindSyntax, Message: e.Error()}
	case *goja.CompilerReferenceError:
		return &JSError{Kind: ErrKindReference, Message: e.Error()}
	default:
		return err
	}
}

func classifyThrown(ex *goja.Exception) *JSError {
	thrown := ex.Value()
	kind := ErrKindGeneric
	message := ""
	if thrown != nil {
		message = thrown.String()
		if obj, ok := thrown.(*goja.Object); ok {
			if nameVal := obj.Get("name"); nameVal != nil && !goja.IsUndefined(nameVal) {
				if k, ok := errorKindsByName[nameVal.String()]; ok {
					kind = k
				} else if isErrorLike(obj) {
					// Unknown Error subclass.
					kind = ErrKindError
				}
			}
		}
	}
	return &JSError{Kind: kind, Message: message, Stack: ex.String()}
}

func isErrorLike(obj *goja.Object) bool {
	msg := obj.Get("message")
	stack := obj.Get("stack")
	return (msg != nil && !goja.IsUndefined(msg)) || (stack != nil && !goja.IsUndefined(stack))
}
