// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package errors provides error creation and matching for all wallet systems.  It
is imported as errors and takes over the roll of the standard library errors
package.
*/
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Separator is inserted between nested errors when formatting as strings.  The
// default separator produces easily readable multiline errors.  Separator may
// be modified at init time to create error strings appropriate for logging
// errors on a single line.
var Separator = ":\n\t"

// Error describes an error condition raised within the wallet process.  Errors
// may optionally provide details regarding the operation and class of error for
// assistance in debugging and runtime matching of errors.
type Error struct {
	Op   Op
	Kind Kind
	Err  error
}

// Op describes the operation, method, or RPC in which an error condition was
// raised.
type Op string

// Opf returns a formatted Op.
func Opf(format string, a ...interface{}) Op {
	return Op(fmt.Sprintf(format, a...))
}

// Kind describes the class of error.
type Kind int

// Error kinds.
const (
	Other             Kind = iota // Unclassified error -- does not appear in error strings
	Bug                           // Error is known to be a result of our bug
	Invalid                       // Invalid operation
	Encoding                      // Invalid encoding
	Crypto                        // Encryption or decryption error
	CryptoVerify                  // Self-verification of a commitment, range proof, or ring signature failed
	InsufficientFunds             // Balance does not cover payment plus fee
	DuplicatePayment              // Payment id was already received
	Store                         // Document store failure
	Exist                         // Item already exists
	NotExist                      // Item does not exist
	RPC                           // Node RPC transport, timeout, or decode failure
	Config                        // Missing or malformed configuration
	Cancelled                     // Operation cancelled by the caller
	Seed                          // Invalid seed or mnemonic
	Passphrase                    // Invalid passphrase
	Locked                        // Wallet is locked
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "unclassified error"
	case Bug:
		return "internal wallet error"
	case Invalid:
		return "invalid operation"
	case Encoding:
		return "invalid encoding"
	case Crypto:
		return "encryption/decryption error"
	case CryptoVerify:
		return "crypto self-verification failure"
	case InsufficientFunds:
		return "insufficient funds"
	case DuplicatePayment:
		return "duplicate payment"
	case Store:
		return "store error"
	case Exist:
		return "item already exists"
	case NotExist:
		return "item does not exist"
	case RPC:
		return "node RPC error"
	case Config:
		return "configuration error"
	case Cancelled:
		return "operation cancelled"
	case Seed:
		return "invalid seed"
	case Passphrase:
		return "invalid passphrase"
	case Locked:
		return "wallet locked"
	default:
		return "unknown error kind"
	}
}

// New creates a simple error from a string.  New is identical to "errors".New
// from the standard library.
func New(text string) error {
	return errors.New(text)
}

// Errorf creates a simple error from a format string and arguments.  Errorf is
// identical to "fmt".Errorf from the standard library.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// E creates an *Error from one or more arguments.
//
// Each argument type is inspected when constructing the error.  If multiple
// args of similar type are passed, the final arg is recorded.  The following
// types are recognized:
//
//	errors.Op
//	    The operation, method, or RPC which was invoked.
//	errors.Kind
//	    The class of error.
//	string
//	    Description of the error condition.  String types populate the
//	    Err field and overwrite, and are overwritten by, other arguments
//	    which implement the error interface.
//	error
//	    The underlying error.  If the error is an *Error, the Op and Kind
//	    will be promoted to the newly created error if not set to another
//	    value in the args.
//
// If another *Error is passed as an argument and no other arguments differ from
// the wrapped error, instead of wrapping the error, the errors are collapsed
// and fields of the passed *Error are promoted to the returned error.
//
// Panics if no arguments are passed.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("errors.E: no args")
	}

	var e Error

	var prev *Error

	for _, arg := range args {
		switch arg := arg.(type) {
		case Op:
			e.Op = arg
		case Kind:
			e.Kind = arg
		case string:
			e.Err = New(arg)
		case *Error:
			prev = arg
			e.Err = arg
		case error:
			e.Err = arg
		}
	}

	// Promote the Op and Kind of the nested Error to the newly created error,
	// if these fields were not part of the args.  This improves matching
	// capabilities as well as improving the order of these fields in the
	// formatted error.
	if e.Err == prev && prev != nil {
		if e.Op == "" {
			e.Op = prev.Op
		}
		if e.Kind == 0 {
			e.Kind = prev.Kind
		}

		// Remove the previous error from the error chain if it does not have
		// any unique fields.
		if (prev.Op == "" || e.Op == prev.Op) && (prev.Kind == 0 || e.Kind == prev.Kind) {
			e.Err = prev.Err
		}
	}

	return &e
}

func (e *Error) Error() string {
	var b strings.Builder

	// Record the last added fields to the string to avoid duplication.
	var last Error

	for {
		pad := false // whether to pad/separate next field
		if e.Op != "" && e.Op != last.Op {
			b.WriteString(string(e.Op))
			pad = true
			last.Op = e.Op
		}
		if e.Kind != 0 && e.Kind != last.Kind {
			if pad {
				b.WriteString(": ")
			}
			b.WriteString(e.Kind.String())
			pad = true
			last.Kind = e.Kind
		}
		if e.Err == nil {
			break
		}
		if err, ok := e.Err.(*Error); ok {
			if pad {
				b.WriteString(Separator)
			}
			e = err
			continue
		}
		if pad {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
		break
	}

	s := b.String()
	if s == "" {
		return Other.String()
	}
	return s
}

// Unwrap returns the wrapped error, supporting interop with the standard
// library errors package.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is determines whether err or any errors it wraps describe an error of kind
// k.  When err is created by E, wrapped errors are only considered if the
// outer error's kind is unset.
func Is(k Kind, err error) bool {
	for err != nil {
		e, ok := err.(*Error)
		if !ok {
			return false
		}
		if e.Kind != Other {
			return e.Kind == k
		}
		err = e.Err
	}
	return false
}

// Match compares err against a template error.  Non-zero fields of the
// template must be equal to the same fields of err for a match.  Wrapped
// errors of the template and err are matched recursively.
func Match(template, err error) bool {
	t, ok := template.(*Error)
	if !ok {
		return false
	}
	e, ok := err.(*Error)
	if !ok {
		return false
	}

	if t.Op != "" && t.Op != e.Op {
		return false
	}
	if t.Kind != Other && t.Kind != e.Kind {
		return false
	}
	if t.Err != nil {
		if t2, ok := t.Err.(*Error); ok {
			return Match(t2, e.Err)
		}
		if e.Err == nil || t.Err.Error() != e.Err.Error() {
			return false
		}
	}
	return true
}
