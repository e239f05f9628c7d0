package types

import (
	"errors"
	"fmt"
)

// ErrorCategory is the major half of an Error value.
type ErrorCategory uint32

const (
	ErrContract ErrorCategory = iota
	ErrWasmVm
	ErrContext
	ErrStorage
	ErrObject
	ErrCrypto
	ErrEvents
	ErrBudget
	ErrValue
	ErrAuth

	errorCategoryCount
)

var categoryNames = [...]string{
	ErrContract: "Contract",
	ErrWasmVm:   "WasmVm",
	ErrContext:  "Context",
	ErrStorage:  "Storage",
	ErrObject:   "Object",
	ErrCrypto:   "Crypto",
	ErrEvents:   "Events",
	ErrBudget:   "Budget",
	ErrValue:    "Value",
	ErrAuth:     "Auth",
}

func (c ErrorCategory) String() string {
	if c < errorCategoryCount {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", uint32(c))
}

// ErrorCode is the minor half of an Error value. For ErrContract the code is
// chosen by the contract; for every other category it is one of the constants below.
type ErrorCode uint32

const (
	CodeInternal ErrorCode = iota
	CodeInvalidInput
	CodeInvalidTag
	CodeInvalidEncoding
	CodeArithDomain
	CodeIndexBounds
	CodeMissingValue
	CodeMissingKey
	CodeExistingValue
	CodeExceededLimit
	CodeStaleHandle
	CodeInvalidHandle
	CodeDuplicateKey
	CodeMemoryBounds
	CodeArityMismatch
	CodeTypeMismatch
	CodeMissingExport
	CodeReentryRefused
	CodeDepthExceeded
	CodeAccessExpired
	CodeInvalidAction
	CodeNonceReplay
	CodeSignatureInvalid
	CodeExpired
	CodeInvalidTopic
	CodeTooManyTopics
	CodeBudgetExceeded
	CodeInvalidModule
	CodeTrap
	CodeVersionUnsupported
	CodeUnexpectedSize
	CodeInvalidPoint

	errorCodeCount
)

var codeNames = [...]string{
	CodeInternal:           "Internal",
	CodeInvalidInput:       "InvalidInput",
	CodeInvalidTag:         "InvalidTag",
	CodeInvalidEncoding:    "InvalidEncoding",
	CodeArithDomain:        "ArithDomain",
	CodeIndexBounds:        "IndexBounds",
	CodeMissingValue:       "MissingValue",
	CodeMissingKey:         "MissingKey",
	CodeExistingValue:      "ExistingValue",
	CodeExceededLimit:      "ExceededLimit",
	CodeStaleHandle:        "StaleHandle",
	CodeInvalidHandle:      "InvalidHandle",
	CodeDuplicateKey:       "DuplicateKey",
	CodeMemoryBounds:       "MemoryBounds",
	CodeArityMismatch:      "ArityMismatch",
	CodeTypeMismatch:       "TypeMismatch",
	CodeMissingExport:      "MissingExport",
	CodeReentryRefused:     "ReentryRefused",
	CodeDepthExceeded:      "DepthExceeded",
	CodeAccessExpired:      "AccessExpired",
	CodeInvalidAction:      "InvalidAction",
	CodeNonceReplay:        "NonceReplay",
	CodeSignatureInvalid:   "SignatureInvalid",
	CodeExpired:            "Expired",
	CodeInvalidTopic:       "InvalidTopic",
	CodeTooManyTopics:      "TooManyTopics",
	CodeBudgetExceeded:     "BudgetExceeded",
	CodeInvalidModule:      "InvalidModule",
	CodeTrap:               "Trap",
	CodeVersionUnsupported: "VersionUnsupported",
	CodeUnexpectedSize:     "UnexpectedSize",
	CodeInvalidPoint:       "InvalidPoint",
}

// Error is the (category, code) pair carried by the Error variant.
type Error struct {
	Category ErrorCategory
	Code     ErrorCode
}

// ContractError builds a contract-defined error.
func ContractError(code uint32) Error {
	return Error{Category: ErrContract, Code: ErrorCode(code)}
}

func (e Error) String() string {
	if e.Category == ErrContract {
		return fmt.Sprintf("Error(Contract, #%d)", uint32(e.Code))
	}
	if e.Code < errorCodeCount {
		return fmt.Sprintf("Error(%s, %s)", e.Category, codeNames[e.Code])
	}
	return fmt.Sprintf("Error(%s, #%d)", e.Category, uint32(e.Code))
}

// Error implements the error interface so an Error can be returned directly.
func (e Error) Error() string {
	return e.String()
}

// HostError is a trap: an Error value plus a human readable context message.
type HostError struct {
	Err     Error
	Message string
	cause   error
}

func (e *HostError) Error() string {
	if e.Message == "" {
		return e.Err.String()
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Message)
}

func (e *HostError) Unwrap() error {
	return e.cause
}

// Is matches another HostError or a bare Error with the same category and code.
func (e *HostError) Is(target error) bool {
	switch t := target.(type) {
	case *HostError:
		return t.Err == e.Err
	case Error:
		return t == e.Err
	}
	return false
}

// Errorf creates a HostError.
func Errorf(category ErrorCategory, code ErrorCode, format string, args ...any) *HostError {
	return &HostError{Err: Error{Category: category, Code: code}, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates a HostError that keeps cause reachable via errors.Unwrap.
func WrapError(category ErrorCategory, code ErrorCode, cause error, format string, args ...any) *HostError {
	he := Errorf(category, code, format, args...)
	he.cause = cause
	if cause != nil {
		he.Message = fmt.Sprintf("%s: %v", he.Message, cause)
	}
	return he
}

// AsHostError converts any error into a HostError. Errors that are not already
// HostErrors become Context/Internal.
func AsHostError(err error) *HostError {
	if err == nil {
		return nil
	}
	var he *HostError
	if errors.As(err, &he) {
		return he
	}
	var e Error
	if errors.As(err, &e) {
		return &HostError{Err: e, cause: err}
	}
	return WrapError(ErrContext, CodeInternal, err, "internal error")
}

// IsRecoverable reports whether a try-call may convert err into an Error value.
// Budget exhaustion and internal errors always propagate.
func IsRecoverable(err error) bool {
	he := AsHostError(err)
	if he == nil {
		return true
	}
	if he.Err.Category == ErrBudget {
		return false
	}
	if he.Err.Category != ErrContract && he.Err.Code == CodeInternal {
		return false
	}
	return true
}
