package ledger

import (
	"errors"
	"fmt"
)

// Kind classifies a rejection.
type Kind uint

const (
	// InputError is a user-correctable problem with the submitted form.
	InputError Kind = iota + 1
	// BusinessRuleError means the order is well formed but cannot be honoured.
	BusinessRuleError
)

func (k Kind) String() string {
	switch k {
	case InputError:
		return "input"
	case BusinessRuleError:
		return "business_rule"
	default:
		return "unknown"
	}
}

// Code identifies why an order was rejected.
type Code string

const (
	CodeEmptySymbol      Code = "EMPTY_SYMBOL"
	CodeEmptyShares      Code = "EMPTY_SHARES"
	CodeNotInteger       Code = "NOT_INTEGER"
	CodeNonPositive      Code = "NON_POSITIVE"
	CodeOutOfRange       Code = "SHARES_OUT_OF_RANGE"
	CodeUnknownSymbol    Code = "UNKNOWN_SYMBOL"
	CodeInsufficientCash Code = "INSUFFICIENT_FUNDS"
	CodeInsufficientQty  Code = "INSUFFICIENT_SHARES"
)

var codeKinds = map[Code]Kind{
	CodeEmptySymbol:      InputError,
	CodeEmptyShares:      InputError,
	CodeNotInteger:       InputError,
	CodeNonPositive:      InputError,
	CodeOutOfRange:       InputError,
	CodeUnknownSymbol:    InputError,
	CodeInsufficientCash: BusinessRuleError,
	CodeInsufficientQty:  BusinessRuleError,
}

var codeMessages = map[Code]string{
	CodeEmptySymbol:      "You cannot submit an empty stock symbol",
	CodeEmptyShares:      "You cannot submit an empty quantity of shares",
	CodeNotInteger:       "You have to input a positive integer of shares",
	CodeNonPositive:      "You have to input a positive integer of shares",
	CodeOutOfRange:       "The quantity of shares is too large",
	CodeUnknownSymbol:    "The stock symbol does not exist",
	CodeInsufficientCash: "You do not have enough money",
	CodeInsufficientQty:  "You do not have enough shares",
}

// Rejection is returned when an order ends in the REJECTED state.
// No ledger state has been changed when a Rejection is returned.
type Rejection struct {
	Kind    Kind
	Code    Code
	Message string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("order rejected (%s): %s", r.Code, r.Message)
}

// Is matches any rejection carrying the same code.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	if !ok {
		return false
	}
	return r.Code == t.Code
}

func reject(code Code) *Rejection {
	return &Rejection{Kind: codeKinds[code], Code: code, Message: codeMessages[code]}
}

// Sentinel rejections, usable with errors.Is.
var (
	ErrEmptySymbol       = reject(CodeEmptySymbol)
	ErrEmptyShares       = reject(CodeEmptyShares)
	ErrNotInteger        = reject(CodeNotInteger)
	ErrNonPositive       = reject(CodeNonPositive)
	ErrSharesOutOfRange  = reject(CodeOutOfRange)
	ErrUnknownSymbol     = reject(CodeUnknownSymbol)
	ErrInsufficientFunds = reject(CodeInsufficientCash)
	ErrInsufficientQty   = reject(CodeInsufficientQty)
)

// ErrQuoteUnavailable marks a quote that could not be obtained from the
// provider. It is a dependency failure, not a rejection.
var ErrQuoteUnavailable = errors.New("quote unavailable")

// ErrUserNotFound is returned when the acting user has no ledger row.
var ErrUserNotFound = errors.New("user not found")

// AsRejection unwraps err into a *Rejection when it is one.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
