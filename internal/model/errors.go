package model

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes user-facing failures.
type ErrorCode string

const (
	// CodeInsufficientStock: requested quantity exceeds available stock.
	CodeInsufficientStock ErrorCode = "INSUFFICIENT_STOCK"

	// CodeEmptyCart: invoice or checkout requested on a cart with no lines.
	CodeEmptyCart ErrorCode = "EMPTY_CART"

	// CodeMissingClientIdentity: a cart operation ran with no bound client.
	CodeMissingClientIdentity ErrorCode = "MISSING_CLIENT_IDENTITY"

	// CodeInvalidQuantity: non-positive, negative or non-numeric quantity.
	CodeInvalidQuantity ErrorCode = "INVALID_QUANTITY"

	// CodeUnknownProduct: the catalog does not list the product.
	CodeUnknownProduct ErrorCode = "UNKNOWN_PRODUCT"

	// CodeInvalidProduct: a catalog record failed validation.
	CodeInvalidProduct ErrorCode = "INVALID_PRODUCT"

	// CodeInvalidPaymentMethod: payment method is neither online nor phone.
	CodeInvalidPaymentMethod ErrorCode = "INVALID_PAYMENT_METHOD"

	// CodeOnlinePaymentDisabled: online payment requested while disabled.
	CodeOnlinePaymentDisabled ErrorCode = "ONLINE_PAYMENT_DISABLED"

	// CodeConcurrentUpdate: another execution context kept winning the race
	// for the same keys and the store gave up retrying.
	CodeConcurrentUpdate ErrorCode = "CONCURRENT_UPDATE"
)

// Error is a recoverable, user-facing failure. The operation that returned
// it left all persisted state unchanged.
type Error struct {
	Code      ErrorCode
	Message   string
	ProductID ProductID
	ClientID  ClientID
	Details   map[string]string
}

// Sentinels for errors.Is. Matching compares codes only.
var (
	ErrInsufficientStock     = &Error{Code: CodeInsufficientStock}
	ErrEmptyCart             = &Error{Code: CodeEmptyCart}
	ErrMissingClientIdentity = &Error{Code: CodeMissingClientIdentity}
	ErrInvalidQuantity       = &Error{Code: CodeInvalidQuantity}
	ErrUnknownProduct        = &Error{Code: CodeUnknownProduct}
	ErrInvalidProduct        = &Error{Code: CodeInvalidProduct}
	ErrInvalidPaymentMethod  = &Error{Code: CodeInvalidPaymentMethod}
	ErrOnlinePaymentDisabled = &Error{Code: CodeOnlinePaymentDisabled}
	ErrConcurrentUpdate      = &Error{Code: CodeConcurrentUpdate}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	switch {
	case e.ProductID != "" && e.ClientID != "":
		return fmt.Sprintf("%s: %s (product=%s, client=%s)", e.Code, msg, e.ProductID, e.ClientID)
	case e.ProductID != "":
		return fmt.Sprintf("%s: %s (product=%s)", e.Code, msg, e.ProductID)
	case e.ClientID != "":
		return fmt.Sprintf("%s: %s (client=%s)", e.Code, msg, e.ClientID)
	}
	if msg == string(e.Code) {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain, or "" when err
// is not a domain error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsDomainError reports whether err carries a user-facing *Error.
func IsDomainError(err error) bool {
	return CodeOf(err) != ""
}

// NewInsufficientStock reports a rejected reservation.
func NewInsufficientStock(id ProductID, requested, available int) *Error {
	return &Error{
		Code:      CodeInsufficientStock,
		Message:   fmt.Sprintf("requested %d, only %d available", requested, available),
		ProductID: id,
		Details: map[string]string{
			"requested": fmt.Sprintf("%d", requested),
			"available": fmt.Sprintf("%d", available),
		},
	}
}

// NewInvalidQuantity reports a quantity rejected at the boundary.
func NewInvalidQuantity(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidQuantity, Message: fmt.Sprintf(format, args...)}
}

// NewUnknownProduct reports a product id missing from the catalog.
func NewUnknownProduct(id ProductID) *Error {
	return &Error{Code: CodeUnknownProduct, Message: "product not in catalog", ProductID: id}
}

// NewInvalidProduct reports a catalog record that failed validation.
func NewInvalidProduct(id ProductID, format string, args ...any) *Error {
	return &Error{Code: CodeInvalidProduct, Message: fmt.Sprintf(format, args...), ProductID: id}
}

// NewEmptyCart reports an invoice requested on an empty cart.
func NewEmptyCart(client ClientID) *Error {
	return &Error{Code: CodeEmptyCart, Message: "cart has no items", ClientID: client}
}

// NewMissingClientIdentity reports an operation that needed a bound client.
func NewMissingClientIdentity() *Error {
	return &Error{Code: CodeMissingClientIdentity, Message: "no client identity is bound; log in first"}
}

// NewConcurrentUpdate reports a unit of work abandoned after repeated
// conflicts with another execution context.
func NewConcurrentUpdate(attempts int) *Error {
	return &Error{
		Code:    CodeConcurrentUpdate,
		Message: fmt.Sprintf("gave up after %d conflicting attempts", attempts),
	}
}

// NewInvalidPaymentMethod reports a payment method other than online/phone.
func NewInvalidPaymentMethod(method string) *Error {
	return &Error{
		Code:    CodeInvalidPaymentMethod,
		Message: fmt.Sprintf("payment method %q is not one of online, phone", method),
	}
}

// NewOnlinePaymentDisabled reports an online checkout attempted while the
// administrator has disabled online payment.
func NewOnlinePaymentDisabled() *Error {
	return &Error{Code: CodeOnlinePaymentDisabled, Message: "online payment is currently disabled; order by phone"}
}
