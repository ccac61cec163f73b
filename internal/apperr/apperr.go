package apperr

import (
	"errors"
	"net/http"
	"strconv"
)

// Kind is the coarse failure class a caller can branch on.
type Kind string

const (
	KindInvalidRequest Kind = "INVALID_REQUEST"
	KindNotFound       Kind = "NOT_FOUND"
	KindConflict       Kind = "CONFLICT"
	KindUnavailable    Kind = "UNAVAILABLE"
	KindInternal       Kind = "INTERNAL"
)

// Error carries a stable machine-readable code. Two errors with the same code
// match under errors.Is regardless of message or cause.
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Code
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidRequest      = &Error{Kind: KindInvalidRequest, Code: "invalid_request", Msg: "invalid request"}
	ErrUserNotFound        = &Error{Kind: KindNotFound, Code: "user_not_found", Msg: "user not found"}
	ErrProductNotFound     = &Error{Kind: KindNotFound, Code: "product_not_found", Msg: "product not found"}
	ErrOrderNotFound       = &Error{Kind: KindNotFound, Code: "order_not_found", Msg: "order not found"}
	ErrPaymentNotFound     = &Error{Kind: KindNotFound, Code: "payment_not_found", Msg: "no payment to refund"}
	ErrRouteNotFound       = &Error{Kind: KindNotFound, Code: "route_not_found", Msg: "route not found"}
	ErrInsufficientStock   = &Error{Kind: KindConflict, Code: "insufficient_stock", Msg: "insufficient stock"}
	ErrInsufficientBalance = &Error{Kind: KindConflict, Code: "insufficient_balance", Msg: "insufficient balance"}
	ErrRequestInProgress   = &Error{Kind: KindConflict, Code: "request_in_progress", Msg: "request with this idempotency key is in progress"}
	ErrUnavailable         = &Error{Kind: KindUnavailable, Code: "downstream_unavailable", Msg: "downstream unavailable"}
	ErrInternal            = &Error{Kind: KindInternal, Code: "internal", Msg: "internal error"}
)

var byCode = map[string]*Error{}

func init() {
	for _, e := range []*Error{
		ErrInvalidRequest, ErrUserNotFound, ErrProductNotFound, ErrOrderNotFound, ErrPaymentNotFound, ErrRouteNotFound,
		ErrInsufficientStock, ErrInsufficientBalance, ErrRequestInProgress,
		ErrUnavailable, ErrInternal,
	} {
		byCode[e.Code] = e
	}
}

// New returns a copy of base with a specific message.
func New(base *Error, msg string) error {
	return &Error{Kind: base.Kind, Code: base.Code, Msg: msg}
}

// Wrap returns a copy of base that keeps err as its cause.
func Wrap(base *Error, err error, msg string) error {
	if msg == "" {
		msg = base.Msg
	}
	return &Error{Kind: base.Kind, Code: base.Code, Msg: msg, Err: err}
}

// FromCode resolves a wire code back to its sentinel.
func FromCode(code string) (*Error, bool) {
	e, ok := byCode[code]
	return e, ok
}

// As returns the outermost *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the kind of err. Errors outside the taxonomy are internal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// CodeOf reports the machine-readable code of err.
func CodeOf(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ErrInternal.Code
}

// HTTPStatus maps a kind onto the status code used on the wire.
func HTTPStatus(k Kind) int {
	switch k {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// KindForStatus is the inverse of HTTPStatus, used when a peer answers
// without a recognisable error body.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return KindInvalidRequest
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusTooManyRequests || status >= 500:
		return KindUnavailable
	default:
		return KindInternal
	}
}

// Body is the JSON error envelope every service writes and every client reads.
type Body struct {
	Error BodyError `json:"error"`
}

type BodyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ToBody renders err for the wire. Internal errors and errors outside the
// taxonomy never expose their cause.
func ToBody(err error) (int, Body) {
	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError, Body{Error: BodyError{Code: ErrInternal.Code, Message: ErrInternal.Msg}}
	}
	msg := e.Error()
	if e.Kind == KindInternal {
		msg = e.Msg
	}
	return HTTPStatus(e.Kind), Body{Error: BodyError{Code: e.Code, Message: msg}}
}

// FromBody turns a peer's error response back into an *Error. Unknown codes
// keep the code but take their kind from the status.
func FromBody(status int, b Body) error {
	if base, ok := FromCode(b.Error.Code); ok {
		return New(base, b.Error.Message)
	}
	code := b.Error.Code
	if code == "" {
		code = "http_" + strconv.Itoa(status)
	}
	return &Error{Kind: KindForStatus(status), Code: code, Msg: b.Error.Message}
}
