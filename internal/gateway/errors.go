package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed exchange with the remote service.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindNotFound
	KindValidation
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not found"
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	}
	return "unknown"
}

// Error is the only error type returned by gateway operations.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	// Detail is the server-provided explanation, kept verbatim.
	Detail string
	// Generation is the credential generation the request was issued with.
	Generation uint64
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any gateway error of the same kind, so callers can write
// errors.Is(err, gateway.ErrUnauthorized).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrNetwork      = &Error{Kind: KindNetwork}
	ErrUnknown      = &Error{Kind: KindUnknown}
)

// KindOf returns the classification of err. Errors that did not come from
// the gateway are Unknown.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindUnknown
}

// IssuedWith returns the credential generation a failed request carried, or
// 0 when err did not come from a request.
func IssuedWith(err error) uint64 {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Generation
	}
	return 0
}

// Describe turns a classified failure into a message fit for the user.
func Describe(err error) string {
	var ge *Error
	if !errors.As(err, &ge) {
		return "something went wrong, please try again later"
	}
	switch ge.Kind {
	case KindValidation:
		if ge.Detail != "" {
			return ge.Detail
		}
		return "the request was rejected by the server"
	case KindUnauthorized:
		return "your session has expired, please log in again"
	case KindNotFound:
		return "the requested resource was not found"
	case KindNetwork:
		return "could not reach the monitoring service, check your connection and try again"
	}
	return "the monitoring service returned an unexpected response, please try again later"
}

// classify maps a non-2xx response onto the taxonomy.
func classify(op string, status int, body []byte) *Error {
	e := &Error{Op: op, Status: status, Detail: parseDetail(body)}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindUnauthorized
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusBadRequest, status == http.StatusConflict, status == http.StatusUnprocessableEntity:
		e.Kind = KindValidation
	default:
		e.Kind = KindUnknown
	}
	return e
}

type validationItem struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// parseDetail extracts the FastAPI-style "detail" field, which is either a
// string or a list of {loc, msg} items.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}

	var items []validationItem
	if err := json.Unmarshal(envelope.Detail, &items); err != nil {
		return ""
	}
	msgs := make([]string, 0, len(items))
	for _, it := range items {
		if it.Msg == "" {
			continue
		}
		if n := len(it.Loc); n > 0 {
			if field, ok := it.Loc[n-1].(string); ok && field != "body" {
				msgs = append(msgs, field+": "+it.Msg)
				continue
			}
		}
		msgs = append(msgs, it.Msg)
	}
	return strings.Join(msgs, "; ")
}
