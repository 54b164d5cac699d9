package model

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// Kind classifies a failure of the generative API so retry policies can
// dispatch on it instead of matching error text.
type Kind int

const (
	KindOther Kind = iota
	KindRateLimited
	KindInvalidCredential
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidCredential:
		return "invalid_credential"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "other"
	}
}

// Retryable reports whether switching credentials may help.
func (k Kind) Retryable() bool {
	return k == KindRateLimited || k == KindInvalidCredential
}

// Error tags an underlying error with its Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

var ErrNoKeys = errors.New("no gemini api keys configured")

// Classify maps an error returned by the Gemini collaborator to a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyAPI(apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return classifyAPI(*apiErrPtr)
	}
	return KindOther
}

func classifyAPI(e genai.APIError) Kind {
	msg := strings.ToLower(e.Message)
	switch {
	case e.Code == http.StatusTooManyRequests || e.Status == "RESOURCE_EXHAUSTED":
		return KindRateLimited
	case e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden,
		e.Status == "PERMISSION_DENIED" || e.Status == "UNAUTHENTICATED",
		strings.Contains(msg, "api key not valid"), strings.Contains(msg, "api key expired"):
		return KindInvalidCredential
	case e.Code == http.StatusBadRequest &&
		(strings.Contains(msg, "mime") || strings.Contains(msg, "unsupported") || strings.Contains(msg, "not supported")):
		return KindInvalidInput
	}
	return KindOther
}
