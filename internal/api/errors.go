// Copyright (c) 2026 Marta Villanueva <marta@insightlab.dev>.
// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a TransferError so callers can branch on the failure mode
// without string matching.
type Kind int

const (
	KindTransport Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindServer
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindBadRequest:
		return "bad request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	case KindServer:
		return "server"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// TransferError is the typed failure returned by every gateway call. Status
// is 0 for transport and decode failures.
type TransferError struct {
	Kind    Kind
	Status  int
	Path    string
	Message string
	Err     error
}

func (e *TransferError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: HTTP %d on %s: %s", e.Kind, e.Status, e.Path, e.Message)
	}
	return fmt.Sprintf("%s failure on %s: %s", e.Kind, e.Path, e.Message)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// kindForStatus maps an HTTP status to a Kind.
func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusBadRequest:
		return KindBadRequest
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 500:
		return KindServer
	default:
		return KindServer
	}
}

// ErrorContext carries the details needed to produce an actionable message
// for the user when a gateway call fails.
type ErrorContext struct {
	Host      string
	AppID     string
	Operation string
	Resource  string
}

// Friendly wraps a gateway error with guidance the user can act on. Unknown
// errors pass through wrapped with the operation only.
func Friendly(err error, ectx ErrorContext) error {
	var terr *TransferError
	if !errors.As(err, &terr) {
		return fmt.Errorf("failed to %s: %w", ectx.Operation, err)
	}

	switch terr.Kind {
	case KindUnauthorized:
		return fmt.Errorf(
			"failed to %s: the API token was rejected by %s. Run `insightctl login` or set INSIGHTCTL_TOKEN: %w",
			ectx.Operation, ectx.Host, err)
	case KindForbidden:
		return fmt.Errorf(
			"failed to %s: the token is valid but has no access to %s %s: %w",
			ectx.Operation, ectx.Resource, ectx.AppID, err)
	case KindNotFound:
		return fmt.Errorf(
			"failed to %s: %s %s does not exist on %s (check the id): %w",
			ectx.Operation, ectx.Resource, ectx.AppID, ectx.Host, err)
	case KindTransport:
		return fmt.Errorf(
			"failed to %s: could not reach %s: %w",
			ectx.Operation, ectx.Host, err)
	default:
		return fmt.Errorf("failed to %s: %w", ectx.Operation, err)
	}
}
