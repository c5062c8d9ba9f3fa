// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"errors"
	"net/http"
)

// Kind classifies a chat failure for HTTP mapping and metrics.
type Kind string

const (
	// KindAuthRequired means the credential is missing, rejected, or could
	// not be refreshed. The client must re-authenticate.
	KindAuthRequired Kind = "auth_required"

	// KindNotFound means the folder id resolved to nothing.
	KindNotFound Kind = "not_found"

	// KindRetrievalError means context could not be computed at all
	// (embedding failure). Distinct from an empty retrieval, which is a
	// normal degraded result.
	KindRetrievalError Kind = "retrieval_error"

	// KindCompletionError means the completion provider failed after
	// retries were exhausted.
	KindCompletionError Kind = "completion_error"

	// KindInvalidInput means the request was malformed.
	KindInvalidInput Kind = "invalid_input"

	// KindUpstreamUnavailable means a dependency could not be reached.
	KindUpstreamUnavailable Kind = "upstream_unavailable"

	// KindTimeout means the request's overall deadline elapsed before the
	// pipeline finished. Distinct from upstream failures so callers can
	// tell a slow request from a broken dependency.
	KindTimeout Kind = "timeout"

	// KindInternal covers everything else.
	KindInternal Kind = "internal"
)

// ChatError is the single error type crossing the orchestrator boundary.
// Handlers map it to an HTTP status; metrics label by Kind.
type ChatError struct {
	Kind    Kind
	Message string
	cause   error
}

// NewChatError wraps a cause with a classification and client-safe
// message. The cause is preserved for logging but never serialized to
// the client.
func NewChatError(kind Kind, message string, cause error) *ChatError {
	return &ChatError{Kind: kind, Message: message, cause: cause}
}

// Error implements the error interface.
func (e *ChatError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause.
func (e *ChatError) Unwrap() error { return e.cause }

// HTTPStatus maps the error kind to a response status code.
func (e *ChatError) HTTPStatus() int {
	switch e.Kind {
	case KindAuthRequired:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindRetrievalError:
		return http.StatusBadGateway
	case KindCompletionError:
		return http.StatusBadGateway
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// AsChatError extracts a *ChatError from an error chain. Returns a
// KindInternal wrapper when the error is not classified, so handlers
// always have a status and a client-safe message to work with.
func AsChatError(err error) *ChatError {
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce
	}
	return NewChatError(KindInternal, "internal error", err)
}
