/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package errs

import (
    "errors"
    "fmt"
)

// ErrEmptyResult means no issue had reportable activity in the window.
var ErrEmptyResult = errors.New("nothing found")

type ConfigError struct {
    Key    string
    Reason string
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config: %s: %s", e.Key, e.Reason) }

// InputValidationError carries a message meant for the chat user.
type InputValidationError struct {
    Reason string
}

func (e *InputValidationError) Error() string { return e.Reason }

func Invalid(reason string) error { return &InputValidationError{Reason: reason} }

type UpstreamKind int

const (
    UpstreamGeneric UpstreamKind = iota
    UpstreamUnreachable
    UpstreamUnauthorized
)

func (k UpstreamKind) String() string {
    switch k {
    case UpstreamUnreachable: return "unreachable"
    case UpstreamUnauthorized: return "unauthorized"
    default: return "generic"
    }
}

// UpstreamError wraps a tracker or chat failure. Err may hold response bodies
// and is only for server-side logs; UserMessage is safe to show in chat.
// Detail holds the tracker's own errorMessages, which never carry credentials.
type UpstreamError struct {
    Service string
    Kind    UpstreamKind
    Status  int
    Detail  string
    Err     error
}

func (e *UpstreamError) Error() string {
    if e.Status > 0 { return fmt.Sprintf("%s: %s (status=%d): %v", e.Service, e.Kind, e.Status, e.Err) }
    return fmt.Sprintf("%s: %s: %v", e.Service, e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) UserMessage() string {
    switch e.Kind {
    case UpstreamUnreachable:
        return "ERROR: can not connect to " + e.Service + ", check the host/url"
    case UpstreamUnauthorized:
        return "ERROR: unauthorized, can not connect to " + e.Service + ", check the credentials"
    default:
        if e.Detail != "" { return "ERROR: " + e.Detail }
        if e.Status > 0 { return fmt.Sprintf("ERROR: %s request failed (status %d)", e.Service, e.Status) }
        return "ERROR: " + e.Service + " request failed"
    }
}

// UserMessage maps any pipeline error to the text shown in chat.
func UserMessage(err error) string {
    if err == nil { return "" }
    var iv *InputValidationError
    if errors.As(err, &iv) { return iv.Reason }
    var up *UpstreamError
    if errors.As(err, &up) { return up.UserMessage() }
    if errors.Is(err, ErrEmptyResult) { return "Nope, nothing found for those dates." }
    return "ERROR: something went wrong, check the bot logs"
}
