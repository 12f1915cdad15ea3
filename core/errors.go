// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"errors"
	"fmt"
)

// Ingestion and chat errors
var (
	// ErrUnsupportedFormat indicates the file extension has no decoder.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrExtractionFailed indicates a decoder could not produce text.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrTooLarge indicates a document exceeds the size ceiling.
	ErrTooLarge = errors.New("document too large")

	// ErrUpstreamTimeout indicates the transform endpoint timed out on every attempt.
	ErrUpstreamTimeout = errors.New("upstream timeout")

	// ErrUpstream indicates the workflow or listing endpoint answered non-2xx.
	ErrUpstream = errors.New("upstream error")

	// ErrRegistration indicates the dataset endpoint refused a document.
	ErrRegistration = errors.New("dataset registration failed")

	// ErrChatRequestFailed indicates the chat endpoint answered non-2xx.
	ErrChatRequestFailed = errors.New("chat request failed")

	// ErrStreamDecodeSkipped marks a stream line that could not be decoded.
	// It is never fatal to the stream.
	ErrStreamDecodeSkipped = errors.New("stream line skipped")
)

// Configuration errors
var (
	// ErrMissingSecret indicates a required secret is not configured.
	ErrMissingSecret = errors.New("missing secret")

	// ErrSiteNotConfigured indicates a known site has no dataset identifier.
	ErrSiteNotConfigured = errors.New("site dataset not configured")

	// ErrUnknownSite indicates the site name is not in the site table.
	ErrUnknownSite = errors.New("unknown site")
)

// Domain validation errors
var (
	// ErrInvalidTurn indicates a ConversationTurn failed validation.
	ErrInvalidTurn = errors.New("invalid conversation turn")

	// ErrEmptyMessage indicates the Message field is empty.
	ErrEmptyMessage = errors.New("message cannot be empty")

	// ErrInvalidRole indicates a Role outside user/assistant.
	ErrInvalidRole = errors.New("invalid role")

	// ErrEmptyQuery indicates a chat query with no text.
	ErrEmptyQuery = errors.New("query cannot be empty")
)

// UnsupportedFormatError names the extension that has no decoder.
type UnsupportedFormatError struct {
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnsupportedFormat, e.Extension)
}

func (e *UnsupportedFormatError) Unwrap() error { return ErrUnsupportedFormat }

// ExtractionError carries the decoder failure behind ErrExtractionFailed.
type ExtractionError struct {
	Extension string
	Err       error
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s (%s)", ErrExtractionFailed, e.Extension)
	}
	return fmt.Sprintf("%s (%s): %v", ErrExtractionFailed, e.Extension, e.Err)
}

func (e *ExtractionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExtractionFailed}
	}
	return []error{ErrExtractionFailed, e.Err}
}

// TooLargeError reports the size and the ceiling that was exceeded.
type TooLargeError struct {
	Name  string
	Size  int64
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("%s: %s is %d bytes (limit %d)", ErrTooLarge, e.Name, e.Size, e.Limit)
}

func (e *TooLargeError) Unwrap() error { return ErrTooLarge }

// UpstreamError is a non-2xx answer from the workflow or listing endpoint.
// Body is surfaced verbatim.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", ErrUpstream, e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstream }

// RegistrationError is a non-2xx answer from a dataset document endpoint.
type RegistrationError struct {
	Status int
	Body   string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", ErrRegistration, e.Status, e.Body)
}

func (e *RegistrationError) Unwrap() error { return ErrRegistration }

// ChatRequestError is a non-2xx answer to the initial chat request.
type ChatRequestError struct {
	Status int
	Body   string
}

func (e *ChatRequestError) Error() string {
	return fmt.Sprintf("%s: status %d", ErrChatRequestFailed, e.Status)
}

func (e *ChatRequestError) Unwrap() error { return ErrChatRequestFailed }
