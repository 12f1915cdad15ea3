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
	"fmt"
	"strings"
)

// ValidateTurn validates a ConversationTurn according to domain rules.
//
// Validation rules:
//   - Role must be user or assistant
//   - A user message must not be empty; an assistant answer may be
//
// The timestamp is a display string and is not parsed.
func ValidateTurn(turn ConversationTurn) error {
	if err := ValidateRole(turn.Role); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, err)
	}
	if turn.Role == RoleUser && turn.Message == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, ErrEmptyMessage)
	}
	return nil
}

// ValidateRole validates that a Role has a known value.
func ValidateRole(role Role) error {
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return nil
}

// ValidateQuery rejects queries that contain only whitespace.
func ValidateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return ErrEmptyQuery
	}
	return nil
}

// ValidateSite checks that a site resolved to a dataset identifier.
func ValidateSite(site Site) error {
	if site.Name == "" {
		return ErrUnknownSite
	}
	if strings.TrimSpace(site.DatasetID) == "" {
		return fmt.Errorf("%w: %s", ErrSiteNotConfigured, site.Name)
	}
	return nil
}
