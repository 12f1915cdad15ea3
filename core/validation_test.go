package core

import (
	"errors"
	"testing"
)

func TestValidateTurn(t *testing.T) {
	tests := []struct {
		name    string
		turn    ConversationTurn
		wantErr error
	}{
		{
			name:    "valid user turn",
			turn:    ConversationTurn{Role: RoleUser, Message: "Hello", Timestamp: "2025-01-01 10:00"},
			wantErr: nil,
		},
		{
			name:    "valid assistant turn",
			turn:    ConversationTurn{Role: RoleAssistant, Message: "Hi there"},
			wantErr: nil,
		},
		{
			name:    "empty user message",
			turn:    ConversationTurn{Role: RoleUser, Message: ""},
			wantErr: ErrEmptyMessage,
		},
		{
			name:    "empty assistant answer",
			turn:    ConversationTurn{Role: RoleAssistant, Message: ""},
			wantErr: nil,
		},
		{
			name:    "invalid role",
			turn:    ConversationTurn{Role: Role("system"), Message: "Hello"},
			wantErr: ErrInvalidRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTurn(tt.turn)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateTurn() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateTurn() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidTurn) {
				t.Errorf("ValidateTurn() error = %v, should wrap ErrInvalidTurn", err)
			}
		})
	}
}

func TestValidateQuery(t *testing.T) {
	if err := ValidateQuery("pump pressure?"); err != nil {
		t.Errorf("ValidateQuery() error = %v, want nil", err)
	}
	for _, q := range []string{"", "   ", "\n\t"} {
		if err := ValidateQuery(q); !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("ValidateQuery(%q) error = %v, want ErrEmptyQuery", q, err)
		}
	}
}

func TestValidateSite(t *testing.T) {
	tests := []struct {
		name    string
		site    Site
		wantErr error
	}{
		{"configured", Site{Name: "GS동해전력", DatasetID: "ds-1"}, nil},
		{"missing dataset", Site{Name: "GS동해전력"}, ErrSiteNotConfigured},
		{"blank dataset", Site{Name: "GS동해전력", DatasetID: "  "}, ErrSiteNotConfigured},
		{"no name", Site{}, ErrUnknownSite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSite(tt.site)
			if tt.wantErr == nil && err != nil {
				t.Errorf("ValidateSite() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateSite() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
