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

package storage

import (
	"fmt"

	"github.com/poiesic/plantdesk/core"
)

// MarshalConversation serializes conversation metadata. Turns are stored
// under their own keys and are never part of the encoded value.
func MarshalConversation(conversation *core.Conversation) []byte {
	meta := *conversation
	meta.Turns = nil
	buf := make([]byte, core.ConversationMUS.Size(meta))
	core.ConversationMUS.Marshal(meta, buf)
	return buf
}

// UnmarshalConversation deserializes conversation metadata.
func UnmarshalConversation(data []byte) (*core.Conversation, error) {
	conversation, _, err := core.ConversationMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: conversation: %w", ErrSerializationFailed, err)
	}
	conversation.Turns = nil
	return &conversation, nil
}

// MarshalTurn serializes a ConversationTurn.
func MarshalTurn(turn core.ConversationTurn) []byte {
	buf := make([]byte, core.ConversationTurnMUS.Size(turn))
	core.ConversationTurnMUS.Marshal(turn, buf)
	return buf
}

// UnmarshalTurn deserializes a ConversationTurn.
func UnmarshalTurn(data []byte) (core.ConversationTurn, error) {
	turn, _, err := core.ConversationTurnMUS.Unmarshal(data)
	if err != nil {
		return core.ConversationTurn{}, fmt.Errorf("%w: turn: %w", ErrSerializationFailed, err)
	}
	return turn, nil
}

// MarshalIngestRecord serializes an IngestRecord.
func MarshalIngestRecord(record *core.IngestRecord) []byte {
	buf := make([]byte, core.IngestRecordMUS.Size(*record))
	core.IngestRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalIngestRecord deserializes an IngestRecord.
func UnmarshalIngestRecord(data []byte) (*core.IngestRecord, error) {
	record, _, err := core.IngestRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: ingest record: %w", ErrSerializationFailed, err)
	}
	return &record, nil
}
