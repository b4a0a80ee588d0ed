package models

import (
	"fmt"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// RecordIDString safely extracts the string ID from a SurrealDB RecordID.
// Returns an error if the ID is not a string type.
func RecordIDString(id surrealmodels.RecordID) (string, error) {
	s, ok := id.ID.(string)
	if !ok {
		return "", fmt.Errorf("unexpected ID type: %T (expected string)", id.ID)
	}
	return s, nil
}

// UserRecord builds a user record id from its string part.
func UserRecord(id string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID("user", id)
}

// ConversationRecord builds a conversation record id from its string part.
func ConversationRecord(id string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID("conversation", id)
}
