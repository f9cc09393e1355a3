package updater

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/recallhq/deepmemory/internal/models"
)

// TranscriptHash is the deterministic hash over the serialized messages that
// drives the idempotency check.
func TranscriptHash(messages []models.Message) string {
	data, _ := json.Marshal(messages)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// MemoryID derives the memory's identity from its scope and content hash.
// The same draft in the same session always maps to the same UUID, which is
// what makes the vector and graph writes idempotent: a crash between the two
// stores is repaired by replaying the update.
func MemoryID(namespace, sessionID, contentHash string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("memory/"+namespace+"/"+sessionID+"/"+contentHash)).String()
}

// EventID derives a deterministic identity for an extracted event.
func EventID(namespace, sessionID string, e models.ExtractedEvent) string {
	key := "event/" + namespace + "/" + sessionID + "/" + string(e.Type) + "/" + e.Summary
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}
