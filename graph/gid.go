package graph

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/heartmarshall/gqlcrud/domain"
)

// EncodeGID builds the opaque global ID of an object: base64("Type:uuid").
// Every id field in the schema carries a global ID, so clients can pass any
// object back into id-typed mutation inputs unambiguously.
func EncodeGID(typeName string, id uuid.UUID) string {
	return base64.StdEncoding.EncodeToString([]byte(typeName + ":" + id.String()))
}

// DecodeGID parses a global ID and returns the type name and primary key.
// A bare UUID is also accepted and returned with an empty type name, which
// callers treat as "expected type".
func DecodeGID(gid string) (string, uuid.UUID, error) {
	if id, err := uuid.Parse(gid); err == nil {
		return "", id, nil
	}

	raw, err := base64.StdEncoding.DecodeString(gid)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("malformed global ID %q: %w", gid, domain.ErrValidation)
	}

	typeName, idStr, ok := strings.Cut(string(raw), ":")
	if !ok {
		return "", uuid.Nil, fmt.Errorf("malformed global ID %q: %w", gid, domain.ErrValidation)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("global ID %q: bad UUID: %w", gid, domain.ErrValidation)
	}

	return typeName, id, nil
}

// decodeTypedGID decodes a global ID and enforces the expected type.
func decodeTypedGID(gid string, wantType string) (uuid.UUID, error) {
	typeName, id, err := DecodeGID(gid)
	if err != nil {
		return uuid.Nil, err
	}
	if typeName != "" && typeName != wantType {
		return uuid.Nil, fmt.Errorf("global ID is a %s, expected %s: %w", typeName, wantType, domain.ErrValidation)
	}
	return id, nil
}
