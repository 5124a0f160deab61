package handler

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ordinaut/ordinaut/internal/store"
)

// wireCursor is the opaque-to-callers wire form of store.Cursor.
type wireCursor struct {
	CreatedAt time.Time `json:"c"`
	ID        string    `json:"i"`
}

func decodeCursor(s string) (*store.Cursor, error) {
	if s == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var c wireCursor
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cursor: %w", err)
	}
	return &store.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}, nil
}

func encodeCursor(createdAt time.Time, id string) string {
	b, _ := json.Marshal(wireCursor{CreatedAt: createdAt, ID: id})
	return base64.RawURLEncoding.EncodeToString(b)
}

// clampLimit applies the list-endpoint default/ceiling the teacher's
// usecase layer applies before querying.
func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
