package feed

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/plutoid/plutoid/docstore"
)

type cursorPayload struct {
	Sec  int64  `json:"s"`
	Nsec int    `json:"n"`
	Id   string `json:"id"`
}

// EncodeCursor turns a store position into an opaque token.
func EncodeCursor(p docstore.Position) string {
	b, _ := json.Marshal(cursorPayload{
		Sec:  p.CreatedAt.Unix(),
		Nsec: p.CreatedAt.Nanosecond(),
		Id:   p.Id,
	})
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor is the inverse of EncodeCursor. The empty cursor decodes to
// nil, meaning the first page.
func DecodeCursor(cursor string) (*docstore.Position, error) {
	if cursor == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	var p cursorPayload
	if err := json.Unmarshal(b, &p); err != nil || p.Id == "" {
		return nil, ErrInvalidCursor
	}
	return &docstore.Position{
		CreatedAt: time.Unix(p.Sec, int64(p.Nsec)).UTC(),
		Id:        p.Id,
	}, nil
}
