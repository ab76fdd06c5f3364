package models

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// MessageCursor points just past a message in (created_at, id) order.
type MessageCursor struct {
	CreatedAt time.Time
	ID        int64
}

func CursorAfter(message ChatMessage) MessageCursor {
	return MessageCursor{CreatedAt: message.CreatedAt, ID: message.ID}
}

func (c MessageCursor) Encode() string {
	raw := strconv.FormatInt(c.CreatedAt.UTC().UnixNano(), 10) + ":" + strconv.FormatInt(c.ID, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeMessageCursor(value string) (*MessageCursor, error) {
	if value == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	nanosPart, idPart, ok := strings.Cut(string(raw), ":")
	if !ok {
		return nil, ErrInvalidCursor
	}
	nanos, err := strconv.ParseInt(nanosPart, 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return nil, ErrInvalidCursor
	}

	return &MessageCursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: id}, nil
}
