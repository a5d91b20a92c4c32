package domain

import (
	"encoding/json"
	"time"
)

// StoredSchema is a persisted schema attachment. Definition is in the
// source form the named adapter understands. An empty Selector marks the
// base schema of the collection.
type StoredSchema struct {
	Collection string
	Adapter    string
	Selector   map[string]any
	Definition json.RawMessage
	Replace    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
