package domain

import (
	"time"

	"github.com/google/uuid"
)

// LoadSource identifies where a dataset came from.
type LoadSource string

const (
	LoadSourceFile   LoadSource = "file"
	LoadSourceUpload LoadSource = "upload"
)

// LoadLogEntry records one dataset load attempt.
type LoadLogEntry struct {
	ID           uuid.UUID  `json:"id"`
	Source       LoadSource `json:"source"`
	FileName     string     `json:"file_name"`
	Rows         int        `json:"rows"`
	Columns      int        `json:"columns"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewLoadLogEntry stamps a new entry with an id and creation time.
func NewLoadLogEntry(source LoadSource, fileName string, rows, columns int, err error) LoadLogEntry {
	entry := LoadLogEntry{
		ID:        uuid.New(),
		Source:    source,
		FileName:  fileName,
		Rows:      rows,
		Columns:   columns,
		CreatedAt: time.Now(),
	}
	if err != nil {
		msg := err.Error()
		entry.ErrorMessage = &msg
	}
	return entry
}

// Failed reports whether the load attempt failed.
func (e LoadLogEntry) Failed() bool {
	return e.ErrorMessage != nil
}
