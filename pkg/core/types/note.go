package types

import "time"

// Note is one persisted question/answer exchange. Notes are immutable once
// created and are only ever removed by a bulk clear of the store.
type Note struct {
	Timestamp time.Time `json:"timestamp"`
	Input     string    `json:"input"`
	Response  string    `json:"response"`
}
