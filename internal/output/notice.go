package output

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// NoticeType is the event type carried by artifact notices.
const NoticeType = "artifact.written"

// Notice announces one written artifact to downstream consumers.
type Notice struct {
	RunID       string    `json:"run_id"`
	Year        int       `json:"year"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256"`
	PublishedAt time.Time `json:"published_at"`
}

// NewNotices builds one notice per artifact.
func NewNotices(runID string, year int, artifacts []Artifact, at time.Time) []Notice {
	out := make([]Notice, len(artifacts))
	for i, a := range artifacts {
		sum := sha256.Sum256(a.Data)
		out[i] = Notice{
			RunID:       runID,
			Year:        year,
			Name:        a.Name,
			Size:        a.Size,
			SHA256:      hex.EncodeToString(sum[:]),
			PublishedAt: at.UTC(),
		}
	}
	return out
}
