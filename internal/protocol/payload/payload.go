// Package payload assembles director->pilot instruction frames.
package payload

import (
	"encoding/base64"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// TimestampLayout is ISO-8601 UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Payload is one outbound instruction frame. Image is nil on the wire when
// no attachment is present.
type Payload struct {
	Text      string  `json:"text"`
	Image     *string `json:"image"`
	Timestamp string  `json:"timestamp"`
}

// Build assembles a payload stamped with the current time. When imagePath is
// set and readable the file content is attached base64-encoded; an unreadable
// path degrades to a nil image and never blocks the text.
func Build(text, imagePath string) Payload {
	return buildAt(text, imagePath, time.Now())
}

func buildAt(text, imagePath string, now time.Time) Payload {
	p := Payload{
		Text:      text,
		Timestamp: Timestamp(now),
	}
	path := strings.TrimSpace(imagePath)
	if path == "" {
		return p
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Str("path", path).Err(err).Msg("payload attachment unreadable, sending without image")
		return p
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	p.Image = &encoded
	return p
}

// Timestamp formats t in the wire's ISO-8601 layout.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
