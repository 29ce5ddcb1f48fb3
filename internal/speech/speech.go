// Package speech defines the collaborator boundary for the voice creation
// flow: transcribing audio and extracting a candidate invoice ID from the
// transcript. Concrete AI clients live outside this repository; the server
// falls back to generated invoice IDs when no transcriber is configured.
package speech

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
)

// Transcriber converts recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader) (string, error)
}

// Extractor pulls a candidate invoice ID out of transcribed text. It returns
// an empty string when no ID could be found.
type Extractor interface {
	ExtractInvoiceID(ctx context.Context, text string) (string, error)
}

// NewVoiceInvoiceID generates an invoice ID for the voice flow's fallback
// mode, of the form INV-VOICE-<8 hex chars>.
func NewVoiceInvoiceID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "INV-VOICE-" + strings.ToUpper(id[:8])
}
