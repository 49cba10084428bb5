package conversation

import (
	"time"

	"github.com/google/uuid"

	"github.com/jinford/doc-voicebot/internal/core/ingestion"
	"github.com/jinford/doc-voicebot/internal/core/speech"
)

// Record は1回のやり取り（質問・回答・回答音声・文書メタデータ）を表す
type Record struct {
	ID        uuid.UUID
	Query     string
	Answer    string
	Audio     speech.Audio
	Document  ingestion.FileMeta // やり取り時点で有効だった文書
	CreatedAt time.Time
}
