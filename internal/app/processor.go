package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/curanote/curanote/internal/observe"
	"github.com/curanote/curanote/internal/offline"
	"github.com/curanote/curanote/internal/record"
	"github.com/curanote/curanote/internal/remote"
)

// draftPayload is the CreateEntry payload built from one processed clip.
type draftPayload struct {
	ResidentID         string            `json:"residentId"`
	DraftID            string            `json:"draftId"`
	Record             record.CareRecord `json:"record"`
	RawTranscript      string            `json:"rawTranscript"`
	PolishedTranscript string            `json:"polishedTranscript"`
	Provider           string            `json:"provider,omitempty"`
	Language           string            `json:"language,omitempty"`
}

// processClip is the audio queue's [offline.Processor]: it runs the clip
// through the normalization pipeline and submits the resulting draft record
// as a CreateEntry action. The action queue defers the submission when the
// backend is unreachable, so a processed clip is never lost.
func (a *App) processClip(ctx context.Context, clip offline.PendingAudio) (string, error) {
	ctx, span := observe.StartSpan(ctx, "queue.process_clip")
	defer span.End()

	res, err := a.pipe.Normalize(ctx, clip.Audio, clip.MimeType)
	if err != nil {
		return "", fmt.Errorf("app: process clip %s: %w", clip.ID, err)
	}

	draftID := clip.DraftID
	if draftID == "" {
		draftID = uuid.NewString()
	}

	payload, err := json.Marshal(draftPayload{
		ResidentID:         clip.ResidentID,
		DraftID:            draftID,
		Record:             res.Record,
		RawTranscript:      res.RawTranscript,
		PolishedTranscript: res.PolishedTranscript,
		Provider:           res.Provider,
		Language:           res.Language,
	})
	if err != nil {
		return "", fmt.Errorf("app: encode draft payload: %w", err)
	}

	if err := a.actions.Submit(ctx, offline.PendingAction{
		Type:    remote.ActionCreateEntry,
		Payload: payload,
	}); err != nil {
		return "", fmt.Errorf("app: submit draft for clip %s: %w", clip.ID, err)
	}

	observe.Logger(ctx).Info("clip normalized into draft record",
		"clip", clip.ID,
		"draft", draftID,
		"resident", clip.ResidentID,
		"provider", res.Provider)
	return draftID, nil
}
