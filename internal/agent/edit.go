package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ziadkadry99/crm-agent/internal/audit"
	"github.com/ziadkadry99/crm-agent/internal/llm"
	"github.com/ziadkadry99/crm-agent/internal/records"
)

// Edit asks the model to turn instruction into a partial update of the
// interaction and applies it. Unreadable model output leaves the record
// untouched. actor is recorded in the audit trail and may be empty.
func (p *Pipeline) Edit(ctx context.Context, interactionID, instruction, actor string) *EditResult {
	log := p.logger.Named("edit").With(zap.String("interaction_id", interactionID))

	current, err := p.store.GetInteraction(ctx, interactionID)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return editFailure(KindNotFound, "Interaction not found")
		}
		log.Error("loading interaction", zap.Error(err))
		return editFailure(KindPersistence, err.Error())
	}

	if strings.TrimSpace(instruction) == "" {
		return editFailure(KindInvalidInput, "edit request is required")
	}
	if err := llm.CheckCredential(p.provider); err != nil {
		return editFailure(KindCredentialMissing, p.credentialFailure(err).Error)
	}

	recordJSON, err := json.Marshal(current)
	if err != nil {
		return editFailure(KindPersistence, fmt.Sprintf("serialising interaction: %v", err))
	}

	resp, err := p.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{llm.UserMessage(editPrompt(string(recordJSON), instruction))},
		JSONMode: true,
	})
	if err != nil {
		log.Warn("edit completion failed", zap.Error(err))
		return editFailure(KindProvider, err.Error())
	}

	patch, err := parseEditPatch(resp.Content)
	if err != nil {
		log.Warn("edit output unreadable", zap.Error(err))
		return editFailure(KindParse, "Could not parse edit request")
	}

	changes := records.FilterPatch(patch)
	updated, err := p.store.UpdateInteraction(ctx, interactionID, patch)
	if err != nil {
		switch {
		case errors.Is(err, records.ErrInvalidPatch):
			log.Warn("edit produced invalid values", zap.Error(err))
			return editFailure(KindParse, "Could not parse edit request: "+err.Error())
		case errors.Is(err, records.ErrNotFound):
			return editFailure(KindNotFound, "Interaction not found")
		default:
			log.Error("applying edit", zap.Error(err))
			return editFailure(KindPersistence, err.Error())
		}
	}

	p.record(ctx, audit.Entry{
		EntityType: audit.EntityInteraction,
		EntityID:   interactionID,
		Action:     audit.ActionUpdated,
		Actor:      actor,
		Diff:       changes,
	})
	log.Info("interaction edited", zap.Int("fields", len(changes)))

	return &EditResult{Success: true, Interaction: updated, Changes: changes}
}

// parseEditPatch reads the model's partial-update object. A lone "updates"
// wrapper object is unwrapped.
func parseEditPatch(content string) (map[string]any, error) {
	obj, err := decodeObject(content)
	if err != nil {
		return nil, err
	}
	if len(obj) == 1 {
		if inner, ok := obj["updates"].(map[string]any); ok {
			return inner, nil
		}
	}
	return obj, nil
}

func editFailure(kind ErrorKind, msg string) *EditResult {
	return &EditResult{Success: false, Error: msg, ErrorKind: kind}
}
