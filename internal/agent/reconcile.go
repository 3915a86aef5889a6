package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ziadkadry99/crm-agent/internal/audit"
	"github.com/ziadkadry99/crm-agent/internal/records"
)

// reconcile binds the draft to an HCP and persists the interaction. It runs
// after either pipeline; its failures are terminal.
func (r *run) reconcile(ctx context.Context) StageResult {
	d := r.state.Extracted

	hcpID, err := r.resolveHCP(ctx, d)
	if err != nil {
		return terminate(storeErrorKind(err), fmt.Errorf("resolving hcp: %w", err))
	}

	payload := buildInteraction(d, hcpID, r.repID, r.state.Input(), r.log)
	it, err := r.p.store.CreateInteraction(ctx, payload)
	if err != nil {
		return terminate(storeErrorKind(err), fmt.Errorf("saving interaction: %w", err))
	}

	r.interaction = it
	r.state.InteractionID = it.ID
	r.state.Stage = StagePersisted

	r.p.record(ctx, audit.Entry{
		EntityType: audit.EntityInteraction,
		EntityID:   it.ID,
		Action:     audit.ActionCreated,
		Actor:      r.repID,
		Diff: map[string]any{
			"source":    "agent",
			"pipeline":  string(r.path),
			"hcp_id":    it.HCPID,
			"sentiment": it.Sentiment,
		},
	})
	r.log.Info("interaction persisted",
		zap.String("interaction_id", it.ID),
		zap.String("hcp_id", hcpID),
	)
	return proceed()
}

// resolveHCP returns the id of the first HCP whose name contains the
// extracted name, creating one when nothing matches. An empty name binds no
// HCP.
func (r *run) resolveHCP(ctx context.Context, d ExtractedDraft) (string, error) {
	name := strings.TrimSpace(d.HCPName)
	if name == "" {
		return "", nil
	}

	matches, err := r.p.store.SearchHCPByName(ctx, name, 1)
	if err != nil {
		return "", err
	}
	if len(matches) > 0 {
		r.log.Debug("reusing hcp", zap.String("hcp_id", matches[0].ID), zap.String("name", matches[0].Name))
		return matches[0].ID, nil
	}

	h, err := r.p.store.CreateHCP(ctx, records.HCPCreate{
		Name:         name,
		Title:        d.Title,
		Speciality:   d.Speciality,
		Organisation: d.Organisation,
	})
	if err != nil {
		return "", err
	}

	r.p.record(ctx, audit.Entry{
		EntityType: audit.EntityHCP,
		EntityID:   h.ID,
		Action:     audit.ActionCreated,
		Actor:      r.repID,
		Diff:       map[string]any{"name": h.Name, "source": "agent"},
	})
	r.log.Info("hcp created", zap.String("hcp_id", h.ID), zap.String("name", h.Name))
	return h.ID, nil
}

// buildInteraction maps the draft onto a composite create payload.
func buildInteraction(d ExtractedDraft, hcpID, repID, raw string, log *zap.Logger) records.InteractionCreate {
	in := records.InteractionCreate{
		HCPID:     hcpID,
		RepID:     repID,
		Mode:      records.ModeConversational,
		Summary:   d.Summary,
		Topics:    append([]string{}, d.Topics...),
		Outcome:   d.Outcome,
		SourceRaw: raw,
		Materials: []records.Material{},
		Samples:   []records.Sample{},
		FollowUps: []records.FollowUp{},
	}

	if d.Sentiment != "" {
		in.Sentiment = clampSentiment(d.Sentiment)
	}

	if d.Datetime != "" {
		if t, ok := records.ParseDatetime(d.Datetime); ok {
			in.Datetime = &t
		} else {
			log.Debug("dropping unparseable datetime", zap.String("datetime", d.Datetime))
		}
	}

	for _, m := range d.Materials {
		if m.MaterialType == "" {
			continue
		}
		in.Materials = append(in.Materials, records.Material{
			MaterialType: m.MaterialType,
			Quantity:     max(m.Quantity, 0),
			Notes:        m.Notes,
		})
	}
	for _, s := range d.Samples {
		if s.ProductCode == "" {
			continue
		}
		in.Samples = append(in.Samples, records.Sample{
			ProductCode: s.ProductCode,
			Quantity:    max(s.Quantity, 0),
			Lot:         s.Lot,
		})
	}
	for _, fu := range d.SuggestedFollowUps {
		if strings.TrimSpace(fu.ActionItem) == "" {
			continue
		}
		in.FollowUps = append(in.FollowUps, records.FollowUp{
			ActionItem: fu.ActionItem,
			Owner:      repID,
			Status:     records.FollowUpStatusOpen,
		})
	}

	return in
}

func storeErrorKind(err error) ErrorKind {
	if errors.Is(err, records.ErrNotFound) {
		return KindNotFound
	}
	return KindPersistence
}
