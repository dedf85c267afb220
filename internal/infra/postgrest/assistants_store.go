package postgrest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"
)

// ============================================================
// Assistants store (lab area)
// ============================================================

// ListAssistants returns the lab assistants of a tenant.
func (c *Client) ListAssistants(ctx context.Context, titular string) ([]domain.Assistant, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.ListAssistants")
	defer span.End()

	var assistants []domain.Assistant

	err := c.execute(ctx, func() error {
		path := tablePath(domain.TableAssistants,
			Filters{}.Eq("titular", titular),
			"order=created_at.desc",
		)
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		if body == nil {
			assistants = []domain.Assistant{}
			return nil
		}
		if err := json.Unmarshal(body, &assistants); err != nil {
			return &domain.ErrDecode{Table: domain.TableAssistants, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest/assistants", Err: err}
	}
	return assistants, nil
}

// GetAssistant fetches a single lab assistant.
func (c *Client) GetAssistant(ctx context.Context, uid string) (*domain.Assistant, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.GetAssistant")
	defer span.End()

	path := tablePath(domain.TableAssistants, Filters{}.Eq("uid", uid), "limit=1")
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.Assistant
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, &domain.ErrDecode{Table: domain.TableAssistants, Err: err}
		}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "assistant", ID: uid}
	}
	return &rows[0], nil
}
