package postgrest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"
)

// ============================================================
// Preferences store — typed per-user view configuration
// ============================================================

// GetPreferences fetches the stored preferences of a user, or ErrNotFound
// when the user has never saved any.
func (c *Client) GetPreferences(ctx context.Context, userUID string) (*domain.Preferences, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.GetPreferences")
	defer span.End()

	path := tablePath(domain.TablePreferences, Filters{}.Eq("user_uid", userUID), "limit=1")
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.Preferences
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, &domain.ErrDecode{Table: domain.TablePreferences, Err: err}
		}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "preferences", ID: userUID}
	}
	return &rows[0], nil
}

// UpsertPreferences stores preferences last-write-wins, updating the
// existing row when the user already has one.
func (c *Client) UpsertPreferences(ctx context.Context, p *domain.Preferences) error {
	ctx, span := tracer.Start(ctx, "Postgrest.UpsertPreferences")
	defer span.End()

	data := map[string]any{
		"user_uid":         p.UserUID,
		"empresa":          p.Empresa,
		"selected_project": p.SelectedProject,
		"view_types":       p.ViewTypes,
		"updated_at":       time.Now().UTC().Format(time.RFC3339Nano),
	}

	if _, err := c.GetPreferences(ctx, p.UserUID); err == nil {
		path := tablePath(domain.TablePreferences, Filters{}.Eq("user_uid", p.UserUID))
		return c.doPatch(ctx, path, data)
	}

	if p.UID != "" {
		data["uid"] = p.UID
	}
	_, err := c.doPost(ctx, domain.TablePreferences, data)
	return err
}
