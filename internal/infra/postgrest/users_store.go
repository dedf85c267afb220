package postgrest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"
)

// ============================================================
// Users store — auth lookups and tenant profile reads
// ============================================================

// GetUserByAuthUID fetches the dashboard profile linked to an auth identity.
func (c *Client) GetUserByAuthUID(ctx context.Context, userUID string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.GetUserByAuthUID")
	defer span.End()

	path := tablePath(domain.TableUsers, Filters{}.Eq("user_uid", userUID), "limit=1")
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.User
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, &domain.ErrDecode{Table: domain.TableUsers, Err: err}
		}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "user", ID: userUID}
	}
	return &rows[0], nil
}

// GetUserByWhatsApp fetches a profile by its WhatsApp number, the login
// identifier of the dashboard.
func (c *Client) GetUserByWhatsApp(ctx context.Context, whatsapp string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.GetUserByWhatsApp")
	defer span.End()

	path := tablePath(domain.TableUsers, Filters{}.Eq("whatsapp", whatsapp), "limit=1")
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.User
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, &domain.ErrDecode{Table: domain.TableUsers, Err: err}
		}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "user", ID: whatsapp}
	}
	return &rows[0], nil
}

// ListUsers returns every profile of a tenant.
func (c *Client) ListUsers(ctx context.Context, empresa string) ([]domain.User, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.ListUsers")
	defer span.End()

	var users []domain.User

	err := c.execute(ctx, func() error {
		path := tablePath(domain.TableUsers, Filters{}.Eq("empresa_uid", empresa))
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		if body == nil {
			users = []domain.User{}
			return nil
		}
		if err := json.Unmarshal(body, &users); err != nil {
			return &domain.ErrDecode{Table: domain.TableUsers, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest/users", Err: err}
	}
	return users, nil
}
