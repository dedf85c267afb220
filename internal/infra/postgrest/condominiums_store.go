package postgrest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"
)

// ListCondominiums returns the condominium reference rows of a tenant.
// Read-only data; the dashboard only ever counts and lists it.
func (c *Client) ListCondominiums(ctx context.Context, empresa string) ([]domain.Condominium, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.ListCondominiums")
	defer span.End()

	var rows []domain.Condominium

	err := c.execute(ctx, func() error {
		path := tablePath(domain.TableCondominiums, Filters{}.Eq("empresa", empresa))
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		if body == nil {
			rows = []domain.Condominium{}
			return nil
		}
		if err := json.Unmarshal(body, &rows); err != nil {
			return &domain.ErrDecode{Table: domain.TableCondominiums, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest/condominiums", Err: err}
	}
	return rows, nil
}
