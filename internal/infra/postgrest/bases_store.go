package postgrest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Knowledge bases store
// ============================================================

// ListBases returns the active knowledge bases owned by a tenant.
func (c *Client) ListBases(ctx context.Context, titular string) ([]domain.KnowledgeBase, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.ListBases")
	defer span.End()
	span.SetAttributes(attribute.String("titular.uid", titular))

	var bases []domain.KnowledgeBase

	err := c.execute(ctx, func() error {
		path := tablePath(domain.TableBases,
			Filters{}.Eq("titular", titular).Eq("ativa", "true"),
			"order=created_at.desc",
		)
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		if body == nil {
			bases = []domain.KnowledgeBase{}
			return nil
		}
		if err := json.Unmarshal(body, &bases); err != nil {
			return &domain.ErrDecode{Table: domain.TableBases, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest/bases", Err: err}
	}
	return bases, nil
}

// GetBase fetches a single knowledge base regardless of its ativa flag.
func (c *Client) GetBase(ctx context.Context, uid string) (*domain.KnowledgeBase, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.GetBase")
	defer span.End()

	path := tablePath(domain.TableBases, Filters{}.Eq("uid", uid), "limit=1")
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.KnowledgeBase
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, &domain.ErrDecode{Table: domain.TableBases, Err: err}
		}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "base", ID: uid}
	}
	return &rows[0], nil
}

// CreateBase inserts a knowledge base row.
func (c *Client) CreateBase(ctx context.Context, b *domain.KnowledgeBase) (*domain.KnowledgeBase, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.CreateBase")
	defer span.End()

	data := map[string]any{
		"uid":              b.UID,
		"nome":             b.Nome,
		"titular":          b.Titular,
		"projeto":          b.Projeto,
		"treinamentos":     b.Treinamentos,
		"treinamentos_qtd": b.TreinamentosQtd,
		"ativa":            true,
		"prompt":           b.Prompt,
	}

	body, err := c.doPost(ctx, domain.TableBases, data)
	if err != nil {
		return nil, err
	}

	var rows []domain.KnowledgeBase
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &domain.ErrDecode{Table: domain.TableBases, Err: err}
	}
	if len(rows) == 0 {
		return b, nil
	}
	return &rows[0], nil
}

// RenameBase replaces the display name of a base.
func (c *Client) RenameBase(ctx context.Context, uid, nome string) error {
	ctx, span := tracer.Start(ctx, "Postgrest.RenameBase")
	defer span.End()

	path := tablePath(domain.TableBases, Filters{}.Eq("uid", uid))
	return c.doPatch(ctx, path, map[string]any{"nome": nome})
}

// UpdateBasePrompt replaces the behaviour prompt of a base.
func (c *Client) UpdateBasePrompt(ctx context.Context, uid, prompt string) error {
	ctx, span := tracer.Start(ctx, "Postgrest.UpdateBasePrompt")
	defer span.End()

	path := tablePath(domain.TableBases, Filters{}.Eq("uid", uid))
	return c.doPatch(ctx, path, map[string]any{"prompt": prompt})
}

// SetBaseTrainings replaces the training list and its derived count.
func (c *Client) SetBaseTrainings(ctx context.Context, uid string, trainings []string) error {
	ctx, span := tracer.Start(ctx, "Postgrest.SetBaseTrainings")
	defer span.End()

	path := tablePath(domain.TableBases, Filters{}.Eq("uid", uid))
	return c.doPatch(ctx, path, map[string]any{
		"treinamentos":     trainings,
		"treinamentos_qtd": len(trainings),
	})
}

// SoftDeleteBase marks a base inactive pending hard deletion.
func (c *Client) SoftDeleteBase(ctx context.Context, uid string, deleteAfter time.Time) error {
	ctx, span := tracer.Start(ctx, "Postgrest.SoftDeleteBase")
	defer span.End()

	path := tablePath(domain.TableBases, Filters{}.Eq("uid", uid))
	return c.doPatch(ctx, path, map[string]any{
		"ativa":        false,
		"delete_after": deleteAfter.UTC().Format(time.RFC3339Nano),
	})
}

// SoftDeleteBasesByProject marks every base of a project inactive.
// Used when a project is deleted so its bases follow it out.
func (c *Client) SoftDeleteBasesByProject(ctx context.Context, projectUID string, deleteAfter time.Time) error {
	ctx, span := tracer.Start(ctx, "Postgrest.SoftDeleteBasesByProject")
	defer span.End()

	path := tablePath(domain.TableBases, Filters{}.Eq("projeto", projectUID).Eq("ativa", "true"))
	return c.doPatch(ctx, path, map[string]any{
		"ativa":        false,
		"delete_after": deleteAfter.UTC().Format(time.RFC3339Nano),
	})
}

// HardDeleteBase removes the row permanently.
func (c *Client) HardDeleteBase(ctx context.Context, uid string) error {
	ctx, span := tracer.Start(ctx, "Postgrest.HardDeleteBase")
	defer span.End()

	path := tablePath(domain.TableBases, Filters{}.Eq("uid", uid))
	return c.doDelete(ctx, path)
}

// ListExpiredBases returns soft-deleted bases past their grace window.
func (c *Client) ListExpiredBases(ctx context.Context, now time.Time) ([]domain.KnowledgeBase, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.ListExpiredBases")
	defer span.End()

	path := tablePath(domain.TableBases,
		Filters{}.Eq("ativa", "false"),
		fmt.Sprintf("delete_after=lt.%s", url.QueryEscape(now.UTC().Format(time.RFC3339Nano))),
	)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var rows []domain.KnowledgeBase
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &domain.ErrDecode{Table: domain.TableBases, Err: err}
	}
	return rows, nil
}
