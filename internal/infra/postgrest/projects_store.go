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
// Projects store — list, lookup, create, rename, two-phase delete
// ============================================================

// ListProjects returns the active projects of a tenant, newest first.
func (c *Client) ListProjects(ctx context.Context, empresa string) ([]domain.Project, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.ListProjects")
	defer span.End()
	span.SetAttributes(attribute.String("empresa.uid", empresa))

	var projects []domain.Project

	err := c.execute(ctx, func() error {
		path := tablePath(domain.TableProjects,
			Filters{}.Eq("empresa", empresa).Eq("ativo", "true"),
			"order=created_at.desc",
		)
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		if body == nil {
			projects = []domain.Project{}
			return nil
		}
		if err := json.Unmarshal(body, &projects); err != nil {
			return &domain.ErrDecode{Table: domain.TableProjects, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest/projects", Err: err}
	}
	return projects, nil
}

// GetProject fetches a single project regardless of its ativo flag.
func (c *Client) GetProject(ctx context.Context, uid string) (*domain.Project, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.GetProject")
	defer span.End()

	path := tablePath(domain.TableProjects, Filters{}.Eq("uid", uid), "limit=1")
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.Project
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, &domain.ErrDecode{Table: domain.TableProjects, Err: err}
		}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "project", ID: uid}
	}
	return &rows[0], nil
}

// CreateProject inserts a project row and returns the stored representation.
func (c *Client) CreateProject(ctx context.Context, p *domain.Project) (*domain.Project, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.CreateProject")
	defer span.End()

	data := map[string]any{
		"uid":     p.UID,
		"nome":    p.Nome,
		"empresa": p.Empresa,
		"bases":   p.Bases,
		"ativo":   true,
	}

	body, err := c.doPost(ctx, domain.TableProjects, data)
	if err != nil {
		return nil, err
	}

	var rows []domain.Project
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &domain.ErrDecode{Table: domain.TableProjects, Err: err}
	}
	if len(rows) == 0 {
		return p, nil
	}
	return &rows[0], nil
}

// RenameProject updates a project's display name.
func (c *Client) RenameProject(ctx context.Context, uid, nome string) error {
	ctx, span := tracer.Start(ctx, "Postgrest.RenameProject")
	defer span.End()

	path := tablePath(domain.TableProjects, Filters{}.Eq("uid", uid))
	return c.doPatch(ctx, path, map[string]any{"nome": nome})
}

// SetProjectBases replaces the list of base UIDs attached to a project.
func (c *Client) SetProjectBases(ctx context.Context, uid string, bases []string) error {
	ctx, span := tracer.Start(ctx, "Postgrest.SetProjectBases")
	defer span.End()

	path := tablePath(domain.TableProjects, Filters{}.Eq("uid", uid))
	return c.doPatch(ctx, path, map[string]any{"bases": bases})
}

// SoftDeleteProject marks a project inactive and stamps the time after
// which the sweeper may purge it.
func (c *Client) SoftDeleteProject(ctx context.Context, uid string, deleteAfter time.Time) error {
	ctx, span := tracer.Start(ctx, "Postgrest.SoftDeleteProject")
	defer span.End()

	path := tablePath(domain.TableProjects, Filters{}.Eq("uid", uid))
	return c.doPatch(ctx, path, map[string]any{
		"ativo":        false,
		"delete_after": deleteAfter.UTC().Format(time.RFC3339Nano),
	})
}

// HardDeleteProject removes the row permanently.
func (c *Client) HardDeleteProject(ctx context.Context, uid string) error {
	ctx, span := tracer.Start(ctx, "Postgrest.HardDeleteProject")
	defer span.End()

	path := tablePath(domain.TableProjects, Filters{}.Eq("uid", uid))
	return c.doDelete(ctx, path)
}

// ListExpiredProjects returns soft-deleted projects whose grace window
// ended before now. Used by the sweeper.
func (c *Client) ListExpiredProjects(ctx context.Context, now time.Time) ([]domain.Project, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.ListExpiredProjects")
	defer span.End()

	path := tablePath(domain.TableProjects,
		Filters{}.Eq("ativo", "false"),
		fmt.Sprintf("delete_after=lt.%s", url.QueryEscape(now.UTC().Format(time.RFC3339Nano))),
	)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var rows []domain.Project
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &domain.ErrDecode{Table: domain.TableProjects, Err: err}
	}
	return rows, nil
}
