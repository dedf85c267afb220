package postgrest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Trainings store — all trainings, uploads and product imports alike
// ============================================================

// ListTrainings returns the trainings of a tenant, newest first.
// An empty rota lists everything; domain.RotaProdutos narrows to
// product imports.
func (c *Client) ListTrainings(ctx context.Context, titular, rota string) ([]domain.Training, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.ListTrainings")
	defer span.End()
	span.SetAttributes(attribute.String("titular.uid", titular))

	filters := Filters{}.Eq("titular", titular)
	if rota != "" {
		filters = filters.Eq("rota", rota)
	}

	var trainings []domain.Training

	err := c.execute(ctx, func() error {
		path := tablePath(domain.TableTrainings, filters, "order=created_at.desc")
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		if body == nil {
			trainings = []domain.Training{}
			return nil
		}
		if err := json.Unmarshal(body, &trainings); err != nil {
			return &domain.ErrDecode{Table: domain.TableTrainings, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest/trainings", Err: err}
	}
	return trainings, nil
}

// GetTraining fetches a single training by uid.
func (c *Client) GetTraining(ctx context.Context, uid string) (*domain.Training, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.GetTraining")
	defer span.End()

	path := tablePath(domain.TableTrainings, Filters{}.Eq("uid", uid), "limit=1")
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.Training
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, &domain.ErrDecode{Table: domain.TableTrainings, Err: err}
		}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "training", ID: uid}
	}
	return &rows[0], nil
}

// CreateTraining inserts a training row in its initial phase.
func (c *Client) CreateTraining(ctx context.Context, t *domain.Training) (*domain.Training, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.CreateTraining")
	defer span.End()

	data := map[string]any{
		"uid":        t.UID,
		"resumo":     t.Resumo,
		"origem":     t.Origem,
		"base":       t.Base,
		"fase":       string(t.Fase),
		"tipo":       t.Tipo,
		"projeto":    t.Projeto,
		"titular":    t.Titular,
		"url":        t.URL,
		"descricoes": t.Descricoes,
		"rota":       t.Rota,
	}

	body, err := c.doPost(ctx, domain.TableTrainings, data)
	if err != nil {
		return nil, err
	}

	var rows []domain.Training
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &domain.ErrDecode{Table: domain.TableTrainings, Err: err}
	}
	if len(rows) == 0 {
		return t, nil
	}
	return &rows[0], nil
}

// UpdateTrainingPhase moves a training to another workflow phase.
func (c *Client) UpdateTrainingPhase(ctx context.Context, uid string, fase domain.Phase) error {
	ctx, span := tracer.Start(ctx, "Postgrest.UpdateTrainingPhase")
	defer span.End()
	span.SetAttributes(attribute.String("fase", string(fase)))

	path := tablePath(domain.TableTrainings, Filters{}.Eq("uid", uid))
	return c.doPatch(ctx, path, map[string]any{"fase": string(fase)})
}

// DeleteTraining removes a training row. Trainings are deleted
// immediately; only projects and bases get a grace window.
func (c *Client) DeleteTraining(ctx context.Context, uid string) error {
	ctx, span := tracer.Start(ctx, "Postgrest.DeleteTraining")
	defer span.End()

	path := tablePath(domain.TableTrainings, Filters{}.Eq("uid", uid))
	return c.doDelete(ctx, path)
}
