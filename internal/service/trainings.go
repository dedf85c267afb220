package service

import (
	"context"
	"strings"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/observability"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/webhook"
	"github.com/conex-ia/agentesv2-sub000/internal/port"
	"github.com/conex-ia/agentesv2-sub000/internal/view"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var trainingTracer = otel.Tracer("service/trainings")

// TrainingView decorates a training row with its rendered phase state
// and the resolved URLs of its stored content.
type TrainingView struct {
	domain.Training
	Display     domain.PhaseDisplay `json:"display"`
	Closeable   bool                `json:"closeable"`
	ContentURLs []string            `json:"content_urls,omitempty"`
}

// newTrainingView renders one row, resolving relative content entries
// against the storage base path. Entries that already carry a scheme
// pass through untouched.
func newTrainingView(t domain.Training, storage string) TrainingView {
	return TrainingView{
		Training:    t,
		Display:     t.Fase.Display(),
		Closeable:   t.Fase.Closeable(),
		ContentURLs: resolveContentURLs(storage, t.URL),
	}
}

func resolveContentURLs(storage string, entries []string) []string {
	if len(entries) == 0 {
		return nil
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		if storage == "" || strings.Contains(e, "://") {
			out[i] = e
			continue
		}
		out[i] = strings.TrimRight(storage, "/") + "/" + strings.TrimLeft(e, "/")
	}
	return out
}

// TrainingInput is the content submission form.
type TrainingInput struct {
	Base   string   `json:"base"`
	Origem string   `json:"origem"`
	Tipo   string   `json:"tipo"`
	Resumo string   `json:"resumo"`
	URL    []string `json:"url,omitempty"`
}

// TrainingService manages content ingestion. Rows are created here in
// the waiting phase; every later transition is written by the external
// pipeline and observed through the trainings mirror.
type TrainingService struct {
	rows     port.RowStore
	mirrors  *Mirrors
	workflow port.WorkflowClient
	storage  string
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewTrainingService creates a training service. storageBaseURL is the
// fixed base path relative content entries are resolved against.
func NewTrainingService(rows port.RowStore, mirrors *Mirrors, workflow port.WorkflowClient, storageBaseURL string, metrics *observability.Metrics, logger *zap.Logger) *TrainingService {
	return &TrainingService{
		rows:     rows,
		mirrors:  mirrors,
		workflow: workflow,
		storage:  storageBaseURL,
		metrics:  metrics,
		logger:   logger,
	}
}

// List returns one page of the tenant's trainings with phase displays,
// excluding product imports (they have their own area). projeto accepts
// domain.SelectedAll (or empty) for no filter.
func (s *TrainingService) List(ctx context.Context, titular, projeto string, page int) (view.Page[TrainingView], error) {
	ctx, span := trainingTracer.Start(ctx, "TrainingService.List")
	defer span.End()
	span.SetAttributes(attribute.String("titular.uid", titular))

	mirror, err := s.mirrors.Trainings(ctx, titular)
	if err != nil {
		return view.Page[TrainingView]{}, err
	}

	rows := mirror.Rows()
	views := make([]TrainingView, 0, len(rows))
	for _, t := range rows {
		if t.IsProduct() {
			continue
		}
		if projeto != "" && projeto != domain.SelectedAll && t.Projeto != projeto {
			continue
		}
		views = append(views, newTrainingView(t, s.storage))
	}
	return view.BuildPage(views, page, view.DefaultPageSize), nil
}

// ListByBase returns one page of everything ingested into one base,
// product imports included. The base must belong to the tenant.
func (s *TrainingService) ListByBase(ctx context.Context, titular, baseUID string, page int) (view.Page[TrainingView], error) {
	ctx, span := trainingTracer.Start(ctx, "TrainingService.ListByBase")
	defer span.End()
	span.SetAttributes(attribute.String("base.uid", baseUID))

	base, err := s.rows.GetBase(ctx, baseUID)
	if err != nil {
		return view.Page[TrainingView]{}, err
	}
	if base.Titular != titular {
		return view.Page[TrainingView]{}, &domain.ErrForbidden{Action: "access base " + baseUID}
	}

	mirror, err := s.mirrors.Trainings(ctx, titular)
	if err != nil {
		return view.Page[TrainingView]{}, err
	}

	rows := mirror.Rows()
	views := make([]TrainingView, 0, len(rows))
	for _, t := range rows {
		if t.Base != baseUID {
			continue
		}
		views = append(views, newTrainingView(t, s.storage))
	}
	return view.BuildPage(views, page, view.DefaultPageSize), nil
}

// Get returns one training with its phase display.
func (s *TrainingService) Get(ctx context.Context, titular, uid string) (*TrainingView, error) {
	ctx, span := trainingTracer.Start(ctx, "TrainingService.Get")
	defer span.End()

	t, err := s.rows.GetTraining(ctx, uid)
	if err != nil {
		return nil, err
	}
	if t.Titular != titular {
		return nil, &domain.ErrForbidden{Action: "access training " + uid}
	}
	v := newTrainingView(*t, s.storage)
	return &v, nil
}

// Ingest creates a training row in the waiting phase and hands it to the
// ingestion pipeline. When the handoff fails, the row is moved to the
// waiting-error phase and the failure is returned; it is never swallowed.
func (s *TrainingService) Ingest(ctx context.Context, titular string, in TrainingInput) (*domain.Training, error) {
	ctx, span := trainingTracer.Start(ctx, "TrainingService.Ingest")
	defer span.End()

	if strings.TrimSpace(in.Base) == "" {
		return nil, &domain.ErrValidation{Field: "base", Message: "target base is required"}
	}
	base, err := s.rows.GetBase(ctx, in.Base)
	if err != nil {
		return nil, err
	}
	if base.Titular != titular {
		return nil, &domain.ErrForbidden{Action: "ingest into base " + in.Base}
	}

	t := &domain.Training{
		UID:     uuid.NewString(),
		Resumo:  in.Resumo,
		Origem:  in.Origem,
		Base:    in.Base,
		Fase:    domain.PhaseAguardando,
		Tipo:    in.Tipo,
		Projeto: base.Projeto,
		Titular: titular,
		URL:     in.URL,
	}
	created, err := s.rows.CreateTraining(ctx, t)
	if err != nil {
		return nil, err
	}

	if _, err := s.workflow.StartTraining(ctx, webhook.TrainingPayload{
		UID:     created.UID,
		Base:    created.Base,
		Origem:  created.Origem,
		Tipo:    created.Tipo,
		Titular: titular,
		Projeto: created.Projeto,
		Resumo:  created.Resumo,
		URL:     created.URL,
	}); err != nil {
		s.metrics.IncrWebhookCall(webhook.WorkflowTraining, "error")
		if perr := s.rows.UpdateTrainingPhase(ctx, created.UID, domain.PhaseAguardando.AsError()); perr != nil {
			s.logger.Error("training ingest: failed to mark error phase",
				zap.String("training_uid", created.UID),
				zap.Error(perr),
			)
		}
		return nil, err
	}
	s.metrics.IncrWebhookCall(webhook.WorkflowTraining, "success")

	s.logger.Info("training submitted",
		zap.String("training_uid", created.UID),
		zap.String("base_uid", created.Base),
	)
	return created, nil
}

// Close removes a terminal training from its base and tells the
// pipeline to drop its ingested content. Rows still moving through the
// pipeline cannot be closed.
func (s *TrainingService) Close(ctx context.Context, titular, uid string) error {
	ctx, span := trainingTracer.Start(ctx, "TrainingService.Close")
	defer span.End()
	span.SetAttributes(attribute.String("training.uid", uid))

	t, err := s.rows.GetTraining(ctx, uid)
	if err != nil {
		return err
	}
	if t.Titular != titular {
		return &domain.ErrForbidden{Action: "close training " + uid}
	}
	if !t.Fase.Closeable() {
		return &domain.ErrConflict{Message: "training is still processing"}
	}

	if err := s.rows.DeleteTraining(ctx, uid); err != nil {
		return err
	}

	// Pull the uid out of the owning base's training list.
	if base, err := s.rows.GetBase(ctx, t.Base); err == nil {
		remaining := make([]string, 0, len(base.Treinamentos))
		for _, id := range base.Treinamentos {
			if id != uid {
				remaining = append(remaining, id)
			}
		}
		if len(remaining) != len(base.Treinamentos) {
			if err := s.rows.SetBaseTrainings(ctx, t.Base, remaining); err != nil {
				s.logger.Warn("training close: failed to update base list",
					zap.String("base_uid", t.Base),
					zap.Error(err),
				)
			}
		}
	}

	if _, err := s.workflow.RemoveTraining(ctx, webhook.TrainingRemovalPayload{
		Acao:    "excluir",
		UID:     uid,
		Base:    t.Base,
		Titular: titular,
	}); err != nil {
		s.metrics.IncrWebhookCall(webhook.WorkflowTraining, "error")
		return err
	}
	s.metrics.IncrWebhookCall(webhook.WorkflowTraining, "success")

	s.logger.Info("training closed",
		zap.String("training_uid", uid),
		zap.String("base_uid", t.Base),
	)
	return nil
}
