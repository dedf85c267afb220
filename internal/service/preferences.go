package service

import (
	"context"
	"errors"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"
	"github.com/conex-ia/agentesv2-sub000/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var prefsTracer = otel.Tracer("service/preferences")

// PreferenceService loads and persists the per-user view configuration.
// Stored rows are never trusted blindly: every load runs through
// Normalize, so a vanished selected project or a bogus view type can
// never leak into a response.
type PreferenceService struct {
	rows     port.RowStore
	projects *ProjectService
	logger   *zap.Logger
}

// NewPreferenceService creates a preference service.
func NewPreferenceService(rows port.RowStore, projects *ProjectService, logger *zap.Logger) *PreferenceService {
	return &PreferenceService{rows: rows, projects: projects, logger: logger}
}

// Get returns the user's normalized preferences. A missing or
// undecodable row degrades to defaults instead of failing the request.
func (s *PreferenceService) Get(ctx context.Context, userUID, empresa string) (*domain.Preferences, error) {
	ctx, span := prefsTracer.Start(ctx, "PreferenceService.Get")
	defer span.End()

	prefs, err := s.rows.GetPreferences(ctx, userUID)
	if err != nil {
		var notFound *domain.ErrNotFound
		var decode *domain.ErrDecode
		switch {
		case errors.As(err, &notFound):
			prefs = domain.DefaultPreferences(userUID, empresa)
		case errors.As(err, &decode):
			s.logger.Warn("preferences: stored row undecodable, using defaults",
				zap.String("user_uid", userUID),
				zap.Error(err),
			)
			prefs = domain.DefaultPreferences(userUID, empresa)
		default:
			return nil, err
		}
	}

	prefs.Normalize(func(uid string) bool {
		return s.projects.Exists(ctx, empresa, uid)
	})
	return prefs, nil
}

// Save validates and persists preferences last-write-wins.
func (s *PreferenceService) Save(ctx context.Context, userUID, empresa string, prefs *domain.Preferences) (*domain.Preferences, error) {
	ctx, span := prefsTracer.Start(ctx, "PreferenceService.Save")
	defer span.End()

	prefs.UserUID = userUID
	prefs.Empresa = empresa
	prefs.Normalize(func(uid string) bool {
		return s.projects.Exists(ctx, empresa, uid)
	})

	if err := s.rows.UpsertPreferences(ctx, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}
