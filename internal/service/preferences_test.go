package service_test

import (
	"context"
	"testing"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"
	"github.com/conex-ia/agentesv2-sub000/internal/service"

	"go.uber.org/zap"
)

func newPreferenceService(t *testing.T, rows *fakeRows) *service.PreferenceService {
	t.Helper()
	return service.NewPreferenceService(rows, newProjectService(t, rows), zap.NewNop())
}

func TestPreferencesGet_MissingRowFallsBackToDefaults(t *testing.T) {
	svc := newPreferenceService(t, newFakeRows())

	prefs, err := svc.Get(context.Background(), "user-1", "tenant-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if prefs.SelectedProject != domain.SelectedAll {
		t.Errorf("expected default selection %q, got %q", domain.SelectedAll, prefs.SelectedProject)
	}
}

func TestPreferencesGet_UndecodableRowFallsBackToDefaults(t *testing.T) {
	rows := newFakeRows()
	rows.prefsErr = &domain.ErrDecode{Table: domain.TablePreferences}
	svc := newPreferenceService(t, rows)

	prefs, err := svc.Get(context.Background(), "user-1", "tenant-1")
	if err != nil {
		t.Fatalf("expected defaults, got %v", err)
	}
	if prefs.SelectedProject != domain.SelectedAll {
		t.Errorf("expected default selection, got %q", prefs.SelectedProject)
	}
}

func TestPreferencesGet_VanishedSelectedProjectResets(t *testing.T) {
	rows := newFakeRows()
	rows.prefs["user-1"] = &domain.Preferences{
		UserUID:         "user-1",
		Empresa:         "tenant-1",
		SelectedProject: "proj-gone",
	}
	svc := newPreferenceService(t, rows)

	prefs, err := svc.Get(context.Background(), "user-1", "tenant-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if prefs.SelectedProject != domain.SelectedAll {
		t.Errorf("vanished project must reset to %q, got %q", domain.SelectedAll, prefs.SelectedProject)
	}
}

func TestPreferencesGet_LiveSelectedProjectSurvives(t *testing.T) {
	rows := newFakeRows()
	rows.projects["proj-1"] = &domain.Project{UID: "proj-1", Empresa: "tenant-1", Ativo: true}
	rows.prefs["user-1"] = &domain.Preferences{
		UserUID:         "user-1",
		Empresa:         "tenant-1",
		SelectedProject: "proj-1",
	}
	svc := newPreferenceService(t, rows)

	prefs, err := svc.Get(context.Background(), "user-1", "tenant-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if prefs.SelectedProject != "proj-1" {
		t.Errorf("live selection must survive, got %q", prefs.SelectedProject)
	}
}

func TestPreferencesSave_ForcesIdentityAndClampsViews(t *testing.T) {
	rows := newFakeRows()
	svc := newPreferenceService(t, rows)

	saved, err := svc.Save(context.Background(), "user-1", "tenant-1", &domain.Preferences{
		UserUID:   "spoofed-user",
		Empresa:   "spoofed-tenant",
		ViewTypes: map[string]string{"treinamentos": "carousel"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if saved.UserUID != "user-1" || saved.Empresa != "tenant-1" {
		t.Errorf("identity must come from the session, got %s/%s", saved.UserUID, saved.Empresa)
	}
	if saved.ViewTypes["treinamentos"] != domain.ViewGrid {
		t.Errorf("bogus view type must clamp to %q, got %q", domain.ViewGrid, saved.ViewTypes["treinamentos"])
	}
	if len(rows.savedPrefs) != 1 {
		t.Fatalf("expected 1 persisted row, got %d", len(rows.savedPrefs))
	}
}
