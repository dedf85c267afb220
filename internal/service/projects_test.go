package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/observability"
	"github.com/conex-ia/agentesv2-sub000/internal/service"
	"github.com/conex-ia/agentesv2-sub000/internal/view"

	"go.uber.org/zap"
)

func newProjectService(t *testing.T, rows *fakeRows) *service.ProjectService {
	t.Helper()
	return service.NewProjectService(rows, newTestMirrors(t, rows), time.Second, observability.NewMetrics(), zap.NewNop())
}

func TestProjectCreate_RejectsEmptyName(t *testing.T) {
	svc := newProjectService(t, newFakeRows())

	_, err := svc.Create(context.Background(), "tenant-1", "   ")
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestProjectCreate_StartsActiveAndEmpty(t *testing.T) {
	rows := newFakeRows()
	svc := newProjectService(t, rows)

	created, err := svc.Create(context.Background(), "tenant-1", "Condomínio Central")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !created.Ativo {
		t.Error("new project must be active")
	}
	if created.Bases == nil || len(created.Bases) != 0 {
		t.Errorf("new project must have an empty base list, got %v", created.Bases)
	}
}

func TestProjectRename_RejectsForeignTenant(t *testing.T) {
	rows := newFakeRows()
	rows.projects["proj-1"] = &domain.Project{UID: "proj-1", Empresa: "other-tenant", Ativo: true}
	svc := newProjectService(t, rows)

	err := svc.Rename(context.Background(), "tenant-1", "proj-1", "Novo nome")
	var forbidden *domain.ErrForbidden
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestProjectDelete_CascadesToBasesAndBots(t *testing.T) {
	rows := newFakeRows()
	rows.projects["proj-1"] = &domain.Project{
		UID:     "proj-1",
		Empresa: "tenant-1",
		Bases:   []string{"base-1", "base-2"},
		Ativo:   true,
	}
	seedBase(rows, "base-1", "tenant-1", "proj-1")
	seedBase(rows, "base-2", "tenant-1", "proj-1")
	rows.bots["bot-1"] = &domain.Bot{UID: "bot-1", BotTitular: "tenant-1", BotExibir: true, BotBase: "base-1", BotAtivo: true}

	svc := newProjectService(t, rows)

	if err := svc.Delete(context.Background(), "tenant-1", "proj-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	deadline, ok := rows.softDeleted["proj-1"]
	if !ok {
		t.Fatal("project was not soft-deleted")
	}
	if !deadline.After(time.Now()) {
		t.Errorf("purge deadline must be in the future, got %v", deadline)
	}
	if len(rows.softDeletedByPrj) != 1 || rows.softDeletedByPrj[0] != "proj-1" {
		t.Errorf("expected base cascade for proj-1, got %v", rows.softDeletedByPrj)
	}
	if len(rows.detachedBases) != 2 {
		t.Errorf("expected bots detached from both bases, got %v", rows.detachedBases)
	}
	if bot := rows.bots["bot-1"]; bot.BotAtivo || bot.BotBase != "" {
		t.Errorf("bot must end up detached and inactive, got base=%q ativo=%v", bot.BotBase, bot.BotAtivo)
	}
}

func TestProjectList_Paginates(t *testing.T) {
	rows := newFakeRows()
	for i := 0; i < 7; i++ {
		uid := fmt.Sprintf("proj-%d", i)
		rows.projects[uid] = &domain.Project{UID: uid, Empresa: "tenant-1", Ativo: true}
	}
	svc := newProjectService(t, rows)

	page1, err := svc.List(context.Background(), "tenant-1", 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if page1.PageCount != 2 {
		t.Fatalf("expected 2 pages for 7 items, got %d", page1.PageCount)
	}
	if len(page1.Items) != view.DefaultPageSize {
		t.Errorf("expected full first page, got %d items", len(page1.Items))
	}

	page2, err := svc.List(context.Background(), "tenant-1", 2)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(page2.Items) != 1 {
		t.Errorf("expected 1 item on last page, got %d", len(page2.Items))
	}
}

func TestProjectList_OutOfRangePageClamps(t *testing.T) {
	rows := newFakeRows()
	rows.projects["proj-1"] = &domain.Project{UID: "proj-1", Empresa: "tenant-1", Ativo: true}
	svc := newProjectService(t, rows)

	page, err := svc.List(context.Background(), "tenant-1", 99)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if page.Page != 1 {
		t.Errorf("expected clamp to page 1, got %d", page.Page)
	}
	if len(page.Items) != 1 {
		t.Errorf("expected the single item, got %d", len(page.Items))
	}
}

func TestProjectExists_TracksMirror(t *testing.T) {
	rows := newFakeRows()
	rows.projects["proj-1"] = &domain.Project{UID: "proj-1", Empresa: "tenant-1", Ativo: true}
	svc := newProjectService(t, rows)

	if !svc.Exists(context.Background(), "tenant-1", "proj-1") {
		t.Error("expected proj-1 to exist")
	}
	if svc.Exists(context.Background(), "tenant-1", "ghost") {
		t.Error("expected ghost to be absent")
	}
}
