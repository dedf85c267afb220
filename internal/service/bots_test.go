package service_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/observability"
	"github.com/conex-ia/agentesv2-sub000/internal/service"

	"go.uber.org/zap"
)

func newBotService(t *testing.T, rows *fakeRows, workflow *mockWorkflow) *service.BotService {
	t.Helper()
	return service.NewBotService(rows, newTestMirrors(t, rows), workflow, observability.NewMetrics(), zap.NewNop())
}

func seedBot(rows *fakeRows, uid, titular string) *domain.Bot {
	b := &domain.Bot{
		UID:        uid,
		BotNome:    "Suporte.bot_v2",
		BotStatus:  domain.BotStatusClose,
		BotTitular: titular,
		BotExibir:  true,
	}
	rows.bots[uid] = b
	return b
}

func TestBotCreate_StartsDisconnectedAndProvisionsSession(t *testing.T) {
	rows := newFakeRows()
	workflow := &mockWorkflow{}
	svc := newBotService(t, rows, workflow)

	created, err := svc.Create(context.Background(), "tenant-1", service.BotInput{Nome: "Atendimento"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if created.BotStatus != domain.BotStatusClose {
		t.Errorf("new bot must start closed, got %q", created.BotStatus)
	}
	if created.BotAtivo {
		t.Error("new bot must start inactive")
	}
	if !created.BotExibir {
		t.Error("new bot must start visible")
	}
	if len(workflow.sessions) != 1 || workflow.sessions[0].Acao != "criar" {
		t.Fatalf("expected one 'criar' session call, got %v", workflow.sessions)
	}
}

func TestBotLink_RejectsInactiveBase(t *testing.T) {
	rows := newFakeRows()
	seedBot(rows, "bot-1", "tenant-1")
	seedBase(rows, "base-1", "tenant-1", "proj-1")
	rows.bases["base-1"].Ativa = false

	svc := newBotService(t, rows, &mockWorkflow{})

	err := svc.Link(context.Background(), "tenant-1", "bot-1", "base-1")
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if len(rows.linkCalls) != 0 {
		t.Error("no link must be written for an inactive base")
	}
}

func TestBotLink_RejectsForeignBase(t *testing.T) {
	rows := newFakeRows()
	seedBot(rows, "bot-1", "tenant-1")
	seedBase(rows, "base-1", "other-tenant", "proj-1")

	svc := newBotService(t, rows, &mockWorkflow{})

	err := svc.Link(context.Background(), "tenant-1", "bot-1", "base-1")
	var forbidden *domain.ErrForbidden
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestBotLink_ActivatesAndMirrorsIntoEngine(t *testing.T) {
	rows := newFakeRows()
	workflow := &mockWorkflow{}
	seedBot(rows, "bot-1", "tenant-1")
	seedBase(rows, "base-1", "tenant-1", "proj-1")

	svc := newBotService(t, rows, workflow)

	if err := svc.Link(context.Background(), "tenant-1", "bot-1", "base-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(rows.linkCalls) != 1 {
		t.Fatalf("expected 1 link write, got %d", len(rows.linkCalls))
	}
	call := rows.linkCalls[0]
	if call.base != "base-1" || !call.ativo {
		t.Errorf("expected active link to base-1, got %+v", call)
	}
	if len(workflow.botLinks) != 1 || workflow.botLinks[0].Acao != "vincular" {
		t.Fatalf("expected one 'vincular' engine call, got %v", workflow.botLinks)
	}
}

func TestBotUnlink_NeverLeavesActiveBotWithoutBase(t *testing.T) {
	rows := newFakeRows()
	workflow := &mockWorkflow{}
	b := seedBot(rows, "bot-1", "tenant-1")
	b.BotBase = "base-1"
	b.BotAtivo = true

	svc := newBotService(t, rows, workflow)

	if err := svc.Unlink(context.Background(), "tenant-1", "bot-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	call := rows.linkCalls[len(rows.linkCalls)-1]
	if call.base != "" || call.ativo {
		t.Errorf("unlink must clear the base and deactivate, got %+v", call)
	}
	if len(workflow.botLinks) != 1 || workflow.botLinks[0].Acao != "desvincular" {
		t.Fatalf("expected one 'desvincular' engine call, got %v", workflow.botLinks)
	}
}

func TestBotSetActive_RequiresLinkedBase(t *testing.T) {
	rows := newFakeRows()
	seedBot(rows, "bot-1", "tenant-1")

	svc := newBotService(t, rows, &mockWorkflow{})

	err := svc.SetActive(context.Background(), "tenant-1", "bot-1", true)
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if len(rows.botUpdates) != 0 {
		t.Error("baseless bot must not be activated")
	}
}

func TestBotSetActive_TogglesWithoutTouchingLink(t *testing.T) {
	rows := newFakeRows()
	seedBot(rows, "bot-1", "tenant-1")
	rows.bots["bot-1"].BotBase = "base-1"
	rows.bots["bot-1"].BotAtivo = true

	svc := newBotService(t, rows, &mockWorkflow{})

	if err := svc.SetActive(context.Background(), "tenant-1", "bot-1", false); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(rows.botUpdates) != 1 {
		t.Fatalf("expected 1 bot patch, got %d", len(rows.botUpdates))
	}
	patch := rows.botUpdates[0]
	if patch.uid != "bot-1" {
		t.Errorf("expected bot-1 patched, got %s", patch.uid)
	}
	if v, ok := patch.fields["bot_ativo"].(bool); !ok || v {
		t.Errorf("expected bot_ativo=false patch, got %v", patch.fields)
	}
	if _, touched := patch.fields["bot_base"]; touched {
		t.Error("pause must not touch the base link")
	}
	if rows.bots["bot-1"].BotBase != "base-1" {
		t.Error("base link must survive the pause")
	}
}

func TestBotHide_TearsDownSessionAndDetaches(t *testing.T) {
	rows := newFakeRows()
	workflow := &mockWorkflow{}
	b := seedBot(rows, "bot-1", "tenant-1")
	b.BotBase = "base-1"
	b.BotAtivo = true

	svc := newBotService(t, rows, workflow)

	if err := svc.Hide(context.Background(), "tenant-1", "bot-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(workflow.sessions) != 1 || workflow.sessions[0].Acao != "excluir" {
		t.Fatalf("expected one 'excluir' session call, got %v", workflow.sessions)
	}
	if bot := rows.bots["bot-1"]; bot.BotExibir {
		t.Error("bot must be hidden")
	}
	if bot := rows.bots["bot-1"]; bot.BotAtivo || bot.BotBase != "" {
		t.Error("hidden bot must end up detached and inactive")
	}
}

func TestBotGet_HiddenBotIsNotFound(t *testing.T) {
	rows := newFakeRows()
	b := seedBot(rows, "bot-1", "tenant-1")
	b.BotExibir = false

	svc := newBotService(t, rows, &mockWorkflow{})

	_, err := svc.Get(context.Background(), "tenant-1", "bot-1")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBotPairingQR_ConflictsWhileConnected(t *testing.T) {
	rows := newFakeRows()
	b := seedBot(rows, "bot-1", "tenant-1")
	b.BotStatus = domain.BotStatusOpen
	b.BotQRCode = "pairing-payload"

	svc := newBotService(t, rows, &mockWorkflow{})

	_, err := svc.PairingQR(context.Background(), "tenant-1", "bot-1")
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestBotPairingQR_RendersPNG(t *testing.T) {
	rows := newFakeRows()
	b := seedBot(rows, "bot-1", "tenant-1")
	b.BotQRCode = "2@AbCdEfGh123456"

	svc := newBotService(t, rows, &mockWorkflow{})

	png, err := svc.PairingQR(context.Background(), "tenant-1", "bot-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Errorf("expected PNG payload, got %x", png[:8])
	}
}

func TestBotList_DerivesDisplayNameAndConnection(t *testing.T) {
	rows := newFakeRows()
	b := seedBot(rows, "bot-1", "tenant-1")
	b.BotStatus = domain.BotStatusOpen

	svc := newBotService(t, rows, &mockWorkflow{})

	page, err := svc.List(context.Background(), "tenant-1", 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected 1 bot, got %d", len(page.Items))
	}
	if page.Items[0].Nome != "Suporte" {
		t.Errorf("expected display name 'Suporte', got %q", page.Items[0].Nome)
	}
	if !page.Items[0].Connected {
		t.Error("expected bot to report connected")
	}
}
