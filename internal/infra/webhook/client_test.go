package webhook_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/resilience"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/webhook"

	"go.uber.org/zap"
)

func testConfig() resilience.Config {
	return resilience.Config{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxConcurrency: 10,
	}
}

func newTestClient(t *testing.T, url string) *webhook.Client {
	t.Helper()
	return webhook.NewClient(
		url,
		webhook.Paths{
			Training:  "/webhook/treinamento",
			Product:   "/webhook/produtos",
			Assistant: "/webhook/assistente",
			Session:   "/webhook/instancia",
			BaseTable: "/webhook/criar-tabela",
			BotLink:   "/webhook/vincular-base",
		},
		5*time.Second,
		resilience.NewCircuitBreaker(t.Name()),
		testConfig(),
		zap.NewNop(),
	)
}

func TestStartTraining_Success(t *testing.T) {
	var received webhook.TrainingPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/webhook/treinamento" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		json.NewEncoder(w).Encode(webhook.Response{Status: "success", Message: "queued"})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	resp, err := client.StartTraining(context.Background(), webhook.TrainingPayload{
		UID:     "tr-1",
		Base:    "base-1",
		Titular: "tenant-1",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.Message != "queued" {
		t.Errorf("expected message 'queued', got %q", resp.Message)
	}
	if received.UID != "tr-1" {
		t.Errorf("expected payload uid tr-1, got %q", received.UID)
	}
}

func TestRemoveTraining_PostsRemovalAction(t *testing.T) {
	var received webhook.TrainingRemovalPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/webhook/treinamento" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		json.NewEncoder(w).Encode(webhook.Response{Status: "success"})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	if _, err := client.RemoveTraining(context.Background(), webhook.TrainingRemovalPayload{
		Acao:    "excluir",
		UID:     "tr-1",
		Base:    "base-1",
		Titular: "tenant-1",
	}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if received.Acao != "excluir" || received.UID != "tr-1" {
		t.Errorf("unexpected removal payload: %+v", received)
	}
}

func TestCall_EngineErrorStatusSurfacesAsErrWebhook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(webhook.Response{Status: "error", Message: "base desconhecida"})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.CreateBaseTable(context.Background(), webhook.BaseTablePayload{UID: "base-1"})
	var whErr *domain.ErrWebhook
	if !errors.As(err, &whErr) {
		t.Fatalf("expected ErrWebhook, got %v", err)
	}
	if whErr.Workflow != webhook.WorkflowBaseTable {
		t.Errorf("expected workflow %q, got %q", webhook.WorkflowBaseTable, whErr.Workflow)
	}
	if whErr.Message != "base desconhecida" {
		t.Errorf("expected engine message, got %q", whErr.Message)
	}
}

func TestCall_ServerErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(webhook.Response{Status: "success"})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	if _, err := client.SyncSession(context.Background(), webhook.SessionPayload{Acao: "criar", Instancia: "bot-1"}); err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestCall_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.LinkBot(context.Background(), webhook.BotLinkPayload{Acao: "vincular", Bot: "bot-1"})
	var whErr *domain.ErrWebhook
	if !errors.As(err, &whErr) {
		t.Fatalf("expected ErrWebhook, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("a refused request must not be retried, got %d attempts", calls.Load())
	}
}

func TestCall_TransportFailureSurfacesAsExternalService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	client := newTestClient(t, srv.URL)

	_, err := client.SubmitProducts(context.Background(), webhook.ProductPayload{UID: "tr-1"})
	var extErr *domain.ErrExternalService
	if !errors.As(err, &extErr) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
}
