package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/observability"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/realtime"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/webhook"
	"github.com/conex-ia/agentesv2-sub000/internal/service"
	"github.com/conex-ia/agentesv2-sub000/internal/store"

	"go.uber.org/zap"
)

// --- Mocks ---

type phaseUpdate struct {
	uid  string
	fase domain.Phase
}

type linkCall struct {
	uid   string
	base  string
	ativo bool
}

type botUpdate struct {
	uid    string
	fields map[string]any
}

// fakeRows is an in-memory RowStore. Data is seeded through the maps,
// mutations are recorded so tests can assert what was written.
type fakeRows struct {
	mu sync.Mutex

	projects   map[string]*domain.Project
	bases      map[string]*domain.KnowledgeBase
	trainings  map[string]*domain.Training
	bots       map[string]*domain.Bot
	users      []*domain.User
	assistants map[string]*domain.Assistant
	condos     []domain.Condominium
	prefs      map[string]*domain.Preferences

	prefsErr error

	phaseUpdates     []phaseUpdate
	linkCalls        []linkCall
	botUpdates       []botUpdate
	detachedBases    []string
	softDeleted      map[string]time.Time
	softDeletedByPrj []string
	hardDeleted      []string
	deletedTrainings []string
	baseTrainings    map[string][]string
	savedPrefs       []*domain.Preferences
}

func newFakeRows() *fakeRows {
	return &fakeRows{
		projects:      map[string]*domain.Project{},
		bases:         map[string]*domain.KnowledgeBase{},
		trainings:     map[string]*domain.Training{},
		bots:          map[string]*domain.Bot{},
		assistants:    map[string]*domain.Assistant{},
		prefs:         map[string]*domain.Preferences{},
		softDeleted:   map[string]time.Time{},
		baseTrainings: map[string][]string{},
	}
}

func (f *fakeRows) ListProjects(_ context.Context, empresa string) ([]domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Project
	for _, p := range f.projects {
		if p.Empresa == empresa && p.Ativo {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeRows) GetProject(_ context.Context, uid string) (*domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[uid]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "project", ID: uid}
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRows) CreateProject(_ context.Context, p *domain.Project) (*domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.projects[p.UID] = &cp
	return p, nil
}

func (f *fakeRows) RenameProject(_ context.Context, uid, nome string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.projects[uid]; ok {
		p.Nome = nome
	}
	return nil
}

func (f *fakeRows) SetProjectBases(_ context.Context, uid string, bases []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.projects[uid]; ok {
		p.Bases = bases
	}
	return nil
}

func (f *fakeRows) SoftDeleteProject(_ context.Context, uid string, deleteAfter time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.softDeleted[uid] = deleteAfter
	if p, ok := f.projects[uid]; ok {
		p.Ativo = false
	}
	return nil
}

func (f *fakeRows) HardDeleteProject(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hardDeleted = append(f.hardDeleted, uid)
	delete(f.projects, uid)
	return nil
}

func (f *fakeRows) ListExpiredProjects(_ context.Context, now time.Time) ([]domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Project
	for uid, deadline := range f.softDeleted {
		if p, ok := f.projects[uid]; ok && deadline.Before(now) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeRows) ListBases(_ context.Context, titular string) ([]domain.KnowledgeBase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.KnowledgeBase
	for _, b := range f.bases {
		if b.Titular == titular && b.Ativa {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeRows) GetBase(_ context.Context, uid string) (*domain.KnowledgeBase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bases[uid]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "base", ID: uid}
	}
	cp := *b
	return &cp, nil
}

func (f *fakeRows) CreateBase(_ context.Context, b *domain.KnowledgeBase) (*domain.KnowledgeBase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *b
	f.bases[b.UID] = &cp
	return b, nil
}

func (f *fakeRows) RenameBase(_ context.Context, uid, nome string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bases[uid]; ok {
		b.Nome = nome
	}
	return nil
}

func (f *fakeRows) UpdateBasePrompt(_ context.Context, uid, prompt string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bases[uid]; ok {
		b.Prompt = prompt
	}
	return nil
}

func (f *fakeRows) SetBaseTrainings(_ context.Context, uid string, trainings []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.baseTrainings[uid] = trainings
	if b, ok := f.bases[uid]; ok {
		b.Treinamentos = trainings
		b.TreinamentosQtd = len(trainings)
	}
	return nil
}

func (f *fakeRows) SoftDeleteBase(_ context.Context, uid string, deleteAfter time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.softDeleted[uid] = deleteAfter
	if b, ok := f.bases[uid]; ok {
		b.Ativa = false
	}
	return nil
}

func (f *fakeRows) SoftDeleteBasesByProject(_ context.Context, projectUID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.softDeletedByPrj = append(f.softDeletedByPrj, projectUID)
	for _, b := range f.bases {
		if b.Projeto == projectUID {
			b.Ativa = false
		}
	}
	return nil
}

func (f *fakeRows) HardDeleteBase(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hardDeleted = append(f.hardDeleted, uid)
	delete(f.bases, uid)
	return nil
}

func (f *fakeRows) ListExpiredBases(_ context.Context, now time.Time) ([]domain.KnowledgeBase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.KnowledgeBase
	for uid, deadline := range f.softDeleted {
		if b, ok := f.bases[uid]; ok && deadline.Before(now) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeRows) ListTrainings(_ context.Context, titular, rota string) ([]domain.Training, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Training
	for _, t := range f.trainings {
		if t.Titular != titular {
			continue
		}
		if rota != "" && t.Rota != rota {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeRows) GetTraining(_ context.Context, uid string) (*domain.Training, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trainings[uid]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "training", ID: uid}
	}
	cp := *t
	return &cp, nil
}

func (f *fakeRows) CreateTraining(_ context.Context, t *domain.Training) (*domain.Training, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.trainings[t.UID] = &cp
	return t, nil
}

func (f *fakeRows) UpdateTrainingPhase(_ context.Context, uid string, fase domain.Phase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phaseUpdates = append(f.phaseUpdates, phaseUpdate{uid: uid, fase: fase})
	if t, ok := f.trainings[uid]; ok {
		t.Fase = fase
	}
	return nil
}

func (f *fakeRows) DeleteTraining(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedTrainings = append(f.deletedTrainings, uid)
	delete(f.trainings, uid)
	return nil
}

func (f *fakeRows) ListBots(_ context.Context, titular string) ([]domain.Bot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Bot
	for _, b := range f.bots {
		if b.BotTitular == titular && b.BotExibir {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeRows) GetBot(_ context.Context, uid string) (*domain.Bot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bots[uid]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "bot", ID: uid}
	}
	cp := *b
	return &cp, nil
}

func (f *fakeRows) CreateBot(_ context.Context, b *domain.Bot) (*domain.Bot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *b
	f.bots[b.UID] = &cp
	return b, nil
}

func (f *fakeRows) UpdateBot(_ context.Context, uid string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.botUpdates = append(f.botUpdates, botUpdate{uid: uid, fields: fields})
	if b, ok := f.bots[uid]; ok {
		if v, ok := fields["bot_ativo"].(bool); ok {
			b.BotAtivo = v
		}
	}
	return nil
}

func (f *fakeRows) LinkBotBase(_ context.Context, uid, base string, ativo bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linkCalls = append(f.linkCalls, linkCall{uid: uid, base: base, ativo: ativo})
	if b, ok := f.bots[uid]; ok {
		b.BotBase = base
		b.BotAtivo = ativo
	}
	return nil
}

func (f *fakeRows) DetachBotsFromBase(_ context.Context, baseUID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detachedBases = append(f.detachedBases, baseUID)
	for _, b := range f.bots {
		if b.BotBase == baseUID {
			b.BotBase = ""
			b.BotAtivo = false
		}
	}
	return nil
}

func (f *fakeRows) HideBot(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bots[uid]; ok {
		b.BotExibir = false
	}
	return nil
}

func (f *fakeRows) GetUserByAuthUID(_ context.Context, userUID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.UserUID == userUID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "user", ID: userUID}
}

func (f *fakeRows) GetUserByWhatsApp(_ context.Context, whatsapp string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.WhatsApp == whatsapp {
			cp := *u
			return &cp, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "user", ID: whatsapp}
}

func (f *fakeRows) ListUsers(_ context.Context, empresa string) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.User
	for _, u := range f.users {
		if u.EmpresaUID == empresa {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeRows) ListAssistants(_ context.Context, titular string) ([]domain.Assistant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Assistant
	for _, a := range f.assistants {
		if a.Titular == titular {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRows) GetAssistant(_ context.Context, uid string) (*domain.Assistant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assistants[uid]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "assistant", ID: uid}
	}
	cp := *a
	return &cp, nil
}

func (f *fakeRows) ListCondominiums(_ context.Context, _ string) ([]domain.Condominium, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Condominium(nil), f.condos...), nil
}

func (f *fakeRows) GetPreferences(_ context.Context, userUID string) (*domain.Preferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prefsErr != nil {
		return nil, f.prefsErr
	}
	p, ok := f.prefs[userUID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "preferences", ID: userUID}
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRows) UpsertPreferences(_ context.Context, p *domain.Preferences) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.savedPrefs = append(f.savedPrefs, &cp)
	f.prefs[p.UserUID] = &cp
	return nil
}

// mockWorkflow records every payload it receives and fails on demand.
type mockWorkflow struct {
	mu  sync.Mutex
	err error

	trainings  []webhook.TrainingPayload
	removals   []webhook.TrainingRemovalPayload
	products   []webhook.ProductPayload
	assistants []webhook.AssistantPayload
	sessions   []webhook.SessionPayload
	baseTables []webhook.BaseTablePayload
	botLinks   []webhook.BotLinkPayload
}

func successResp() *webhook.Response {
	return &webhook.Response{Status: "success"}
}

func (m *mockWorkflow) StartTraining(_ context.Context, p webhook.TrainingPayload) (*webhook.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.trainings = append(m.trainings, p)
	return successResp(), nil
}

func (m *mockWorkflow) RemoveTraining(_ context.Context, p webhook.TrainingRemovalPayload) (*webhook.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.removals = append(m.removals, p)
	return successResp(), nil
}

func (m *mockWorkflow) SubmitProducts(_ context.Context, p webhook.ProductPayload) (*webhook.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.products = append(m.products, p)
	return successResp(), nil
}

func (m *mockWorkflow) ManageAssistant(_ context.Context, p webhook.AssistantPayload) (*webhook.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.assistants = append(m.assistants, p)
	return successResp(), nil
}

func (m *mockWorkflow) SyncSession(_ context.Context, p webhook.SessionPayload) (*webhook.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.sessions = append(m.sessions, p)
	return successResp(), nil
}

func (m *mockWorkflow) CreateBaseTable(_ context.Context, p webhook.BaseTablePayload) (*webhook.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.baseTables = append(m.baseTables, p)
	return successResp(), nil
}

func (m *mockWorkflow) LinkBot(_ context.Context, p webhook.BotLinkPayload) (*webhook.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.botLinks = append(m.botLinks, p)
	return successResp(), nil
}

// stubFeed hands out channels that tests can push events into.
type stubFeed struct {
	mu    sync.Mutex
	chans map[string]chan realtime.Event
}

func newStubFeed() *stubFeed {
	return &stubFeed{chans: map[string]chan realtime.Event{}}
}

func (s *stubFeed) Subscribe(_ context.Context, table, filter string) (<-chan realtime.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan realtime.Event, 16)
	s.chans[table+"|"+filter] = ch
	return ch, nil
}

// --- Fixtures ---

func newTestMirrors(t interface{ Cleanup(func()) }, rows *fakeRows) *service.Mirrors {
	registry := store.NewRegistry(zap.NewNop())
	t.Cleanup(registry.Shutdown)
	m := service.NewMirrors(registry, newStubFeed(), rows, observability.NewMetrics(), zap.NewNop())
	t.Cleanup(m.Shutdown)
	return m
}
