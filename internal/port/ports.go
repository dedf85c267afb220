// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/realtime"
	"github.com/conex-ia/agentesv2-sub000/internal/infra/webhook"
)

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// ChangeFeed delivers row change notifications for one table scope.
type ChangeFeed interface {
	Subscribe(ctx context.Context, table, filter string) (<-chan realtime.Event, error)
}

// RowStore defines all row-level data operations against the hosted
// backend. Implemented by the PostgREST adapter.
type RowStore interface {
	// Projects
	ListProjects(ctx context.Context, empresa string) ([]domain.Project, error)
	GetProject(ctx context.Context, uid string) (*domain.Project, error)
	CreateProject(ctx context.Context, p *domain.Project) (*domain.Project, error)
	RenameProject(ctx context.Context, uid, nome string) error
	SetProjectBases(ctx context.Context, uid string, bases []string) error
	SoftDeleteProject(ctx context.Context, uid string, deleteAfter time.Time) error
	HardDeleteProject(ctx context.Context, uid string) error
	ListExpiredProjects(ctx context.Context, now time.Time) ([]domain.Project, error)

	// Knowledge bases
	ListBases(ctx context.Context, titular string) ([]domain.KnowledgeBase, error)
	GetBase(ctx context.Context, uid string) (*domain.KnowledgeBase, error)
	CreateBase(ctx context.Context, b *domain.KnowledgeBase) (*domain.KnowledgeBase, error)
	RenameBase(ctx context.Context, uid, nome string) error
	UpdateBasePrompt(ctx context.Context, uid, prompt string) error
	SetBaseTrainings(ctx context.Context, uid string, trainings []string) error
	SoftDeleteBase(ctx context.Context, uid string, deleteAfter time.Time) error
	SoftDeleteBasesByProject(ctx context.Context, projectUID string, deleteAfter time.Time) error
	HardDeleteBase(ctx context.Context, uid string) error
	ListExpiredBases(ctx context.Context, now time.Time) ([]domain.KnowledgeBase, error)

	// Trainings
	ListTrainings(ctx context.Context, titular, rota string) ([]domain.Training, error)
	GetTraining(ctx context.Context, uid string) (*domain.Training, error)
	CreateTraining(ctx context.Context, t *domain.Training) (*domain.Training, error)
	UpdateTrainingPhase(ctx context.Context, uid string, fase domain.Phase) error
	DeleteTraining(ctx context.Context, uid string) error

	// Bots
	ListBots(ctx context.Context, titular string) ([]domain.Bot, error)
	GetBot(ctx context.Context, uid string) (*domain.Bot, error)
	CreateBot(ctx context.Context, b *domain.Bot) (*domain.Bot, error)
	UpdateBot(ctx context.Context, uid string, fields map[string]any) error
	LinkBotBase(ctx context.Context, uid, base string, ativo bool) error
	DetachBotsFromBase(ctx context.Context, baseUID string) error
	HideBot(ctx context.Context, uid string) error

	// Users
	GetUserByAuthUID(ctx context.Context, userUID string) (*domain.User, error)
	GetUserByWhatsApp(ctx context.Context, whatsapp string) (*domain.User, error)
	ListUsers(ctx context.Context, empresa string) ([]domain.User, error)

	// Assistants
	ListAssistants(ctx context.Context, titular string) ([]domain.Assistant, error)
	GetAssistant(ctx context.Context, uid string) (*domain.Assistant, error)

	// Condominiums
	ListCondominiums(ctx context.Context, empresa string) ([]domain.Condominium, error)

	// Preferences
	GetPreferences(ctx context.Context, userUID string) (*domain.Preferences, error)
	UpsertPreferences(ctx context.Context, p *domain.Preferences) error
}

// WorkflowClient invokes the external workflow engine.
type WorkflowClient interface {
	StartTraining(ctx context.Context, p webhook.TrainingPayload) (*webhook.Response, error)
	RemoveTraining(ctx context.Context, p webhook.TrainingRemovalPayload) (*webhook.Response, error)
	SubmitProducts(ctx context.Context, p webhook.ProductPayload) (*webhook.Response, error)
	ManageAssistant(ctx context.Context, p webhook.AssistantPayload) (*webhook.Response, error)
	SyncSession(ctx context.Context, p webhook.SessionPayload) (*webhook.Response, error)
	CreateBaseTable(ctx context.Context, p webhook.BaseTablePayload) (*webhook.Response, error)
	LinkBot(ctx context.Context, p webhook.BotLinkPayload) (*webhook.Response, error)
}
