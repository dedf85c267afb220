// Package domain defines the typed row contracts for every backend table and
// the error taxonomy shared across the service. Rows are disposable
// projections of the hosted store; nothing here is authoritative state.
package domain

import (
	"strings"
	"time"
)

// Table names as exposed by the hosted backend.
const (
	TableProjects     = "conex_projetos"
	TableBases        = "conex-bases_t"
	TableTrainings    = "conex-treinamentos"
	TableBots         = "conex-bots"
	TableUsers        = "conex-users"
	TableAssistants   = "conex-assistants_t"
	TableCondominiums = "conex_condominios"
	TablePreferences  = "conex-preferences"
)

// Project groups knowledge bases under a tenant.
// ativo=false marks the row pending deletion; DeleteAfter is the purge
// deadline honored by the sweeper.
type Project struct {
	UID         string     `json:"uid"`
	Nome        string     `json:"nome"`
	Empresa     string     `json:"empresa"`
	Bases       []string   `json:"bases"`
	Ativo       bool       `json:"ativo"`
	DeleteAfter *time.Time `json:"delete_after,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// KnowledgeBase holds training content references for a project.
// TreinamentosQtd mirrors len(Treinamentos) and is maintained by the
// external pipeline, never by this service.
type KnowledgeBase struct {
	UID             string     `json:"uid"`
	Nome            string     `json:"nome"`
	Titular         string     `json:"titular"`
	Projeto         string     `json:"projeto"`
	Treinamentos    []string   `json:"treinamentos"`
	TreinamentosQtd int        `json:"treinamentos_qtd"`
	Ativa           bool       `json:"ativa"`
	Prompt          string     `json:"prompt"`
	DeleteAfter     *time.Time `json:"delete_after,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Training is one piece of ingested content. Products reuse this shape with
// Rota set to RotaProdutos and one Descricao per URL entry.
type Training struct {
	UID        string    `json:"uid"`
	Resumo     string    `json:"resumo"`
	Origem     string    `json:"origem"`
	Base       string    `json:"base"`
	Fase       Phase     `json:"fase"`
	Tipo       string    `json:"tipo"`
	Projeto    string    `json:"projeto"`
	Titular    string    `json:"titular"`
	URL        []string  `json:"url"`
	Descricoes []string  `json:"descricoes,omitempty"`
	Rota       string    `json:"rota"`
	CreatedAt  time.Time `json:"created_at"`
}

// RotaProdutos marks a Training row as a product entry.
const RotaProdutos = "produtos"

// IsProduct reports whether the row belongs to the products area.
func (t *Training) IsProduct() bool { return t.Rota == RotaProdutos }

// Bot session states mirrored from the external WhatsApp integration.
const (
	BotStatusOpen  = "open"
	BotStatusClose = "close"
)

// Bot is a WhatsApp assistant. bot_exibir=false hides the row (visibility
// soft-delete; bots are never hard-deleted). bot_status is written by the
// external session integration and only ever read here.
type Bot struct {
	UID        string `json:"uid"`
	BotNome    string `json:"bot_nome"`
	BotNumero  string `json:"bot_numero"`
	BotStatus  string `json:"bot_status"`
	BotAtivo   bool   `json:"bot_ativo"`
	BotBase    string `json:"bot_base"`
	BotTitular string `json:"bot_titular"`
	BotExibir  bool   `json:"bot_exibir"`
	BotPerfil  string `json:"bot_perfil"`
	BotQRCode  string `json:"bot_qrcode"`
	AgenteNome string `json:"bot_agente_nome"`
	Saudacao   string `json:"saudacao"`
	Prompt     string `json:"prompt"`
	LGPD       bool   `json:"lgpd"`
}

// Connected reports whether the mirrored WhatsApp session is open.
func (b *Bot) Connected() bool { return b.BotStatus == BotStatusOpen }

// DisplayName returns bot_nome with any trailing ".extension" and "_suffix"
// tokens removed: "Suporte.bot_v2" displays as "Suporte".
func (b *Bot) DisplayName() string {
	name := b.BotNome
	if i := strings.Index(name, "."); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndex(name, "_"); i > 0 {
		name = name[:i]
	}
	if name == "" {
		return b.BotNome
	}
	return name
}

// User is a dashboard profile tied to an auth identity. Rows are read-only in
// this service apart from the realtime mirror; SenhaHash is consumed by the
// auth service only and never serialized back out.
type User struct {
	UID        string    `json:"uid"`
	UserUID    string    `json:"user_uid"`
	EmpresaUID string    `json:"empresa_uid"`
	Nome       string    `json:"nome"`
	WhatsApp   string    `json:"whatsapp"`
	Autorizado bool      `json:"autorizado"`
	Role       string    `json:"role"`
	SenhaHash  string    `json:"senha_hash,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Assistant is a lab-area row managed through the assistant lifecycle webhook.
type Assistant struct {
	UID       string    `json:"uid"`
	Nome      string    `json:"nome"`
	Modelo    string    `json:"modelo"`
	Status    string    `json:"status"`
	Titular   string    `json:"titular"`
	CreatedAt time.Time `json:"created_at"`
}

// Condominium is tenant reference data consumed read-only.
type Condominium struct {
	UID       string    `json:"uid"`
	Nome      string    `json:"nome"`
	Empresa   string    `json:"empresa"`
	CreatedAt time.Time `json:"created_at"`
}

// View types persisted per page.
const (
	ViewGrid  = "grid"
	ViewTable = "table"
)

// SelectedAll is the project filter value meaning "no filter".
const SelectedAll = "all"

// Preferences is the typed per-user view configuration, persisted
// last-write-wins in conex-preferences.
type Preferences struct {
	UID             string            `json:"uid"`
	UserUID         string            `json:"user_uid"`
	Empresa         string            `json:"empresa"`
	SelectedProject string            `json:"selected_project"`
	ViewTypes       map[string]string `json:"view_types"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// DefaultPreferences returns the fallback configuration used when no row
// exists or the stored row fails validation.
func DefaultPreferences(userUID, empresa string) *Preferences {
	return &Preferences{
		UserUID:         userUID,
		Empresa:         empresa,
		SelectedProject: SelectedAll,
		ViewTypes:       map[string]string{},
	}
}

// Normalize clamps invalid stored values back to defaults. projectExists
// reports whether a project uid is still present for the tenant; a vanished
// selection resets to "all".
func (p *Preferences) Normalize(projectExists func(uid string) bool) {
	if p.SelectedProject == "" {
		p.SelectedProject = SelectedAll
	}
	if p.SelectedProject != SelectedAll && !projectExists(p.SelectedProject) {
		p.SelectedProject = SelectedAll
	}
	if p.ViewTypes == nil {
		p.ViewTypes = map[string]string{}
	}
	for page, v := range p.ViewTypes {
		if v != ViewGrid && v != ViewTable {
			p.ViewTypes[page] = ViewGrid
		}
	}
}
