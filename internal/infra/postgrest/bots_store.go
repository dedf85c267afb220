package postgrest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/conex-ia/agentesv2-sub000/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Bots store — list, lookup, create, field updates, hide
// ============================================================

// ListBots returns the visible bots of a tenant. Hidden rows
// (bot_exibir=false) stay in the table but never leave this query.
func (c *Client) ListBots(ctx context.Context, titular string) ([]domain.Bot, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.ListBots")
	defer span.End()
	span.SetAttributes(attribute.String("titular.uid", titular))

	var bots []domain.Bot

	err := c.execute(ctx, func() error {
		path := tablePath(domain.TableBots,
			Filters{}.Eq("bot_titular", titular).Eq("bot_exibir", "true"),
		)
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		if body == nil {
			bots = []domain.Bot{}
			return nil
		}
		if err := json.Unmarshal(body, &bots); err != nil {
			return &domain.ErrDecode{Table: domain.TableBots, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgrest/bots", Err: err}
	}
	return bots, nil
}

// GetBot fetches a single bot, hidden or not.
func (c *Client) GetBot(ctx context.Context, uid string) (*domain.Bot, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.GetBot")
	defer span.End()

	path := tablePath(domain.TableBots, Filters{}.Eq("uid", uid), "limit=1")
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var rows []domain.Bot
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, &domain.ErrDecode{Table: domain.TableBots, Err: err}
		}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "bot", ID: uid}
	}
	return &rows[0], nil
}

// CreateBot inserts a bot row. New bots start disconnected, unlinked
// and visible.
func (c *Client) CreateBot(ctx context.Context, b *domain.Bot) (*domain.Bot, error) {
	ctx, span := tracer.Start(ctx, "Postgrest.CreateBot")
	defer span.End()

	data := map[string]any{
		"uid":             b.UID,
		"bot_nome":        b.BotNome,
		"bot_numero":      b.BotNumero,
		"bot_status":      domain.BotStatusClose,
		"bot_ativo":       false,
		"bot_base":        "",
		"bot_titular":     b.BotTitular,
		"bot_exibir":      true,
		"bot_perfil":      b.BotPerfil,
		"bot_agente_nome": b.AgenteNome,
		"saudacao":        b.Saudacao,
		"prompt":          b.Prompt,
		"lgpd":            b.LGPD,
	}

	body, err := c.doPost(ctx, domain.TableBots, data)
	if err != nil {
		return nil, err
	}

	var rows []domain.Bot
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &domain.ErrDecode{Table: domain.TableBots, Err: err}
	}
	if len(rows) == 0 {
		return b, nil
	}
	return &rows[0], nil
}

// UpdateBot patches arbitrary bot columns by uid.
func (c *Client) UpdateBot(ctx context.Context, uid string, fields map[string]any) error {
	ctx, span := tracer.Start(ctx, "Postgrest.UpdateBot")
	defer span.End()

	path := tablePath(domain.TableBots, Filters{}.Eq("uid", uid))
	return c.doPatch(ctx, path, fields)
}

// LinkBotBase attaches or detaches a bot's knowledge base. An empty base
// always deactivates the bot; a bot is never active without a base.
func (c *Client) LinkBotBase(ctx context.Context, uid, base string, ativo bool) error {
	ctx, span := tracer.Start(ctx, "Postgrest.LinkBotBase")
	defer span.End()

	if base == "" {
		ativo = false
	}
	path := tablePath(domain.TableBots, Filters{}.Eq("uid", uid))
	return c.doPatch(ctx, path, map[string]any{
		"bot_base":  base,
		"bot_ativo": ativo,
	})
}

// DetachBotsFromBase unlinks every bot pointing at a base. Used when the
// base is deleted.
func (c *Client) DetachBotsFromBase(ctx context.Context, baseUID string) error {
	ctx, span := tracer.Start(ctx, "Postgrest.DetachBotsFromBase")
	defer span.End()

	path := tablePath(domain.TableBots, Filters{}.Eq("bot_base", baseUID))
	return c.doPatch(ctx, path, map[string]any{
		"bot_base":  "",
		"bot_ativo": false,
	})
}

// HideBot flips the visibility flag. The row survives so the external
// session integration keeps a target to write status updates into.
func (c *Client) HideBot(ctx context.Context, uid string) error {
	ctx, span := tracer.Start(ctx, "Postgrest.HideBot")
	defer span.End()

	path := tablePath(domain.TableBots, Filters{}.Eq("uid", uid))
	return c.doPatch(ctx, path, map[string]any{"bot_exibir": false})
}
