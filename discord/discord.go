package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/tnicklin/dreamshop/errs"
	"github.com/tnicklin/dreamshop/logger"
	"github.com/tnicklin/dreamshop/pipeline"
)

var _ Discord = (*DefaultDiscord)(nil)

const (
	commandPrefix  = "!"
	commandTimeout = 30 * time.Second
)

type DefaultDiscord struct {
	session        *discordgo.Session
	cfg            Config
	pipeline       pipeline.Pipeline
	ledger         Ledger
	catalog        ProductAdmin
	syncer         Syncer
	limiter        *userLimiter
	logger         logger.Logger
	removeHandlers []func()
	commands       []*discordgo.ApplicationCommand

	// In-flight dreams run on baseCtx and are cancelled by Stop.
	mu         sync.Mutex
	closed     bool
	baseCtx    context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup
}

// Params configures DefaultDiscord. Ledger, Catalog and Syncer are optional;
// the commands that need them report that they are unavailable.
type Params struct {
	Config   Config
	Session  *discordgo.Session
	Pipeline pipeline.Pipeline
	Ledger   Ledger
	Catalog  ProductAdmin
	Syncer   Syncer
	Logger   logger.Logger
}

func New(p Params) (*DefaultDiscord, error) {
	cfg := p.Config
	cfg.Defaults()

	if p.Pipeline == nil {
		return nil, errors.New("discord: pipeline is required")
	}

	session := p.Session
	if session == nil {
		var err error
		session, err = discordgo.New("Bot " + cfg.Token)
		if err != nil {
			return nil, fmt.Errorf("create discord session: %w", err)
		}
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	return &DefaultDiscord{
		session:    session,
		cfg:        cfg,
		pipeline:   p.Pipeline,
		ledger:     p.Ledger,
		catalog:    p.Catalog,
		syncer:     p.Syncer,
		limiter:    newUserLimiter(cfg.RateLimitInterval, cfg.RateLimitBurst),
		logger:     logger.OrNop(p.Logger),
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}, nil
}

// Start registers handlers and slash commands. The session must already be
// open. Cancelling ctx cancels in-flight dreams.
func (c *DefaultDiscord) Start(ctx context.Context) error {
	c.removeHandlers = append(c.removeHandlers,
		c.session.AddHandler(c.handleMessage),
		c.session.AddHandler(c.handleInteraction),
	)
	context.AfterFunc(ctx, c.cancelBase)

	if c.cfg.SkipCommandRegistration {
		return nil
	}
	if c.session.State == nil || c.session.State.User == nil {
		return errors.New("discord: session is not open")
	}

	appID := c.session.State.User.ID
	for _, cmd := range slashCommands {
		created, err := c.session.ApplicationCommandCreate(appID, c.cfg.GuildID, cmd)
		if err != nil {
			return fmt.Errorf("register /%s: %w", cmd.Name, err)
		}
		c.commands = append(c.commands, created)
	}
	c.logger.InfoW("slash commands registered", "guild_id", c.cfg.GuildID, "count", len(c.commands))
	return nil
}

// Stop removes handlers, cancels in-flight dreams and waits for them to
// report back.
func (c *DefaultDiscord) Stop() error {
	for _, remove := range c.removeHandlers {
		remove()
	}
	c.removeHandlers = nil

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancelBase()
	c.wg.Wait()
	return nil
}

func (c *DefaultDiscord) WriteMessage(channelID, msg string) error {
	if c.session == nil {
		return errors.New("discord session is nil")
	}
	_, err := c.session.ChannelMessageSend(channelID, msg)
	return err
}

// dispatchDream checks the request and runs the pipeline in its own
// goroutine. Rejections are reported without calling the pipeline.
func (c *DefaultDiscord) dispatchDream(req pipeline.Request, rep reporter) {
	if strings.TrimSpace(req.Prompt) == "" {
		rep.Fail(errs.Errorf(errs.InvalidArgument, "discord.dream", "prompt must not be empty"))
		return
	}

	if ok, wait := c.limiter.Allow(req.UserID); !ok {
		rep.Notice(fmt.Sprintf("Slow down! You can dream again in %s.", wait.Round(time.Second)))
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		rep.Notice("The bot is shutting down, try again in a minute.")
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Observer = rep.Progress

	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				c.logger.ErrorW("dream panicked", "request_id", req.ID, "panic", r)
				rep.Fail(errs.Errorf(errs.Internal, "discord.dream", "unexpected failure"))
			}
		}()

		res, err := c.pipeline.Run(c.baseCtx, req)
		if err != nil {
			rep.Fail(err)
			return
		}
		rep.Done(res)
	}()
}

// hasAdminRole checks if the member has the configured admin role.
func (c *DefaultDiscord) hasAdminRole(s *discordgo.Session, guildID string, member *discordgo.Member) bool {
	if s == nil || member == nil {
		return false
	}

	roles, err := s.GuildRoles(guildID)
	if err != nil {
		c.logger.WarnW("failed to fetch guild roles", "guild_id", guildID, "error", err)
		return false
	}

	var adminRoleID string
	for _, role := range roles {
		if strings.EqualFold(role.Name, c.cfg.AdminRole) {
			adminRoleID = role.ID
			break
		}
	}

	if adminRoleID == "" {
		return false
	}

	for _, roleID := range member.Roles {
		if roleID == adminRoleID {
			return true
		}
	}

	return false
}
