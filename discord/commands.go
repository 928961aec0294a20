package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/bwmarrin/discordgo"
	"github.com/lithammer/dedent"
	"github.com/tnicklin/dreamshop/models"
	"github.com/tnicklin/dreamshop/pipeline"
	"github.com/tnicklin/dreamshop/shopify"
	"github.com/tnicklin/dreamshop/store"
)

// parseCommand splits "!name rest of line" into the lowercased name and the
// trimmed remainder.
func parseCommand(content string) (name, rest string, ok bool) {
	if !strings.HasPrefix(content, commandPrefix) {
		return "", "", false
	}
	content = strings.TrimSpace(strings.TrimPrefix(content, commandPrefix))
	if content == "" {
		return "", "", false
	}
	i := strings.IndexFunc(content, unicode.IsSpace)
	if i < 0 {
		return strings.ToLower(content), "", true
	}
	name, rest = content[:i], content[i:]
	return strings.ToLower(name), strings.TrimSpace(rest), true
}

func (c *DefaultDiscord) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	// Only respond in the configured command channel
	if c.cfg.CommandChannel != "" && m.ChannelID != c.cfg.CommandChannel {
		return
	}

	cmd, rest, ok := parseCommand(m.Content)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.baseCtx, commandTimeout)
	defer cancel()

	var response string
	var err error

	switch cmd {
	case "dream":
		c.dispatchDream(pipeline.Request{
			UserID:    m.Author.ID,
			ChannelID: m.ChannelID,
			Prompt:    rest,
		}, newMessageReporter(s, m.ChannelID, rest, c.logger))
		return
	case "listings":
		response, err = c.cmdListings(ctx, m.Author.ID)
	case "listing":
		admin := c.hasAdminRole(s, m.GuildID, m.Member)
		response, err = c.cmdListing(ctx, admin, strings.Fields(rest))
	case "help":
		response = c.cmdHelp()
	default:
		return
	}

	if err != nil {
		c.logger.ErrorW("command failed", "command", cmd, "error", err)
		response = fmt.Sprintf("Error: %v", err)
	}

	if response != "" {
		if _, err := s.ChannelMessageSend(m.ChannelID, response); err != nil {
			c.logger.ErrorW("failed to send response", "error", err)
		}
	}
}

// cmdListings handles !listings and /listings.
func (c *DefaultDiscord) cmdListings(ctx context.Context, userID string) (string, error) {
	if c.ledger == nil {
		return "", errors.New("listing ledger not configured")
	}
	recs, err := c.ledger.ListListingsByUser(ctx, userID, c.cfg.ListingsLimit)
	if err != nil {
		return "", err
	}
	return formatListings(recs), nil
}

// cmdListing handles listing management commands (admin only)
// Usage: !listing price <product_id> <price> | !listing delete <product_id> | !listing sync
func (c *DefaultDiscord) cmdListing(ctx context.Context, isAdmin bool, args []string) (string, error) {
	if !isAdmin {
		return fmt.Sprintf("This command requires the `%s` role.", c.cfg.AdminRole), nil
	}

	if len(args) < 1 {
		return "Usage: `!listing price <product_id> <price>`, `!listing delete <product_id>` or `!listing sync`", nil
	}

	subCmd := strings.ToLower(args[0])
	subArgs := args[1:]

	switch subCmd {
	case "price":
		return c.cmdListingPrice(ctx, subArgs)
	case "delete":
		return c.cmdListingDelete(ctx, subArgs)
	case "sync":
		return c.cmdListingSync(ctx)
	default:
		return "Unknown subcommand. Use `price`, `delete` or `sync`.", nil
	}
}

func (c *DefaultDiscord) cmdListingPrice(ctx context.Context, args []string) (string, error) {
	if c.catalog == nil {
		return "", errors.New("catalog not configured")
	}
	if len(args) != 2 {
		return "Usage: `!listing price <product_id> <price>`\nExample: `!listing price 632910392 24.99`", nil
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Sprintf("Invalid product id **%s**.", args[0]), nil
	}
	price := strings.TrimPrefix(args[1], "$")
	if err := models.ValidatePrice(price); err != nil {
		return fmt.Sprintf("Invalid price: %v", err), nil
	}

	if _, err := c.catalog.UpdateProduct(ctx, id, shopify.ProductUpdate{Price: &price}); err != nil {
		return "", fmt.Errorf("failed to update product: %w", err)
	}

	if c.ledger != nil {
		if err := c.ledger.UpdateListingPrice(ctx, id, price); err != nil && !errors.Is(err, store.ErrNotFound) {
			c.logger.WarnW("failed to update ledger price", "product_id", id, "error", err)
		}
	}

	return fmt.Sprintf("Product **%d** now costs $%s.", id, price), nil
}

func (c *DefaultDiscord) cmdListingDelete(ctx context.Context, args []string) (string, error) {
	if c.catalog == nil {
		return "", errors.New("catalog not configured")
	}
	if len(args) != 1 {
		return "Usage: `!listing delete <product_id>`", nil
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Sprintf("Invalid product id **%s**.", args[0]), nil
	}

	// An already deleted product still gets its ledger row retired.
	if err := c.catalog.DeleteProduct(ctx, id); err != nil && !errors.Is(err, shopify.ErrNotFound) {
		return "", fmt.Errorf("failed to delete product: %w", err)
	}

	if c.ledger != nil {
		if err := c.ledger.MarkListingRemoved(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
			c.logger.WarnW("failed to mark listing removed", "product_id", id, "error", err)
		}
	}

	return fmt.Sprintf("Deleted product **%d**.", id), nil
}

func (c *DefaultDiscord) cmdListingSync(ctx context.Context) (string, error) {
	if c.syncer == nil {
		return "", errors.New("listing sync not configured")
	}
	res, err := c.syncer.SyncOnce(ctx)
	msg := fmt.Sprintf("Checked **%d** listings: %d removed, %d repriced.", res.Checked, res.Removed, res.Repriced)
	if err != nil {
		c.logger.WarnW("manual listing sync incomplete", "error", err)
		msg += "\nSome listings could not be checked, see logs."
	}
	return msg, nil
}

func (c *DefaultDiscord) cmdHelp() string {
	return strings.TrimSpace(dedent.Dedent(fmt.Sprintf(`
		**Available Commands:**
		`+"```"+`
		/dream prompt:<text> [title] [price]  - Generate an image and list it for sale
		!dream <prompt>                       - Same as /dream with default title and price
		/listings or !listings                - Show your recent listings
		!help                                 - Show this help message
		`+"```"+`
		**Admin Commands** (requires %s role):
		`+"```"+`
		!listing price <product_id> <price> - Change a product's price
		!listing delete <product_id>        - Delete a product from the store
		!listing sync                       - Check listings against the store now
		`+"```", c.cfg.AdminRole)))
}
