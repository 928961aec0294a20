package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/tnicklin/dreamshop/pipeline"
)

const (
	maxPromptLength = 1000
	maxTitleLength  = 255
)

var slashCommands = []*discordgo.ApplicationCommand{
	{
		Name:        "dream",
		Description: "Generate an image from a prompt and list it for sale",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "prompt",
				Description: "What to dream about",
				Required:    true,
				MaxLength:   maxPromptLength,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "title",
				Description: "Product title, derived from the image when omitted",
				MaxLength:   maxTitleLength,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "price",
				Description: "Price in store currency, e.g. 24.99",
			},
		},
	},
	{
		Name:        "listings",
		Description: "Show your recent listings",
	},
}

func (c *DefaultDiscord) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	user := interactionUser(i.Interaction)
	if user == nil || user.Bot {
		return
	}

	data := i.ApplicationCommandData()
	switch data.Name {
	case "dream":
		opts := optionValues(data.Options)
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		})
		if err != nil {
			c.logger.ErrorW("failed to defer dream response", "error", err)
			return
		}
		c.dispatchDream(pipeline.Request{
			UserID:    user.ID,
			ChannelID: i.ChannelID,
			Prompt:    opts["prompt"],
			Title:     opts["title"],
			Price:     opts["price"],
		}, newInteractionReporter(s, i.Interaction, opts["prompt"], c.logger))

	case "listings":
		ctx, cancel := context.WithTimeout(c.baseCtx, commandTimeout)
		defer cancel()

		content, err := c.cmdListings(ctx, user.ID)
		if err != nil {
			c.logger.ErrorW("command failed", "command", data.Name, "error", err)
			content = "Could not load your listings, try again later."
		}
		err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: content,
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		})
		if err != nil {
			c.logger.ErrorW("failed to send response", "error", err)
		}
	}
}

// interactionUser returns the invoking user for guild and DM interactions.
func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func optionValues(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]string {
	m := make(map[string]string, len(opts))
	for _, o := range opts {
		if o.Type == discordgo.ApplicationCommandOptionString {
			m[o.Name] = o.StringValue()
		}
	}
	return m
}
