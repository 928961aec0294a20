package discord

import (
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/tnicklin/dreamshop/logger"
	"github.com/tnicklin/dreamshop/pipeline"
)

type embedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type responseEditor interface {
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// messageReporter posts one embed for a prefix command and edits it as the
// dream progresses.
type messageReporter struct {
	sender    embedSender
	channelID string
	prompt    string
	logger    logger.Logger

	mu        sync.Mutex
	messageID string
}

func newMessageReporter(s embedSender, channelID, prompt string, log logger.Logger) *messageReporter {
	return &messageReporter{sender: s, channelID: channelID, prompt: prompt, logger: log}
}

func (r *messageReporter) Progress(stage pipeline.Stage) { r.show(progressEmbed(r.prompt, stage)) }
func (r *messageReporter) Done(res *pipeline.Result)     { r.show(successEmbed(res)) }
func (r *messageReporter) Fail(err error)                { r.show(errorEmbed(err)) }
func (r *messageReporter) Notice(msg string)             { r.show(noticeEmbed(msg)) }

func (r *messageReporter) show(embed *discordgo.MessageEmbed) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.messageID != "" {
		_, err := r.sender.ChannelMessageEditEmbed(r.channelID, r.messageID, embed)
		if err == nil {
			return
		}
		r.logger.WarnW("failed to edit dream message", "message_id", r.messageID, "error", err)
	}

	msg, err := r.sender.ChannelMessageSendEmbed(r.channelID, embed)
	if err != nil {
		r.logger.ErrorW("failed to send dream message", "channel_id", r.channelID, "error", err)
		return
	}
	r.messageID = msg.ID
}

// interactionReporter edits the deferred response of a slash command.
type interactionReporter struct {
	editor      responseEditor
	interaction *discordgo.Interaction
	prompt      string
	logger      logger.Logger

	mu sync.Mutex
}

func newInteractionReporter(e responseEditor, i *discordgo.Interaction, prompt string, log logger.Logger) *interactionReporter {
	return &interactionReporter{editor: e, interaction: i, prompt: prompt, logger: log}
}

func (r *interactionReporter) Progress(stage pipeline.Stage) { r.show(progressEmbed(r.prompt, stage)) }
func (r *interactionReporter) Done(res *pipeline.Result)     { r.show(successEmbed(res)) }
func (r *interactionReporter) Fail(err error)                { r.show(errorEmbed(err)) }
func (r *interactionReporter) Notice(msg string)             { r.show(noticeEmbed(msg)) }

func (r *interactionReporter) show(embed *discordgo.MessageEmbed) {
	r.mu.Lock()
	defer r.mu.Unlock()

	embeds := []*discordgo.MessageEmbed{embed}
	if _, err := r.editor.InteractionResponseEdit(r.interaction, &discordgo.WebhookEdit{Embeds: &embeds}); err != nil {
		r.logger.ErrorW("failed to edit interaction response", "interaction_id", r.interaction.ID, "error", err)
	}
}
