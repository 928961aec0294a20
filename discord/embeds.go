package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/tnicklin/dreamshop/errs"
	"github.com/tnicklin/dreamshop/models"
	"github.com/tnicklin/dreamshop/pipeline"
)

const (
	colorSuccess  = 0x2ECC71
	colorError    = 0xE74C3C
	colorProgress = 0x3498DB
	colorNotice   = 0xF1C40F

	maxEmbedDescription = 4096
	maxPromptPreview    = 200
)

var stageOrder = []pipeline.Stage{
	pipeline.StageGenerating,
	pipeline.StageUploading,
	pipeline.StageTagging,
	pipeline.StageListing,
}

func progressEmbed(prompt string, stage pipeline.Stage) *discordgo.MessageEmbed {
	var sb strings.Builder
	reached := false
	for _, s := range stageOrder {
		switch {
		case s == stage:
			reached = true
			fmt.Fprintf(&sb, "▶️ **%s...**\n", s)
		case !reached:
			fmt.Fprintf(&sb, "✅ %s\n", s)
		default:
			fmt.Fprintf(&sb, "⏳ %s\n", s)
		}
	}

	return &discordgo.MessageEmbed{
		Title:       "Dreaming...",
		Description: sb.String(),
		Color:       colorProgress,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Prompt", Value: truncate(prompt, maxPromptPreview)},
		},
	}
}

func successEmbed(res *pipeline.Result) *discordgo.MessageEmbed {
	l := res.Listing
	link := l.StoreURL
	if link == "" {
		link = l.AdminURL
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Price", Value: l.Price, Inline: true},
	}
	if l.Vendor != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Vendor", Value: l.Vendor, Inline: true})
	}
	if len(l.Tags) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Tags", Value: truncate(strings.Join(l.Tags, ", "), 1024)})
	}

	e := &discordgo.MessageEmbed{
		Title:       truncate(l.Title, 256),
		URL:         link,
		Description: fmt.Sprintf("Your dream is for sale: %s", link),
		Color:       colorSuccess,
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Product " + fmt.Sprint(l.ID)},
	}
	if res.Asset != nil {
		e.Image = &discordgo.MessageEmbedImage{URL: res.Asset.URL}
	}
	return e
}

func errorEmbed(err error) *discordgo.MessageEmbed {
	kind := errs.KindOf(err)
	return &discordgo.MessageEmbed{
		Title:       kind.String(),
		Description: truncate(errs.Message(err), maxEmbedDescription),
		Color:       colorError,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Error code " + kind.Code()},
	}
}

func noticeEmbed(msg string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Description: msg,
		Color:       colorNotice,
	}
}

// formatListings renders a user's ledger rows as a chat message.
func formatListings(recs []models.ListingRecord) string {
	if len(recs) == 0 {
		return "You have no listings yet. Try `/dream` or `!dream <prompt>`."
	}

	var sb strings.Builder
	sb.WriteString("**Your recent listings:**\n")
	for _, r := range recs {
		status := ""
		if r.Status == models.ListingRemoved {
			status = " ~~removed~~"
		}
		fmt.Fprintf(&sb, "• [%s](%s) $%s (%s)%s\n",
			r.Title, r.ProductURL, r.Price, r.CreatedAt.Format("Jan 2"), status)
	}
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
