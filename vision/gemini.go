package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tnicklin/dreamshop/errs"
	"github.com/tnicklin/dreamshop/logger"
	"github.com/tnicklin/dreamshop/models"
	"google.golang.org/genai"
)

// Analysis is what the tagger suggests for a generated image.
type Analysis struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Tagger describes an image for a product listing.
type Tagger interface {
	Analyze(ctx context.Context, img *models.GeneratedImage, prompt string) (*Analysis, error)
}

var _ Tagger = (*GeminiTagger)(nil)

const analyzePrompt = `You are writing a product listing for a print of the attached AI generated artwork.
The artwork was generated from this prompt: %q

Respond in JSON with these fields:
- title: a short catchy product title, at most 80 characters
- description: two sentences describing the artwork for a shop page
- tags: up to %d lowercase single or two word tags describing subject, style and colors

Respond ONLY with the JSON object, no markdown or other text.`

// GeminiTagger uses Gemini to analyze images.
type GeminiTagger struct {
	cfg      Config
	logger   logger.Logger
	generate func(ctx context.Context, model string, contents []*genai.Content) (string, error)
}

type Params struct {
	Config Config
	Logger logger.Logger
}

func NewGemini(ctx context.Context, p Params) (*GeminiTagger, error) {
	cfg := p.Config
	cfg.Defaults()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiTagger{
		cfg:    cfg,
		logger: logger.OrNop(p.Logger),
		generate: func(ctx context.Context, model string, contents []*genai.Content) (string, error) {
			result, err := client.Models.GenerateContent(ctx, model, contents, nil)
			if err != nil {
				return "", err
			}
			if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
				return "", fmt.Errorf("no response from gemini")
			}
			return result.Text(), nil
		},
	}, nil
}

func (g *GeminiTagger) Analyze(ctx context.Context, img *models.GeneratedImage, prompt string) (*Analysis, error) {
	const op = "vision.analyze"
	if img == nil || len(img.Data) == 0 {
		return nil, errs.Errorf(errs.InvalidArgument, op, "no image")
	}

	parts := []*genai.Part{
		genai.NewPartFromText(fmt.Sprintf(analyzePrompt, prompt, g.cfg.MaxTags)),
		{InlineData: &genai.Blob{Data: img.Data, MIMEType: img.ContentType}},
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	text, err := g.generate(ctx, g.cfg.Model, contents)
	if err != nil {
		return nil, errs.Classify(op, err, errs.Upstream)
	}
	g.logger.DebugW("gemini vision response", "response", text)

	analysis, err := parseAnalysis(text, g.cfg.MaxTags)
	if err != nil {
		return nil, errs.E(errs.Upstream, op, err)
	}
	return analysis, nil
}

func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response: %s", text)
	}
	return text[start : end+1], nil
}

func parseAnalysis(text string, maxTags int) (*Analysis, error) {
	jsonStr, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}

	var a Analysis
	if err := json.Unmarshal([]byte(jsonStr), &a); err != nil {
		return nil, fmt.Errorf("parse response JSON: %w", err)
	}

	a.Title = strings.TrimSpace(a.Title)
	a.Description = strings.TrimSpace(a.Description)
	a.Tags = normalizeTags(a.Tags, maxTags)
	return &a, nil
}

// normalizeTags lowercases, trims and dedupes tags. Commas are dropped since
// the storefront stores tags as a comma separated list.
func normalizeTags(tags []string, max int) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(t, ",", " ")))
		t = strings.Join(strings.Fields(t), " ")
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}
