package vision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnicklin/dreamshop/errs"
	"github.com/tnicklin/dreamshop/logger"
	"github.com/tnicklin/dreamshop/models"
	"google.golang.org/genai"
)

func TestParseAnalysis(t *testing.T) {
	text := "```json\n" + `{"title":" Koi at Dusk ","description":"Glowing fish.","tags":["Koi","neon, glow","koi","  water  "]}` + "\n```"

	a, err := parseAnalysis(text, 10)
	require.NoError(t, err)
	assert.Equal(t, "Koi at Dusk", a.Title)
	assert.Equal(t, "Glowing fish.", a.Description)
	assert.Equal(t, []string{"koi", "neon glow", "water"}, a.Tags)
}

func TestParseAnalysis_LimitsTags(t *testing.T) {
	a, err := parseAnalysis(`{"tags":["a","b","c","d"]}`, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, a.Tags)
}

func TestParseAnalysis_NoJSON(t *testing.T) {
	_, err := parseAnalysis("I cannot help with that.", 5)
	assert.Error(t, err)
}

func TestAnalyze(t *testing.T) {
	var gotModel string
	g := &GeminiTagger{
		cfg:    Config{Model: "test-model", MaxTags: 5},
		logger: logger.NewNop(),
		generate: func(ctx context.Context, model string, contents []*genai.Content) (string, error) {
			gotModel = model
			require.Len(t, contents, 1)
			require.Len(t, contents[0].Parts, 2)
			assert.Contains(t, contents[0].Parts[0].Text, "a neon koi")
			assert.Equal(t, "image/png", contents[0].Parts[1].InlineData.MIMEType)
			return `{"title":"Neon Koi","description":"d","tags":["koi"]}`, nil
		},
	}

	a, err := g.Analyze(context.Background(),
		&models.GeneratedImage{Data: []byte{1, 2, 3}, ContentType: "image/png"},
		"a neon koi",
	)
	require.NoError(t, err)
	assert.Equal(t, "test-model", gotModel)
	assert.Equal(t, "Neon Koi", a.Title)
	assert.Equal(t, []string{"koi"}, a.Tags)
}

func TestAnalyze_Failure(t *testing.T) {
	g := &GeminiTagger{
		cfg:    Config{Model: "m", MaxTags: 5},
		logger: logger.NewNop(),
		generate: func(context.Context, string, []*genai.Content) (string, error) {
			return "", errors.New("quota exceeded")
		},
	}

	_, err := g.Analyze(context.Background(), &models.GeneratedImage{Data: []byte{1}}, "p")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Upstream))
}
