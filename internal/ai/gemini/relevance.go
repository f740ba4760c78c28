package gemini

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/bidradar/internal/ai"
	"github.com/spigell/bidradar/internal/announcement"
	"github.com/spigell/bidradar/internal/utils"
)

//go:embed relevance.md
var relevancePrompt string

const (
	relevanceSystem      = "You are an expert procurement analyst."
	maxRelevanceContent  = 1000
	maxParseErrorPreview = 50
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

// RelevanceScorer rates how well an announcement answers a free-text query.
type RelevanceScorer struct {
	generator contentGenerator
	logger    *zap.Logger
}

func NewRelevanceScorer(generator contentGenerator, logger *zap.Logger) *RelevanceScorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelevanceScorer{generator: generator, logger: logger}
}

func (r *RelevanceScorer) ScoreRelevance(ctx context.Context, query string, a *announcement.Announcement) (*ai.Relevance, error) {
	if r == nil || r.generator == nil {
		return nil, errors.New("gemini relevance scorer is not initialized")
	}
	if a == nil {
		return nil, errors.New("announcement is required")
	}

	raw, err := r.generator.GenerateContent(ctx, relevanceSystem, buildRelevancePrompt(query, a))
	if err != nil {
		return nil, err
	}

	relevance, err := parseRelevance(raw)
	if err != nil {
		r.logger.Error("gemini relevance response is not json",
			zap.String("url", a.URL),
			zap.String("raw", utils.TruncateForLog(raw, maxParseErrorPreview)),
		)
		return nil, err
	}
	return relevance, nil
}

func buildRelevancePrompt(query string, a *announcement.Announcement) string {
	content := a.Body
	if runes := []rune(content); len(runes) > maxRelevanceContent {
		content = string(runes[:maxRelevanceContent])
	}
	prompt := strings.ReplaceAll(relevancePrompt, "{{QUERY}}", strings.TrimSpace(query))
	prompt = strings.ReplaceAll(prompt, "{{TITLE}}", a.Title)
	prompt = strings.ReplaceAll(prompt, "{{CONTENT}}", content)
	return prompt
}

func parseRelevance(raw string) (*ai.Relevance, error) {
	data, err := decodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ai.ErrParse, utils.TruncateForLog(raw, maxParseErrorPreview))
	}

	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		score = 0
	}
	reasoning := coerceString(data["reasoning"])
	if reasoning == "" {
		reasoning = "No reasoning provided."
	}

	return &ai.Relevance{Score: score, Reasoning: reasoning, Raw: raw}, nil
}
