package gemini

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/bidradar/internal/ai"
)

//go:embed summarize.md
var summarizePrompt string

const (
	maxSummaryInputRunes = 10000
	maxSummaryKeywords   = 3
)

type structuredGenerator interface {
	GenerateStructured(ctx context.Context, system, message string, schema *genai.Schema) (string, error)
}

// Summarizer extracts a summary and eligibility constraints from announcement text.
type Summarizer struct {
	generator structuredGenerator
	logger    *zap.Logger
}

func NewSummarizer(generator structuredGenerator, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{generator: generator, logger: logger}
}

func (s *Summarizer) Summarize(ctx context.Context, text string) (*ai.Analysis, error) {
	if s == nil || s.generator == nil {
		return nil, errors.New("gemini summarizer is not initialized")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text to summarize is empty")
	}
	if runes := []rune(text); len(runes) > maxSummaryInputRunes {
		text = string(runes[:maxSummaryInputRunes])
	}

	raw, err := s.generator.GenerateStructured(ctx, summarizePrompt, "[공고 텍스트]\n"+text, analysisSchema())
	if err != nil {
		return nil, err
	}

	analysis, err := parseAnalysis(raw)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("announcement summarized",
		zap.String("region_code", analysis.RegionCode),
		zap.Strings("licenses", analysis.LicenseRequirements),
		zap.Float64("min_performance", analysis.MinPerformance),
	)
	return analysis, nil
}

func analysisSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary":  {Type: genai.TypeString},
			"keywords": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"region_code": {
				Type:        genai.TypeString,
				Description: "two digit province code, 00 when open nationwide",
			},
			"license_requirements": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"min_performance": {
				Type:        genai.TypeNumber,
				Description: "minimum prior performance amount in KRW, 0 when unrestricted",
			},
		},
		Required: []string{"summary", "keywords", "region_code", "license_requirements", "min_performance"},
	}
}

func parseAnalysis(raw string) (*ai.Analysis, error) {
	data, err := decodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("parse gemini summary: %w: %v", ai.ErrParse, err)
	}

	keywords := coerceStrings(data["keywords"])
	if len(keywords) > maxSummaryKeywords {
		keywords = keywords[:maxSummaryKeywords]
	}

	minPerformance := coerceFloat(data["min_performance"])
	if math.IsNaN(minPerformance) || minPerformance < 0 {
		minPerformance = 0
	}

	return &ai.Analysis{
		Summary:             coerceString(data["summary"]),
		Keywords:            keywords,
		RegionCode:          regionCode(data["region_code"]),
		LicenseRequirements: coerceStrings(data["license_requirements"]),
		MinPerformance:      minPerformance,
		Raw:                 raw,
	}, nil
}

// regionCode pads numeric codes to two digits and defaults to the national code.
func regionCode(v any) string {
	code := strings.Trim(coerceString(v), `"`)
	if code == "" {
		return "00"
	}
	if len(code) == 1 && unicode.IsDigit(rune(code[0])) {
		return "0" + code
	}
	return code
}
