package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/bidradar/internal/ai"
)

type stubGenerator struct {
	response    string
	err         error
	lastSystem  string
	lastMessage string
	lastSchema  *genai.Schema
}

func (s *stubGenerator) GenerateContent(_ context.Context, system, message string) (string, error) {
	s.lastSystem = system
	s.lastMessage = message
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) GenerateStructured(ctx context.Context, system, message string, schema *genai.Schema) (string, error) {
	s.lastSchema = schema
	return s.GenerateContent(ctx, system, message)
}

func TestSummarizerSummarize(t *testing.T) {
	stub := &stubGenerator{response: "```json\n" + `{
		"summary": "경기도 수원시 청사 구내식당 위탁운영자 모집",
		"keywords": ["구내식당", "위탁운영", "수원시", "청사"],
		"region_code": "41",
		"license_requirements": ["식품접객업"],
		"min_performance": "500,000,000"
	}` + "\n```"}

	summarizer := NewSummarizer(stub, zap.NewNop())
	analysis, err := summarizer.Summarize(context.Background(), "수원시청 구내식당 위탁운영 공고")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if analysis.RegionCode != "41" {
		t.Fatalf("expected region 41, got %q", analysis.RegionCode)
	}
	if len(analysis.Keywords) != maxSummaryKeywords {
		t.Fatalf("expected keywords capped at %d, got %v", maxSummaryKeywords, analysis.Keywords)
	}
	if analysis.MinPerformance != 500000000 {
		t.Fatalf("expected min performance 500000000, got %v", analysis.MinPerformance)
	}
	if len(analysis.LicenseRequirements) != 1 || analysis.LicenseRequirements[0] != "식품접객업" {
		t.Fatalf("unexpected licenses %v", analysis.LicenseRequirements)
	}
	if !strings.Contains(stub.lastSystem, "1억원") {
		t.Fatal("expected unit conversion examples in the system instruction")
	}
	if !strings.HasPrefix(stub.lastMessage, "[공고 텍스트]\n") {
		t.Fatalf("unexpected message %q", stub.lastMessage)
	}
	if stub.lastSchema == nil {
		t.Fatal("expected response schema to be sent")
	}
}

func TestParseAnalysisDefaults(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		raw        string
		wantRegion string
		wantMin    float64
		wantErr    bool
	}{
		{name: "missing region is national", raw: `{"summary": "s"}`, wantRegion: "00"},
		{name: "numeric region", raw: `{"region_code": 11, "min_performance": 100000000}`, wantRegion: "11", wantMin: 100000000},
		{name: "single digit region", raw: `{"region_code": 0}`, wantRegion: "00"},
		{name: "negative performance", raw: `{"region_code": "26", "min_performance": -1}`, wantRegion: "26"},
		{name: "garbage performance", raw: `{"region_code": "26", "min_performance": "1억"}`, wantRegion: "26"},
		{name: "prose around json", raw: "결과입니다: {\"region_code\": \"48\"} 끝", wantRegion: "48"},
		{name: "not json", raw: "요약: 없음", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			analysis, err := parseAnalysis(tc.raw)
			if tc.wantErr {
				if !errors.Is(err, ai.ErrParse) {
					t.Fatalf("expected ErrParse, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if analysis.RegionCode != tc.wantRegion {
				t.Fatalf("expected region %q, got %q", tc.wantRegion, analysis.RegionCode)
			}
			if analysis.MinPerformance != tc.wantMin {
				t.Fatalf("expected min performance %v, got %v", tc.wantMin, analysis.MinPerformance)
			}
		})
	}
}

func TestSummarizerPropagatesGeneratorError(t *testing.T) {
	stub := &stubGenerator{err: errors.New("quota")}
	summarizer := NewSummarizer(stub, zap.NewNop())

	if _, err := summarizer.Summarize(context.Background(), "text"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := summarizer.Summarize(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty text")
	}
}
