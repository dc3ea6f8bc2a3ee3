package services

import (
	"context"
	"encoding/json"
	"strings"
	"unicode"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/config"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/jsonrecovery"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/models"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/observability"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/serviceinterfaces"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/tokens"
	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"
)

// minLanguageHits is the number of stop words needed before a detection is trusted
const minLanguageHits = 2

var stopWords = map[contextutils.Locale]map[string]struct{}{
	contextutils.LocaleEnglish: wordSet(
		"the", "and", "of", "to", "is", "are", "in", "that", "for", "with", "this", "be",
		"it", "on", "as", "by", "an", "or", "which", "from", "what", "how", "why", "was",
		"were", "can", "not", "your", "you", "its", "these", "has", "have", "should",
	),
	contextutils.LocaleIndonesian: wordSet(
		"yang", "dan", "di", "ke", "dari", "untuk", "dengan", "ini", "itu", "adalah",
		"pada", "dalam", "tidak", "akan", "atau", "juga", "oleh", "sebagai", "karena",
		"bagaimana", "apa", "mengapa", "para", "bahwa", "dapat", "lebih", "serta",
		"setiap", "jelaskan", "tersebut", "sebuah", "suatu",
	),
}

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// LanguageService keeps generated text in the requested language
type LanguageService struct {
	completion  serviceinterfaces.CompletionService
	templates   *AITemplateManager
	logger      *observability.Logger
	metrics     *observability.GenerationMetrics
	sampleSize  int
	temperature float64
	maxTokens   int
}

// NewLanguageService creates a language service. metrics may be nil.
func NewLanguageService(completion serviceinterfaces.CompletionService, cfg config.AssessmentConfig, templates *AITemplateManager, logger *observability.Logger, metrics *observability.GenerationMetrics) *LanguageService {
	return &LanguageService{
		completion:  completion,
		templates:   templates,
		logger:      logger,
		metrics:     metrics,
		sampleSize:  max(cfg.LanguageSampleSize, 1),
		temperature: cfg.Temperature * 0.5,
		maxTokens:   cfg.ResponseTokens(),
	}
}

// Detect scores text against the stop-word lists. ok is false when too few words
// matched or the scores tie.
func (s *LanguageService) Detect(text string) (locale contextutils.Locale, ok bool) {
	scores := make(map[contextutils.Locale]int, len(stopWords))
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		for l, set := range stopWords {
			if _, hit := set[w]; hit {
				scores[l]++
			}
		}
	}

	en, id := scores[contextutils.LocaleEnglish], scores[contextutils.LocaleIndonesian]
	switch {
	case en+id < minLanguageHits || en == id:
		return "", false
	case en > id:
		return contextutils.LocaleEnglish, true
	default:
		return contextutils.LocaleIndonesian, true
	}
}

// EnforceText rewrites text into target when it was detected in another language, or
// when detection is inconclusive and force is set. A failed rewrite keeps the original.
func (s *LanguageService) EnforceText(ctx context.Context, target ModelTarget, text string, locale contextutils.Locale, force bool) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	detected, ok := s.Detect(text)
	if ok && detected == locale {
		return text
	}
	if !ok && !force {
		return text
	}

	prompt := s.templates.MustRender(LanguageRewriteTemplate, AITemplateData{LanguageName: languageName(locale), Text: text})
	rewritten, err := s.rewrite(ctx, target, prompt, text)
	if err != nil {
		s.metrics.RecordLanguageRewrite(ctx, string(locale), false)
		s.logger.Warn(ctx, "Language rewrite failed, keeping original text", map[string]interface{}{
			"target_language": string(locale),
			"error":           err.Error(),
		})
		return text
	}

	out := jsonrecovery.CleanModelText(rewritten)
	s.metrics.RecordLanguageRewrite(ctx, string(locale), out != "")
	if out == "" {
		return text
	}
	return out
}

// EnforceBatch checks the first few items and, when they are in another language,
// rewrites the whole list in a single request. Any failure keeps the originals.
func (s *LanguageService) EnforceBatch(ctx context.Context, target ModelTarget, items []string, locale contextutils.Locale) []string {
	sample := make([]string, 0, s.sampleSize)
	for _, item := range items {
		if len(sample) == s.sampleSize {
			break
		}
		if strings.TrimSpace(item) != "" {
			sample = append(sample, item)
		}
	}
	if len(sample) == 0 {
		return items
	}
	detected, ok := s.Detect(strings.Join(sample, "\n"))
	if !ok || detected == locale {
		return items
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return items
	}
	prompt := s.templates.MustRender(LanguageBatchRewriteTemplate, AITemplateData{LanguageName: languageName(locale), Text: string(payload)})
	rewritten, err := s.rewrite(ctx, target, prompt, string(payload))
	if err != nil {
		s.metrics.RecordLanguageRewrite(ctx, string(locale), false)
		s.logger.Warn(ctx, "Batch language rewrite failed, keeping original items", map[string]interface{}{
			"target_language": string(locale),
			"items":           len(items),
			"error":           err.Error(),
		})
		return items
	}

	var out []string
	recovered, found := jsonrecovery.Extract(jsonrecovery.CleanModelText(rewritten))
	if found {
		if err := json.Unmarshal([]byte(recovered), &out); err != nil {
			out = nil
		}
	}
	if len(out) != len(items) {
		s.metrics.RecordLanguageRewrite(ctx, string(locale), false)
		s.logger.Warn(ctx, "Batch language rewrite returned a different number of items", map[string]interface{}{
			"target_language": string(locale),
			"expected":        len(items),
			"received":        len(out),
		})
		return items
	}

	s.metrics.RecordLanguageRewrite(ctx, string(locale), true)
	for i := range out {
		if strings.TrimSpace(out[i]) == "" {
			out[i] = items[i]
		}
	}
	return out
}

func (s *LanguageService) rewrite(ctx context.Context, target ModelTarget, prompt, original string) (string, error) {
	raw, err := s.completion.Complete(ctx, models.CompletionRequest{
		Provider:        target.Provider,
		Model:           target.Model,
		Messages:        []models.Message{{Role: models.RoleUser, Content: prompt}},
		Temperature:     s.temperature,
		MaxOutputTokens: min(max(tokens.Estimate(original)*2, config.MinResponseTokens), max(s.maxTokens, config.MinResponseTokens)),
	})
	if err != nil {
		return "", err
	}
	return raw.Text, nil
}
