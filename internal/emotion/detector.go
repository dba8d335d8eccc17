// Package emotion classifies caller transcripts into a fixed set of emotion
// categories suitable for historical quote responses.
//
// Classification is keyword based: each category has a table of words and
// phrases matched case-insensitively at word boundaries. A configurable crisis
// keyword list is checked first and overrides all category scoring.
package emotion

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/voiceback/voiceback/internal/models"
	"github.com/voiceback/voiceback/internal/util"
)

// CrisisKeywordsEnvVar overrides the built-in crisis keyword list. The value
// may be a JSON array or a comma-separated list.
const CrisisKeywordsEnvVar = "CRISIS_KEYWORDS"

// emotionKeywords maps each scored category to its keyword table.
var emotionKeywords = map[models.EmotionCategory][]string{
	models.EmotionAnxiety: {
		"anxious", "anxiety", "worried", "worry", "nervous", "stressed",
		"stress", "panic", "panicked", "tension", "tense",
		"fearful", "afraid", "scared", "apprehensive", "restless",
		"jittery", "on edge",
	},
	models.EmotionSadness: {
		"sad", "sadness", "depressed", "depression", "down", "low",
		"blue", "melancholy", "grief", "grieving", "heartbroken",
		"disappointed", "hopeless", "despair", "lonely", "empty",
		"hurt", "pain", "anguish", "sorrow", "mourning",
	},
	models.EmotionFrustration: {
		"frustrated", "frustration", "mad", "irritated",
		"annoyed", "pissed", "furious", "rage", "upset", "bothered",
		"aggravated", "exasperated", "fed up", "resentful", "bitter",
		"outraged", "livid", "heated", "steamed", "i'm angry", "feel angry",
		"so angry", "really angry", "very angry", "getting angry",
	},
	models.EmotionUncertainty: {
		"uncertain", "uncertainty", "confused", "confusion", "lost",
		"unclear", "unsure", "doubt", "doubtful", "puzzled", "bewildered",
		"perplexed", "mixed up", "torn", "conflicted", "indecisive",
		"questioning", "wondering", "hesitant", "undecided",
	},
	models.EmotionOverwhelm: {
		"overwhelmed", "overwhelm", "too much", "overloaded", "swamped",
		"drowning", "suffocated", "exhausted", "burnt out", "burnout",
		"overworked", "pressured", "burdened", "weighed down", "crushed",
		"stretched thin", "at capacity", "maxed out",
	},
}

// defaultCrisisKeywords is the built-in safety list, overridable via
// environment or file.
var defaultCrisisKeywords = []string{
	"suicide", "kill myself", "end it all", "hurt myself", "no point",
	"give up", "can't go on", "want to die", "suicidal", "self harm",
}

// Detector classifies transcripts. It is immutable after construction and
// safe for concurrent use.
type Detector struct {
	defaultEmotion models.EmotionCategory
	crisisKeywords []string
	crisisPattern  *regexp.Regexp
	patterns       map[models.EmotionCategory]*regexp.Regexp
}

// Opts holds configuration options for the detector.
type Opts struct {
	DefaultEmotion models.EmotionCategory
	CrisisKeywords []string
	CrisisFile     string
}

// Option defines a configuration option for the detector.
type Option func(*Opts)

// WithDefaultEmotion sets the category returned for empty or unmatched input.
func WithDefaultEmotion(e models.EmotionCategory) Option {
	return func(o *Opts) { o.DefaultEmotion = e }
}

// WithCrisisKeywords replaces the crisis keyword list outright, bypassing
// environment and file sources.
func WithCrisisKeywords(keywords []string) Option {
	return func(o *Opts) { o.CrisisKeywords = keywords }
}

// WithCrisisKeywordsFile loads crisis keywords from the given file. A ".json"
// file is parsed as a JSON array; anything else is read one keyword per line.
func WithCrisisKeywordsFile(path string) Option {
	return func(o *Opts) { o.CrisisFile = path }
}

// NewDetector builds a detector with precompiled keyword patterns.
func NewDetector(opts ...Option) (*Detector, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DefaultEmotion == "" {
		cfg.DefaultEmotion = models.DefaultEmotion
	}
	if !models.IsScoredEmotion(cfg.DefaultEmotion) {
		return nil, fmt.Errorf("default emotion %q is not a scored category", cfg.DefaultEmotion)
	}

	crisisKeywords := resolveCrisisKeywords(cfg)
	crisisPattern, err := compileKeywordPattern(crisisKeywords)
	if err != nil {
		return nil, fmt.Errorf("compile crisis pattern: %w", err)
	}

	patterns := make(map[models.EmotionCategory]*regexp.Regexp, len(emotionKeywords))
	for category, keywords := range emotionKeywords {
		p, err := compileKeywordPattern(keywords)
		if err != nil {
			return nil, fmt.Errorf("compile %s pattern: %w", category, err)
		}
		patterns[category] = p
	}

	slog.Info("Detector initialized", "crisis_keywords", len(crisisKeywords), "default_emotion", cfg.DefaultEmotion)
	return &Detector{
		defaultEmotion: cfg.DefaultEmotion,
		crisisKeywords: crisisKeywords,
		crisisPattern:  crisisPattern,
		patterns:       patterns,
	}, nil
}

// resolveCrisisKeywords picks the crisis list: explicit option, then the
// environment variable, then a file source, then the built-in defaults.
func resolveCrisisKeywords(cfg Opts) []string {
	if len(cfg.CrisisKeywords) > 0 {
		return normalizeKeywords(cfg.CrisisKeywords)
	}

	if envKeywords := util.ParseStringListEnv(CrisisKeywordsEnvVar); len(envKeywords) > 0 {
		slog.Info("Detector: crisis keywords loaded from environment", "count", len(envKeywords))
		return normalizeKeywords(envKeywords)
	}

	if cfg.CrisisFile != "" {
		if keywords, err := loadCrisisKeywordsFile(cfg.CrisisFile); err != nil {
			slog.Error("Detector: failed to load crisis keywords file, using defaults", "path", cfg.CrisisFile, "error", err)
		} else if len(keywords) > 0 {
			slog.Info("Detector: crisis keywords loaded from file", "path", cfg.CrisisFile, "count", len(keywords))
			return normalizeKeywords(keywords)
		}
	}

	slog.Info("Detector: using default crisis keywords", "count", len(defaultCrisisKeywords))
	return normalizeKeywords(defaultCrisisKeywords)
}

func loadCrisisKeywordsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var keywords []string
		if err := json.Unmarshal(data, &keywords); err != nil {
			return nil, fmt.Errorf("invalid JSON keyword list: %w", err)
		}
		return keywords, nil
	}
	var keywords []string
	for _, line := range strings.Split(string(data), "\n") {
		if kw := strings.TrimSpace(line); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords, nil
}

func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if n := normalizeText(kw); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// compileKeywordPattern builds a single boundary-aware alternation so that a
// keyword matches whole words and phrases, never substrings of unrelated
// words ("sad" must not match inside "saddle").
func compileKeywordPattern(keywords []string) (*regexp.Regexp, error) {
	if len(keywords) == 0 {
		return nil, fmt.Errorf("keyword list is empty")
	}
	quoted := make([]string, len(keywords))
	for i, kw := range keywords {
		quoted[i] = regexp.QuoteMeta(kw)
	}
	return regexp.Compile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// normalizeText lowercases, applies unicode NFKD normalization, maps unicode
// spaces to plain spaces, and collapses runs of whitespace. Keywords and
// transcripts go through the same normalization so matching stays exact.
func normalizeText(text string) string {
	text = norm.NFKD.String(text)
	text = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, text)
	text = strings.ToLower(strings.TrimSpace(text))
	return strings.Join(strings.Fields(text), " ")
}

// Classify detects the primary emotion in a transcript. Empty or whitespace
// input returns the configured default category; crisis keywords override all
// scoring.
func (d *Detector) Classify(text string) models.EmotionCategory {
	normalized := normalizeText(text)
	if normalized == "" {
		slog.Warn("Detector.Classify: empty input, using default emotion", "default", d.defaultEmotion)
		return d.defaultEmotion
	}

	if matches := d.crisisPattern.FindAllString(normalized, -1); len(matches) > 0 {
		// Safety-critical signal: always logged loudly with the matched
		// keywords so monitoring can alert on it.
		slog.Error("Detector.Classify: CRISIS KEYWORDS DETECTED",
			"keywords", matches,
			"input", text,
			"timestamp", time.Now().UTC().Format(time.RFC3339))
		return models.EmotionCrisis
	}

	scores := make(map[models.EmotionCategory]int, len(d.patterns))
	maxScore := 0
	for category, pattern := range d.patterns {
		n := len(pattern.FindAllString(normalized, -1))
		scores[category] = n
		if n > maxScore {
			maxScore = n
		}
	}
	if maxScore == 0 {
		slog.Info("Detector.Classify: no emotion keywords found, using default", "default", d.defaultEmotion)
		return d.defaultEmotion
	}

	// Ties resolve in the fixed priority order, most specific first.
	for _, category := range models.ScoredEmotions {
		if scores[category] == maxScore {
			slog.Debug("Detector.Classify: detected emotion", "emotion", category, "score", maxScore)
			return category
		}
	}
	return d.defaultEmotion
}

// Classification carries the full diagnostic output of a classify pass.
type Classification struct {
	Emotion    models.EmotionCategory             `json:"emotion"`
	Confidence float64                            `json:"confidence"`
	Scores     map[models.EmotionCategory]float64 `json:"all_scores"`
	IsCrisis   bool                               `json:"is_crisis"`
}

// ClassifyWithConfidence returns the chosen category together with a crisis
// flag, a confidence normalized by word count, and the per-category score
// map. Intended for diagnostics and testing, not control flow.
func (d *Detector) ClassifyWithConfidence(text string) Classification {
	normalized := normalizeText(text)
	if normalized == "" {
		return Classification{
			Emotion:    d.defaultEmotion,
			Confidence: 0,
			Scores:     map[models.EmotionCategory]float64{},
			IsCrisis:   false,
		}
	}

	isCrisis := d.crisisPattern.MatchString(normalized)

	totalWords := len(strings.Fields(normalized))
	if totalWords == 0 {
		totalWords = 1
	}

	scores := make(map[models.EmotionCategory]float64, len(d.patterns))
	best := 0.0
	for category, pattern := range d.patterns {
		score := float64(len(pattern.FindAllString(normalized, -1))) / float64(totalWords)
		scores[category] = score
		if score > best {
			best = score
		}
	}

	emotion := d.defaultEmotion
	confidence := 0.0
	if best > 0 {
		for _, category := range models.ScoredEmotions {
			if scores[category] == best {
				emotion = category
				confidence = best
				break
			}
		}
	}

	return Classification{
		Emotion:    emotion,
		Confidence: confidence,
		Scores:     scores,
		IsCrisis:   isCrisis,
	}
}

// IsCrisisInput reports whether the text contains crisis keywords.
func (d *Detector) IsCrisisInput(text string) bool {
	normalized := normalizeText(text)
	if normalized == "" {
		return false
	}
	return d.crisisPattern.MatchString(normalized)
}

// CrisisKeywords returns a copy of the active crisis keyword list.
func (d *Detector) CrisisKeywords() []string {
	out := make([]string, len(d.crisisKeywords))
	copy(out, d.crisisKeywords)
	return out
}

// SupportedEmotions lists all categories the detector can return, including
// the crisis override.
func (d *Detector) SupportedEmotions() []models.EmotionCategory {
	out := make([]models.EmotionCategory, 0, len(models.ScoredEmotions)+1)
	out = append(out, models.ScoredEmotions...)
	return append(out, models.EmotionCrisis)
}
