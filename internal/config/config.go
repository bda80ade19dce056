package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/atelierhq/atelier-backend/internal/logger"
	"github.com/atelierhq/atelier-backend/internal/utils"
)

// Config is built once at process start and passed into every component.
// Business logic never reads the environment directly.
type Config struct {
	Provider     string
	Model        string
	ActionsModel string

	DefaultTimezone    string
	DefaultMorningHour int

	BroadcastEveryNChars int
	MinArtifactWorkingMS int

	ContextTurns          int
	ContextMaxChars       int
	ContextUserChars      int
	ContextAssistantChars int

	DefaultInputRatePer1M  float64
	DefaultOutputRatePer1M float64
	ModelPricing           map[string]ModelPricing

	// Product-tuned gating policy. The exact keyword list is expected to be
	// revised over time, so it stays configurable instead of hard-coded in
	// the pipeline.
	FollowUpKeywords []string
	FollowUpMaxWords int

	StoreActionsRaw bool
}

type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

const pricingEnvPrefix = "AI_PRICE_"

var modelKeyPattern = regexp.MustCompile(`[^A-Z0-9]+`)

func Load(log *logger.Logger) Config {
	cfg := Config{
		Provider:     utils.GetEnv("AI_PROVIDER", "openai", log),
		Model:        utils.GetEnv("OPENAI_MODEL", "gpt-5.2", log),
		ActionsModel: utils.GetEnv("OPENAI_ACTIONS_MODEL", "", log),

		DefaultTimezone:    utils.GetEnv("DEFAULT_TIMEZONE", "Europe/Vienna", log),
		DefaultMorningHour: utils.GetEnvAsInt("DEFAULT_MORNING_HOUR", 8, log),

		BroadcastEveryNChars: utils.GetEnvAsInt("REPLY_BROADCAST_EVERY_N_CHARS", 10, log),
		MinArtifactWorkingMS: utils.GetEnvAsInt("ARTIFACT_MIN_WORKING_MS", 350, log),

		ContextTurns:          utils.GetEnvAsInt("CONTEXT_TURNS", 3, log),
		ContextMaxChars:       utils.GetEnvAsInt("CONTEXT_MAX_CHARS", 3000, log),
		ContextUserChars:      utils.GetEnvAsInt("CONTEXT_USER_CHARS", 220, log),
		ContextAssistantChars: utils.GetEnvAsInt("CONTEXT_ASSISTANT_CHARS", 280, log),

		DefaultInputRatePer1M:  utils.GetEnvAsFloat("AI_DEFAULT_INPUT_RATE_PER_1M_USD", 0, log),
		DefaultOutputRatePer1M: utils.GetEnvAsFloat("AI_DEFAULT_OUTPUT_RATE_PER_1M_USD", 0, log),

		FollowUpMaxWords: utils.GetEnvAsInt("ARTIFACT_FOLLOW_UP_MAX_WORDS", 12, log),
		StoreActionsRaw:  utils.GetEnvAsBool("AI_STORE_ACTIONS_RAW", false, log),
	}

	if cfg.ActionsModel == "" {
		cfg.ActionsModel = cfg.Model
	}

	cfg.FollowUpKeywords = splitList(utils.GetEnv(
		"ARTIFACT_FOLLOW_UP_KEYWORDS",
		"artifact,document,report,plan,summary,checklist,output,version",
		log,
	))

	cfg.ModelPricing = loadPricingTable()
	return cfg
}

// PricingForModel resolves per-1M-token USD rates for a model, falling back
// to the configured defaults (zero unless overridden).
func (c Config) PricingForModel(model string) ModelPricing {
	if p, ok := c.ModelPricing[NormalizeModelKey(model)]; ok {
		return p
	}
	return ModelPricing{InputPer1M: c.DefaultInputRatePer1M, OutputPer1M: c.DefaultOutputRatePer1M}
}

// NormalizeModelKey turns a model name into the key used by the pricing env
// vars, e.g. "gpt-5.2" -> "GPT_5_2".
func NormalizeModelKey(model string) string {
	key := modelKeyPattern.ReplaceAllString(strings.ToUpper(strings.TrimSpace(model)), "_")
	key = strings.Trim(key, "_")
	if key == "" {
		return "UNKNOWN"
	}
	return key
}

// Pricing overrides are declared as:
//
//	AI_PRICE_<MODEL>_INPUT_PER_1M_USD
//	AI_PRICE_<MODEL>_OUTPUT_PER_1M_USD
func loadPricingTable() map[string]ModelPricing {
	table := map[string]ModelPricing{}
	for _, entry := range os.Environ() {
		if !strings.HasPrefix(entry, pricingEnvPrefix) {
			continue
		}
		kv := strings.SplitN(entry, "=", 2)
		if len(kv) != 2 {
			continue
		}
		name := strings.TrimPrefix(kv[0], pricingEnvPrefix)
		rate, err := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64)
		if err != nil {
			continue
		}
		switch {
		case strings.HasSuffix(name, "_INPUT_PER_1M_USD"):
			model := strings.TrimSuffix(name, "_INPUT_PER_1M_USD")
			p := table[model]
			p.InputPer1M = rate
			table[model] = p
		case strings.HasSuffix(name, "_OUTPUT_PER_1M_USD"):
			model := strings.TrimSuffix(name, "_OUTPUT_PER_1M_USD")
			p := table[model]
			p.OutputPer1M = rate
			table[model] = p
		}
	}
	return table
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
