package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"script_ai_server/internal/ai/utils"

	"github.com/rs/zerolog"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

var (
	// thinkPattern matches one reasoning span emitted by R1-style models.
	thinkPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)
	// fencePattern captures the body of a ```json fenced block. First match wins.
	fencePattern = regexp.MustCompile("```json\\s*([\\s\\S]+?)\\s*```")

	errNotObject = errors.New("top-level value is not an object")
)

// ParseStrategy names the parser that recovered a value.
type ParseStrategy string

const (
	StrategyStrict  ParseStrategy = "strict"
	StrategyLenient ParseStrategy = "lenient"
)

// ExtractionResult is Recovered(value) when Value is non-nil and NotRecovered otherwise.
type ExtractionResult struct {
	Value    map[string]any
	Strategy ParseStrategy
}

// Recovered reports whether a mapping was recovered from the model text.
func (r ExtractionResult) Recovered() bool {
	return r.Value != nil
}

func recovered(value map[string]any, strategy ParseStrategy) ExtractionResult {
	return ExtractionResult{Value: value, Strategy: strategy}
}

func notRecovered() ExtractionResult {
	return ExtractionResult{}
}

// Extractor turns raw model output into a mapping. It performs no I/O besides logging.
type Extractor struct {
	logger zerolog.Logger
}

func NewExtractor(logger zerolog.Logger) *Extractor {
	return &Extractor{logger: logger.With().Str("component", "ai_extractor").Logger()}
}

// Extract strips the reasoning span, narrows to the first ```json block if there is
// one, then tries the strict parser followed by the lenient one. It never fails
// loudly: anything it cannot read comes back as NotRecovered.
func (e *Extractor) Extract(raw string) ExtractionResult {
	e.logger.Debug().Str("raw", raw).Msg("raw AI response before cleaning")

	cleaned := CleanResponse(raw)
	e.logger.Debug().Str("cleaned", cleaned).Msg("cleaned AI response")

	if cleaned == "" {
		e.logger.Warn().Msg("AI response is empty after cleaning")
		return notRecovered()
	}

	value, err := parseStrict(cleaned)
	if err == nil {
		return recovered(value, StrategyStrict)
	}
	e.logger.Debug().Err(err).Msg("strict JSON parse failed, trying lenient literal parse")

	value, err = parseLenient(cleaned)
	if err == nil {
		return recovered(value, StrategyLenient)
	}
	e.logger.Error().Err(err).Msg("extracted JSON is invalid")

	return notRecovered()
}

// CleanResponse applies the reasoning strip and fence narrowing and trims the result.
func CleanResponse(text string) string {
	text = strings.TrimSpace(StripThinking(text))
	if block, ok := ExtractFencedJSON(text); ok {
		return strings.TrimSpace(block)
	}
	return text
}

// StripThinking removes the first <think>...</think> span. Without a closing marker
// the text is returned as is.
func StripThinking(text string) string {
	loc := thinkPattern.FindStringIndex(text)
	if loc == nil {
		return text
	}
	return text[:loc[0]] + text[loc[1]:]
}

// ExtractFencedJSON returns the body of the first ```json fenced block.
func ExtractFencedJSON(text string) (string, bool) {
	m := fencePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// parseStrict is plain RFC 8259 JSON.
func parseStrict(text string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	return asObject(v)
}

// parseLenient accepts what models tend to emit when they drift towards a Python
// dict literal: single-quoted strings, trailing commas, comments, unquoted keys and
// True/False/None. Strings and literals are normalized first, json5 does the rest.
func parseLenient(text string) (m map[string]any, err error) {
	// json5 is fed arbitrary model text.
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("lenient parser panic: %v", r)
		}
	}()

	var v any
	if err := json5.Unmarshal([]byte(utils.NormalizePythonLiterals(text)), &v); err != nil {
		return nil, err
	}
	return asObject(v)
}

func asObject(v any) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok || m == nil {
		return nil, errNotObject
	}
	return m, nil
}
