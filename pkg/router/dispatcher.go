package router

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/antzucaro/matchr"
)

// ParamKind identifies what a CommandSpec extracts from the matched
// utterance, per spec §4.5 ("phrases with parameter extraction — first/
// second number, keyword enum").
type ParamKind int

const (
	ParamFirstNumber ParamKind = iota
	ParamSecondNumber
	ParamKeywordEnum
)

// ParamSpec describes one parameter a CommandSpec extracts.
type ParamSpec struct {
	Name string
	Kind ParamKind

	// Enum lists the accepted values when Kind is ParamKeywordEnum; the
	// first one found as a substring of the utterance wins.
	Enum []string
}

var numberPattern = regexp.MustCompile(`-?\d+(\.\d+)?`)

// CommandSpec is a declarative operator command: a canonical phrase fuzzy-
// matched against the transcript, parameters extracted from it, and an
// HTTP side effect fired on a successful match.
type CommandSpec struct {
	Name   string
	Phrase string

	// MatchThreshold is the minimum Jaro-Winkler similarity (matchr) to
	// accept a fuzzy match; radio operators misspeak, so exact equality
	// alone is too brittle.
	MatchThreshold float64

	Params []ParamSpec

	// Endpoint and Method describe the HTTP side effect. Endpoint may
	// contain "{name}" placeholders filled from extracted params.
	Endpoint string
	Method   string

	// Confirmation is the text returned by Dispatch on success; it may
	// also contain "{name}" placeholders.
	Confirmation string
}

// HTTPDispatcher matches a transcript against a list of CommandSpecs using
// fuzzy phrase similarity, extracts parameters, fires the HTTP side effect,
// and returns the confirmation text.
type HTTPDispatcher struct {
	specs  []CommandSpec
	client *http.Client
}

// NewHTTPDispatcher creates a dispatcher over specs using client for side
// effects. A nil client defaults to a 5-second-timeout http.Client.
func NewHTTPDispatcher(specs []CommandSpec, client *http.Client) *HTTPDispatcher {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPDispatcher{specs: specs, client: client}
}

// Dispatch implements router.Dispatcher.
func (d *HTTPDispatcher) Dispatch(text string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(text))

	var best *CommandSpec
	var bestScore float64
	for i := range d.specs {
		spec := &d.specs[i]
		score := matchr.JaroWinkler(normalized, strings.ToLower(spec.Phrase))
		if score >= spec.MatchThreshold && score > bestScore {
			best = spec
			bestScore = score
		}
	}
	if best == nil {
		return "", false
	}

	values, ok := extractParams(normalized, best.Params)
	if !ok {
		return "", false
	}

	if best.Endpoint != "" {
		if err := d.fireSideEffect(best, values); err != nil {
			return "", false
		}
	}

	return fillTemplate(best.Confirmation, values), true
}

func extractParams(text string, params []ParamSpec) (map[string]string, bool) {
	values := make(map[string]string)
	numbers := numberPattern.FindAllString(text, -1)

	for _, p := range params {
		switch p.Kind {
		case ParamFirstNumber:
			if len(numbers) < 1 {
				return nil, false
			}
			values[p.Name] = numbers[0]
		case ParamSecondNumber:
			if len(numbers) < 2 {
				return nil, false
			}
			values[p.Name] = numbers[1]
		case ParamKeywordEnum:
			found := false
			for _, candidate := range p.Enum {
				if strings.Contains(text, strings.ToLower(candidate)) {
					values[p.Name] = candidate
					found = true
					break
				}
			}
			if !found {
				return nil, false
			}
		}
	}
	return values, true
}

func fillTemplate(tmpl string, values map[string]string) string {
	out := tmpl
	for k, v := range values {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

func (d *HTTPDispatcher) fireSideEffect(spec *CommandSpec, values map[string]string) error {
	method := spec.Method
	if method == "" {
		method = http.MethodPost
	}
	url := fillTemplate(spec.Endpoint, values)

	ctx, cancel := context.WithTimeout(context.Background(), d.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return fmt.Errorf("dispatcher: build request for %s: %w", spec.Name, err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatcher: side effect for %s: %w", spec.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("dispatcher: %s returned status %d", spec.Name, resp.StatusCode)
	}
	return nil
}

// ParseFloat is a small helper for callers that need a numeric param as a
// float64 rather than the raw matched string.
func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
