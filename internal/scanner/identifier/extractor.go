// Package identifier turns decoded QR payloads into student identifiers.
//
// Rules run in a fixed order and the first match wins. Structured and
// contextual signals are trusted before the permissive "any digit run" rule so
// incidental numbers in free text do not shadow an explicit identifier.
package identifier

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"qrscan/pkg/domain"
)

// ErrUnrecognized is returned when no rule yields a valid identifier.
var ErrUnrecognized = errors.New("payload carries no recognizable identifier")

// Rule names the interpretation that produced an identifier.
type Rule string

const (
	RuleAttendanceJSON Rule = "attendance_json"
	RuleProfileURL     Rule = "profile_url"
	RuleKeyValue       Rule = "key_value"
	RulePlainDigits    Rule = "plain_digits"
	RuleDigitRun       Rule = "digit_run"
)

var (
	profileURLPattern = regexp.MustCompile(`(?i)/(?:profile-student|student|perfil-estudiante|estudiante)/(\d{8,10})(?:\D|$)`)
	keyValuePattern   = regexp.MustCompile(`(?i)\b(?:dni|id)\s*[=:]\s*(\d{8,10})(?:\D|$)`)
	digitRunPattern   = regexp.MustCompile(`(?:^|\D)(\d{8,10})(?:\D|$)`)

	attendanceTypes = map[string]bool{"attendance": true, "asistencia": true}
	typeFields      = []string{"type", "tipo"}
	idFields        = []string{"dni", "DNI", "id"}
)

// Extractor applies the rule cascade. The zero value is ready to use.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// Extract returns the identifier carried by payload or ErrUnrecognized.
func (e *Extractor) Extract(payload string) (domain.DNI, error) {
	dni, _, err := e.ExtractWithRule(payload)
	return dni, err
}

// ExtractWithRule also reports which rule matched.
func (e *Extractor) ExtractWithRule(payload string) (domain.DNI, Rule, error) {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return "", "", ErrUnrecognized
	}

	if v, ok := fromAttendanceJSON(trimmed); ok {
		return domain.DNI(v), RuleAttendanceJSON, nil
	}
	if m := profileURLPattern.FindStringSubmatch(trimmed); m != nil {
		return domain.DNI(m[1]), RuleProfileURL, nil
	}
	if m := keyValuePattern.FindStringSubmatch(trimmed); m != nil {
		return domain.DNI(m[1]), RuleKeyValue, nil
	}
	if domain.IsDNI(trimmed) {
		return domain.DNI(trimmed), RulePlainDigits, nil
	}
	if m := digitRunPattern.FindStringSubmatch(trimmed); m != nil {
		return domain.DNI(m[1]), RuleDigitRun, nil
	}
	return "", "", ErrUnrecognized
}

// Extract runs the default extractor.
func Extract(payload string) (domain.DNI, error) {
	return (&Extractor{}).Extract(payload)
}

// ExtractWithRule runs the default extractor and reports the matching rule.
func ExtractWithRule(payload string) (domain.DNI, Rule, error) {
	return (&Extractor{}).ExtractWithRule(payload)
}

func fromAttendanceJSON(payload string) (string, bool) {
	if !strings.HasPrefix(payload, "{") {
		return "", false
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return "", false
	}

	tagged := false
	for _, field := range typeFields {
		if s, ok := obj[field].(string); ok && attendanceTypes[strings.ToLower(strings.TrimSpace(s))] {
			tagged = true
			break
		}
	}
	if !tagged {
		return "", false
	}

	for _, field := range idFields {
		var candidate string
		switch v := obj[field].(type) {
		case string:
			candidate = strings.TrimSpace(v)
		case json.Number:
			candidate = v.String()
		default:
			continue
		}
		if domain.IsDNI(candidate) {
			return candidate, true
		}
	}
	return "", false
}
