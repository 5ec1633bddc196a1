package analysis

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNoJSON is returned when model output holds no JSON object.
var ErrNoJSON = eris.New("analysis: no JSON object in model output")

var fenceRe = regexp.MustCompile("```(?:json)?\\s*(\\{[\\s\\S]*?\\})\\s*```")

// ExtractJSONObject pulls the first JSON object out of free-form model
// output. A markdown code fence is unwrapped first, then the text between
// the first '{' and the last '}' is parsed.
func ExtractJSONObject(text string) (map[string]any, error) {
	s := strings.TrimSpace(text)
	if strings.Contains(s, "```") {
		if m := fenceRe.FindStringSubmatch(s); m != nil {
			s = m[1]
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return nil, ErrNoJSON
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(s[start:end+1]), &obj); err != nil {
		return nil, eris.Wrap(err, "analysis: parse model JSON")
	}
	if obj == nil {
		return nil, ErrNoJSON
	}
	return obj, nil
}
