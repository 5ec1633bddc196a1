package author

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Domain reputation base scores.
const (
	TrustedScore  = 88
	ModerateScore = 75
	UnknownScore  = 65
)

// Reputation is the curated domain table. Subdomains inherit their parent's
// standing.
type Reputation struct {
	Trusted  []string `yaml:"trusted"`
	Moderate []string `yaml:"moderate"`
}

// DefaultReputation returns the built-in table.
func DefaultReputation() *Reputation {
	return &Reputation{
		Trusted: []string{
			"reuters.com", "apnews.com", "bbc.com", "bbc.co.uk", "nytimes.com",
			"theguardian.com", "washingtonpost.com", "npr.org", "economist.com",
			"wsj.com", "ft.com", "thehindu.com", "indianexpress.com",
			"nature.com", "science.org", "who.int", "cdc.gov", "nih.gov",
			"factcheck.org", "snopes.com", "politifact.com",
		},
		Moderate: []string{
			"cnn.com", "foxnews.com", "nbcnews.com", "cbsnews.com", "abcnews.go.com",
			"usatoday.com", "bloomberg.com", "forbes.com", "aljazeera.com",
			"ndtv.com", "indiatimes.com", "hindustantimes.com", "news18.com",
			"theprint.in", "scroll.in", "huffpost.com", "time.com", "newsweek.com",
		},
	}
}

// LoadReputation reads a YAML table from path. Lists present in the file
// replace the defaults; absent lists keep them.
func LoadReputation(path string) (*Reputation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "author: read reputation file %s", path)
	}
	var file Reputation
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "author: parse reputation file")
	}

	r := DefaultReputation()
	if len(file.Trusted) > 0 {
		r.Trusted = file.Trusted
	}
	if len(file.Moderate) > 0 {
		r.Moderate = file.Moderate
	}
	return r, nil
}

// Score returns the base credibility for host.
func (r *Reputation) Score(host string) int {
	switch {
	case hostIn(host, r.Trusted):
		return TrustedScore
	case hostIn(host, r.Moderate):
		return ModerateScore
	default:
		return UnknownScore
	}
}

// Credibility adds the prior-article boost to base and clamps to [0,100].
func Credibility(base, priorArticles int) int {
	score := base + articleBoost(priorArticles)
	return max(0, min(100, score))
}

func articleBoost(n int) int {
	switch {
	case n >= 5:
		return 15
	case n >= 3:
		return 10
	case n >= 1:
		return 5
	default:
		return 0
	}
}
