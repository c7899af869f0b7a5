package secrets

import (
	"regexp"
	"slices"
)

// Pattern is a named secret shape.
type Pattern struct {
	Name string
	re   *regexp.Regexp
}

var defaultPatterns = []Pattern{
	// Completion provider and gateway credentials.
	{"LLM API Key", regexp.MustCompile(`sk-(?:proj-|ant-(?:api\d{2}-)?)?[A-Za-z0-9_-]{20,}`)},
	{"Google API Key", regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`)},
	{"Appgen Access Token", regexp.MustCompile(`appgen-[a-z0-9]+-[a-z0-9]{40}`)},
	{"JWT", regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)},

	// Infrastructure.
	{"Connection String", regexp.MustCompile(`(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|rediss?|amqps?)://[^\s"']+`)},
	{"Private Key", regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`)},
	{"GCP Service Account Key", regexp.MustCompile(`"private_key":\s*"-----BEGIN`)},
	{"AWS Access Key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},

	// Third-party services that generated apps commonly integrate.
	{"GitHub Token", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`)},
	{"Stripe Secret Key", regexp.MustCompile(`[sr]k_live_[A-Za-z0-9]{24,}`)},
	{"Slack Token", regexp.MustCompile(`xox[abprs]-[A-Za-z0-9-]{10,}`)},
}

// DefaultPatterns returns a copy of the built-in patterns.
func DefaultPatterns() []Pattern {
	return slices.Clone(defaultPatterns)
}
