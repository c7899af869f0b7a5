package injection

import (
	"regexp"
	"slices"
)

// Category groups rules by the kind of abuse they look for.
type Category string

const (
	CategoryBypass       Category = "instruction_bypass"
	CategoryRoleOverride Category = "role_override"
	CategoryEncoding     Category = "encoding_trick"
	CategorySteering     Category = "output_steering"
	CategoryExfiltration Category = "prompt_exfiltration"
	CategoryPayload      Category = "malicious_payload"
)

// Rule is one weighted detection pattern. Severity is in [0, 1].
type Rule struct {
	Name     string
	Category Category
	Severity float64
	re       *regexp.Regexp
}

func newRule(name string, category Category, severity float64, pattern string) Rule {
	return Rule{Name: name, Category: category, Severity: severity, re: regexp.MustCompile(pattern)}
}

var defaultRules = []Rule{
	// Attempts to replace the stage system instructions.
	newRule("override_previous", CategoryBypass, 0.95,
		`(?i)(ignore|disregard|forget)\s+(all\s+)?(the\s+)?(previous|prior|above|earlier)\s+(instructions|context|rules|prompts?)`),
	newRule("new_instructions", CategoryBypass, 0.8,
		`(?i)(new|updated|revised)\s+instructions?\s*:`),

	newRule("jailbreak", CategoryRoleOverride, 0.9,
		`\bDAN\b|(?i:do\s+anything\s+now|jailbreak|unrestricted\s+mode)`),
	newRule("fenced_system_block", CategoryRoleOverride, 0.9, "(?i)```system"),
	newRule("system_prefix", CategoryRoleOverride, 0.85, `(?im)^\s*system\s*:\s*`),
	newRule("privileged_mode", CategoryRoleOverride, 0.85,
		`(?i)(developer|debug|admin|root|god)\s+mode\s+(enabled|activated|on)`),
	newRule("you_are_now", CategoryRoleOverride, 0.7, `(?i)you\s+are\s+now\s+(a|an|the)\s+`),

	newRule("encoded_instruction", CategoryEncoding, 0.85,
		`(?i)(decode|execute|follow)\s+(the\s+|this\s+)?(base64|rot13|hex)`),

	newRule("forced_affirmation", CategorySteering, 0.75,
		`(?i)respond\s+with\s*:\s*(sure|absolutely|of course)`),

	// Generated code ends up in front of users; these ask it to leak the
	// pipeline's own configuration.
	newRule("reveal_system_prompt", CategoryExfiltration, 0.9,
		`(?i)(reveal|print|show|repeat|output)\s+(me\s+)?(your|the)\s+(system\s+prompt|hidden\s+instructions|initial\s+prompt)`),
	newRule("embed_credentials", CategoryExfiltration, 0.85,
		`(?i)(print|include|embed|output|hardcode)s?\s+(the\s+|your\s+)?(api[\s_-]?keys?|environment\s+variables|env\s+vars)`),

	// Payload topics alone only flag: plenty of legitimate apps are about
	// them ("a ransomware awareness quiz").
	newRule("malware_request", CategoryPayload, 0.7,
		`(?i)\b(keylogger|ransomware|credential\s+stealer|crypto\s*-?miner|botnet)\b`),
	newRule("credential_harvesting", CategoryPayload, 0.75,
		`(?i)(steal|harvest|exfiltrate|secretly\s+(send|upload))\s+(the\s+)?(user'?s?\s+)?(passwords|credentials|cookies|contacts|messages)`),
	newRule("phishing_clone", CategoryPayload, 0.7,
		`(?i)(phishing\s+(page|site|app|form)|fake\s+(bank|paypal|google|apple)\s+login)`),
}

// DefaultRules returns a copy of the built-in rules.
func DefaultRules() []Rule {
	return slices.Clone(defaultRules)
}
