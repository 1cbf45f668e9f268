package classification

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"elimfilters/internal/domain/catalog"
)

//go:embed static_rules.yaml
var defaultStaticRules []byte

// StaticRule статическое правило префикса, написанное вручную
type StaticRule struct {
	Pattern string         `yaml:"pattern" json:"pattern"`
	Family  catalog.Family `yaml:"family" json:"family"`
	Duty    catalog.Duty   `yaml:"duty,omitempty" json:"duty,omitempty"`
	Brand   string         `yaml:"brand,omitempty" json:"brand,omitempty"`

	re *regexp.Regexp
}

// Match проверяет код по шаблону правила
func (r *StaticRule) Match(code string) bool {
	return r.re != nil && r.re.MatchString(code)
}

type staticRuleFile struct {
	Rules []StaticRule `yaml:"rules"`
}

// LoadStaticRules загружает упорядоченный список статических правил.
// Пустой путь означает встроенный набор. Невалидный шаблон - ошибка запуска
func LoadStaticRules(path string) ([]StaticRule, error) {
	data := defaultStaticRules
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read static rules: %w", err)
		}
	}
	return ParseStaticRules(data)
}

// ParseStaticRules разбирает YAML и компилирует шаблоны в исходном порядке
func ParseStaticRules(data []byte) ([]StaticRule, error) {
	var file staticRuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse static rules: %w", err)
	}

	rules := make([]StaticRule, 0, len(file.Rules))
	for i, rule := range file.Rules {
		family, err := catalog.ParseFamily(string(rule.Family))
		if err != nil {
			return nil, fmt.Errorf("static rule #%d (%s): %w", i+1, rule.Pattern, err)
		}
		duty, err := catalog.ParseDuty(string(rule.Duty))
		if err != nil {
			return nil, fmt.Errorf("static rule #%d (%s): %w", i+1, rule.Pattern, err)
		}
		re, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("static rule #%d: invalid pattern %q: %w", i+1, rule.Pattern, err)
		}

		rule.Family = family
		rule.Duty = duty
		rule.re = re
		rules = append(rules, rule)
	}

	return rules, nil
}
