package classification

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"elimfilters/internal/domain/catalog"
	"elimfilters/internal/metrics"
	"elimfilters/normalization"
)

// Layer слой правил, давший классификацию
type Layer string

const (
	LayerLearnedRegex  Layer = "learned_regex"
	LayerLearnedPrefix Layer = "learned_prefix"
	LayerStatic        Layer = "static"
	LayerNone          Layer = "none"
)

// Resolution результат разрешения кода.
// При Resolved=false заполнены только диагностические сигналы
type Resolution struct {
	Code     string       `json:"code"`
	Resolved bool         `json:"resolved"`
	Hint     catalog.Hint `json:"hint"`
	Layer    Layer        `json:"layer"`
	Rule     string       `json:"rule,omitempty"`
	Signals  Signals      `json:"-"`
}

// Err возвращает ErrUnresolvedClassification для неразрешенного кода
func (r Resolution) Err() error {
	if r.Resolved {
		return nil
	}
	return fmt.Errorf("%w: %q", catalog.ErrUnresolvedClassification, r.Code)
}

// Resolver каскад правил: выученные regex -> выученные префиксы -> статические
type Resolver struct {
	static []StaticRule
	rules  RuleSource
	logger *zap.Logger

	mu         sync.Mutex
	regexCache map[string]*regexp.Regexp
}

// NewResolver создает резолвер. rules может быть nil (только статические правила)
func NewResolver(static []StaticRule, rules RuleSource, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rules == nil {
		rules = StaticSource{}
	}
	return &Resolver{
		static:     static,
		rules:      rules,
		logger:     logger,
		regexCache: make(map[string]*regexp.Regexp),
	}
}

// StaticRules возвращает статические правила в порядке проверки
func (r *Resolver) StaticRules() []StaticRule {
	out := make([]StaticRule, len(r.static))
	copy(out, r.static)
	return out
}

// LearnedRules возвращает текущий снимок выученных правил
func (r *Resolver) LearnedRules() *RuleTable {
	return r.rules.Snapshot()
}

// Resolve классифицирует нормализованный код. hintDuty подставляется,
// когда сработавшее правило не задает класс эксплуатации
func (r *Resolver) Resolve(code string, hintDuty catalog.Duty) Resolution {
	code = normalization.NormalizeCode(code)
	res := Resolution{
		Code:    code,
		Layer:   LayerNone,
		Signals: NewSignals(code, hintDuty),
	}
	if code == "" {
		metrics.RuleResolutionsTotal.WithLabelValues(string(LayerNone)).Inc()
		return res
	}

	table := r.rules.Snapshot()
	var literal []LearnedRule
	for _, rule := range table.Entries() {
		if !rule.IsRegex() {
			literal = append(literal, rule)
			continue
		}
		re := r.compile(rule.Token)
		if re == nil || !re.MatchString(code) {
			continue
		}
		if hint, ok := r.learnedHint(rule, hintDuty); ok {
			return r.resolved(res, LayerLearnedRegex, rule.Token, hint)
		}
	}

	for _, rule := range literal {
		if !matchLiteral(rule.Token, code) {
			continue
		}
		if hint, ok := r.learnedHint(rule, hintDuty); ok {
			return r.resolved(res, LayerLearnedPrefix, rule.Token, hint)
		}
	}

	for i := range r.static {
		rule := &r.static[i]
		if !rule.Match(code) {
			continue
		}
		duty := rule.Duty
		if duty == catalog.DutyNone {
			duty = hintDuty
		}
		return r.resolved(res, LayerStatic, rule.Pattern, catalog.Hint{
			Family: rule.Family,
			Duty:   duty,
			Brand:  rule.Brand,
		})
	}

	metrics.RuleResolutionsTotal.WithLabelValues(string(LayerNone)).Inc()
	return res
}

func (r *Resolver) resolved(res Resolution, layer Layer, rule string, hint catalog.Hint) Resolution {
	res.Resolved = true
	res.Hint = hint
	res.Layer = layer
	res.Rule = rule
	res.Signals.Layer = layer
	metrics.RuleResolutionsTotal.WithLabelValues(string(layer)).Inc()
	return res
}

// learnedHint разбирает значение "FAMILY|DUTY". Пустой класс заменяется подсказкой
func (r *Resolver) learnedHint(rule LearnedRule, hintDuty catalog.Duty) (catalog.Hint, bool) {
	fd, err := catalog.ParseFamilyDuty(rule.Value)
	if err != nil {
		metrics.MalformedRulesTotal.Inc()
		r.logger.Warn("Skipping learned rule with malformed value",
			zap.String("token", rule.Token),
			zap.String("value", rule.Value),
			zap.Error(err),
		)
		return catalog.Hint{}, false
	}
	duty := fd.Duty
	if duty == catalog.DutyNone {
		duty = hintDuty
	}
	return catalog.Hint{Family: fd.Family, Duty: duty}, true
}

// compile кэширует скомпилированные regex-токены; невалидный токен кэшируется как nil
func (r *Resolver) compile(token string) *regexp.Regexp {
	r.mu.Lock()
	defer r.mu.Unlock()

	if re, ok := r.regexCache[token]; ok {
		return re
	}

	re, err := regexp.Compile("(?i)" + token)
	if err != nil {
		metrics.MalformedRulesTotal.Inc()
		r.logger.Warn("Skipping malformed learned rule",
			zap.String("token", token),
			zap.Error(fmt.Errorf("%w: %v", catalog.ErrMalformedLearnedRule, err)),
		)
		re = nil
	}
	r.regexCache[token] = re
	return re
}

// matchLiteral проверяет литеральный префикс без учета регистра.
// LONG_NUMERIC совпадает с кодами из 5+ цифр
func matchLiteral(token, code string) bool {
	if token == "" {
		return false
	}
	if token == LongNumericToken {
		return normalization.IsLongNumeric(code)
	}
	return strings.HasPrefix(code, strings.ToUpper(token))
}
