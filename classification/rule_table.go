package classification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const learnedPrefixesKey = "learnedPrefixes"

// LongNumericToken токен-сентинел для кодов из 5+ цифр
const LongNumericToken = "LONG_NUMERIC"

// RuleTable таблица выученных правил token -> "FAMILY|DUTY".
// Сохраняет порядок ключей файла: от него зависит порядок проверки правил.
// Добавление только новых токенов (first-write-wins)
type RuleTable struct {
	tokens []string
	values map[string]string
	extra  []extraField
}

type extraField struct {
	key   string
	value json.RawMessage
}

// NewRuleTable создает пустую таблицу
func NewRuleTable() *RuleTable {
	return &RuleTable{values: make(map[string]string)}
}

// Len количество выученных правил
func (t *RuleTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.tokens)
}

// Get возвращает значение правила для токена
func (t *RuleTable) Get(token string) (string, bool) {
	if t == nil {
		return "", false
	}
	v, ok := t.values[token]
	return v, ok
}

// Has проверяет, выучен ли уже токен
func (t *RuleTable) Has(token string) bool {
	_, ok := t.Get(token)
	return ok
}

// Add добавляет правило, если токена еще нет. Возвращает false, если токен уже выучен
func (t *RuleTable) Add(token, value string) bool {
	if t.values == nil {
		t.values = make(map[string]string)
	}
	if _, exists := t.values[token]; exists {
		return false
	}
	t.tokens = append(t.tokens, token)
	t.values[token] = value
	return true
}

// Tokens возвращает токены в порядке таблицы
func (t *RuleTable) Tokens() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.tokens))
	copy(out, t.tokens)
	return out
}

// Entries возвращает пары в порядке таблицы
func (t *RuleTable) Entries() []LearnedRule {
	if t == nil {
		return nil
	}
	out := make([]LearnedRule, 0, len(t.tokens))
	for _, token := range t.tokens {
		out = append(out, LearnedRule{Token: token, Value: t.values[token]})
	}
	return out
}

// Clone возвращает независимую копию таблицы
func (t *RuleTable) Clone() *RuleTable {
	clone := NewRuleTable()
	if t == nil {
		return clone
	}
	for _, token := range t.tokens {
		clone.Add(token, t.values[token])
	}
	clone.extra = append(clone.extra, t.extra...)
	return clone
}

// LearnedRule одна запись таблицы выученных правил
type LearnedRule struct {
	Token string `json:"token"`
	Value string `json:"value"`
}

// IsRegex сообщает, является ли токен regex-шаблоном (начинается с ^)
func (r LearnedRule) IsRegex() bool {
	return strings.HasPrefix(r.Token, "^")
}

// MarshalJSON пишет файл правил {"learnedPrefixes": {...}} с сохранением порядка
func (t *RuleTable) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{\n  \"" + learnedPrefixesKey + "\": {")
	for i, token := range t.tokens {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(token)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(t.values[token])
		if err != nil {
			return nil, err
		}
		buf.WriteString("\n    ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(value)
	}
	if len(t.tokens) > 0 {
		buf.WriteString("\n  ")
	}
	buf.WriteByte('}')
	for _, field := range t.extra {
		key, err := json.Marshal(field.key)
		if err != nil {
			return nil, err
		}
		buf.WriteString(",\n  ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(field.value)
	}
	buf.WriteString("\n}\n")
	return buf.Bytes(), nil
}

// UnmarshalJSON читает файл правил, сохраняя порядок токенов.
// Повторные ключи игнорируются (первый выигрывает), нестроковые значения пропускаются
func (t *RuleTable) UnmarshalJSON(data []byte) error {
	*t = RuleTable{values: make(map[string]string)}

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to read rule file key: %w", err)
		}
		key, _ := keyTok.(string)

		if key != learnedPrefixesKey {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return fmt.Errorf("failed to read field %q: %w", key, err)
			}
			t.extra = append(t.extra, extraField{key: key, value: raw})
			continue
		}

		open, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%s: %w", learnedPrefixesKey, err)
		}
		if open == nil {
			continue
		}
		if d, ok := open.(json.Delim); !ok || d != '{' {
			return fmt.Errorf("invalid rule file: %s must be an object", learnedPrefixesKey)
		}
		for dec.More() {
			tokenTok, err := dec.Token()
			if err != nil {
				return fmt.Errorf("failed to read learned token: %w", err)
			}
			token, _ := tokenTok.(string)

			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return fmt.Errorf("failed to read learned value for %q: %w", token, err)
			}
			var value string
			if err := json.Unmarshal(raw, &value); err != nil {
				continue
			}
			t.Add(token, value)
		}
		if err := expectDelim(dec, '}'); err != nil {
			return fmt.Errorf("%s: %w", learnedPrefixesKey, err)
		}
	}

	return expectDelim(dec, '}')
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("invalid rule file: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("invalid rule file: expected %q, got %v", want, tok)
	}
	return nil
}

// LoadRuleTable читает таблицу из файла. Отсутствующий файл - пустая таблица
func LoadRuleTable(path string) (*RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewRuleTable(), nil
		}
		return nil, fmt.Errorf("failed to read rule table: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return NewRuleTable(), nil
	}

	table := NewRuleTable()
	if err := json.Unmarshal(data, table); err != nil {
		return nil, fmt.Errorf("failed to parse rule table %s: %w", path, err)
	}
	return table, nil
}

// SaveRuleTable атомарно записывает таблицу: временный файл в том же каталоге + rename
func SaveRuleTable(path string, table *RuleTable) error {
	data, err := table.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode rule table: %w", err)
	}
	return WriteFileAtomic(path, data)
}

// WriteFileAtomic записывает файл так, что читатели видят либо старое, либо новое содержимое
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
