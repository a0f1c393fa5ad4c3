// Package benchfile reads benchmark and corpus files and writes result files.
package benchfile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"ragbench/internal/domain"
)

const maxLineBytes = 4 << 20

// stringList accepts either a single string or a list of strings.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one != "" {
			*s = stringList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*s = many
	return nil
}

func (s *stringList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		if node.Value != "" {
			*s = stringList{node.Value}
		}
		return nil
	}
	var many []string
	if err := node.Decode(&many); err != nil {
		return err
	}
	*s = many
	return nil
}

// benchRecord is the on-disk item. gold_doc_contains is an older name for must_contain.
// answerable is optional; when present it must agree with gold_answer.
type benchRecord struct {
	ID              string     `json:"id" yaml:"id" validate:"required"`
	Question        string     `json:"question" yaml:"question" validate:"required"`
	GoldAnswer      *string    `json:"gold_answer" yaml:"gold_answer"`
	Answerable      *bool      `json:"answerable" yaml:"answerable"`
	MustContain     stringList `json:"must_contain" yaml:"must_contain"`
	GoldDocContains stringList `json:"gold_doc_contains" yaml:"gold_doc_contains"`
}

func (r benchRecord) check() error {
	if r.Answerable == nil {
		return nil
	}
	hasGold := r.GoldAnswer != nil
	if *r.Answerable != hasGold {
		return fmt.Errorf("answerable=%t but gold_answer is %s", *r.Answerable, presence(hasGold))
	}
	return nil
}

func presence(ok bool) string {
	if ok {
		return "set"
	}
	return "null"
}

func (r benchRecord) item() domain.BenchItem {
	must := r.MustContain
	if len(must) == 0 {
		must = r.GoldDocContains
	}
	return domain.BenchItem{
		ID:          strings.TrimSpace(r.ID),
		Question:    strings.TrimSpace(r.Question),
		GoldAnswer:  r.GoldAnswer,
		MustContain: []string(must),
	}
}

type corpusRecord struct {
	Text   string `json:"text" validate:"required"`
	Source string `json:"source"`
}

// Loader reads benchmark and corpus files.
type Loader struct {
	validate *validator.Validate
}

// NewLoader creates a loader.
func NewLoader() *Loader {
	return &Loader{validate: validator.New()}
}

// LoadBench reads benchmark items. The format follows the extension: .yaml/.yml
// holds a list (or an "items" list), .json an array, anything else is JSONL.
// Item IDs must be unique.
func (l *Loader) LoadBench(path string) ([]domain.BenchItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read bench file: %w", domain.ErrConfiguration, err)
	}

	var records []benchRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		records, err = decodeYAMLBench(data)
	case ".json":
		err = json.Unmarshal(data, &records)
	default:
		records, err = decodeJSONL[benchRecord](data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse bench file %s: %w", domain.ErrConfiguration, path, err)
	}

	items := make([]domain.BenchItem, 0, len(records))
	seen := make(map[string]int, len(records))
	for i, rec := range records {
		if err := l.validate.Struct(rec); err != nil {
			return nil, fmt.Errorf("%w: bench item %d in %s: %w", domain.ErrConfiguration, i+1, path, err)
		}
		if err := rec.check(); err != nil {
			return nil, fmt.Errorf("%w: bench item %d in %s: %w", domain.ErrConfiguration, i+1, path, err)
		}
		item := rec.item()
		if prev, ok := seen[item.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate bench item id %q (items %d and %d)", domain.ErrConfiguration, item.ID, prev, i+1)
		}
		seen[item.ID] = i + 1
		items = append(items, item)
	}
	return items, nil
}

// LoadCorpus reads a JSONL corpus of {"text", "source"} records. A missing source
// becomes "unknown".
func (l *Loader) LoadCorpus(path string) ([]domain.CorpusRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read corpus: %w", domain.ErrConfiguration, err)
	}
	records, err := decodeJSONL[corpusRecord](data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse corpus %s: %w", domain.ErrConfiguration, path, err)
	}

	out := make([]domain.CorpusRecord, 0, len(records))
	for i, rec := range records {
		if err := l.validate.Struct(rec); err != nil {
			return nil, fmt.Errorf("%w: corpus record %d in %s: %w", domain.ErrConfiguration, i+1, path, err)
		}
		source := rec.Source
		if source == "" {
			source = "unknown"
		}
		out = append(out, domain.CorpusRecord{Text: rec.Text, Source: source})
	}
	return out, nil
}

func decodeYAMLBench(data []byte) ([]benchRecord, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	doc := root.Content[0]

	var records []benchRecord
	if doc.Kind == yaml.MappingNode {
		var wrapped struct {
			Items []benchRecord `yaml:"items"`
		}
		if err := doc.Decode(&wrapped); err != nil {
			return nil, err
		}
		return wrapped.Items, nil
	}
	if err := doc.Decode(&records); err != nil {
		return nil, err
	}
	return records, nil
}

// decodeJSONL decodes one value per non-blank line.
func decodeJSONL[T any](data []byte) ([]T, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var out []T
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
