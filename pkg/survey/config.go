package survey

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrConfiguration marks a survey structure that cannot produce a question space.
var ErrConfiguration = errors.New("survey: invalid configuration")

// Format selects the syntax of a structure file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Config mirrors the survey structure file. Field names follow the published
// file format, which is keyed in Chinese.
type Config struct {
	Intro      *Intro      `json:"說明" yaml:"說明"`
	BasicInfo  []Field     `json:"基本資料" yaml:"基本資料"`
	Dimensions []Dimension `json:"架構" yaml:"架構"`
}

// Intro is the text shown before the questionnaire starts.
type Intro struct {
	Title      string     `json:"標題" yaml:"標題"`
	Content    IntroLines `json:"內容" yaml:"內容"`
	ButtonText string     `json:"按鈕文字" yaml:"按鈕文字"`
}

// IntroLines accepts either a single string or a list of lines.
type IntroLines []string

func (l *IntroLines) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = IntroLines{single}
		return nil
	}
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return fmt.Errorf("intro content: %w", err)
	}
	*l = lines
	return nil
}

func (l *IntroLines) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*l = IntroLines{node.Value}
		return nil
	}
	var lines []string
	if err := node.Decode(&lines); err != nil {
		return fmt.Errorf("intro content: %w", err)
	}
	*l = lines
	return nil
}

// Field describes one respondent detail collected before the comparisons.
type Field struct {
	ID          string   `json:"編號" yaml:"編號"`
	Name        string   `json:"名稱" yaml:"名稱"`
	Type        string   `json:"類型" yaml:"類型"`
	Required    bool     `json:"必填" yaml:"必填"`
	Options     []string `json:"選項,omitempty" yaml:"選項,omitempty"`
	Placeholder string   `json:"說明,omitempty" yaml:"說明,omitempty"`
}

// Dimension is a top-level comparison category.
type Dimension struct {
	Name        string      `json:"構面" yaml:"構面"`
	Code        string      `json:"代碼" yaml:"代碼"`
	Description string      `json:"說明" yaml:"說明"`
	Criteria    []Criterion `json:"準則" yaml:"準則"`
}

// Criterion is a leaf item compared against every other criterion.
type Criterion struct {
	Code        string   `json:"編號" yaml:"編號"`
	Name        string   `json:"名稱" yaml:"名稱"`
	Description string   `json:"說明" yaml:"說明"`
	Examples    []string `json:"舉例,omitempty" yaml:"舉例,omitempty"`
}

// Loaded is a parsed structure file together with the digest of its raw text.
type Loaded struct {
	Config *Config
	Digest string
}

// LoadConfig reads and validates a structure file. The format follows the file extension;
// anything other than .yaml/.yml is treated as JSON.
func LoadConfig(path string) (*Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	format := FormatJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	}
	cfg, err := ParseConfig(data, format)
	if err != nil {
		return nil, err
	}
	return &Loaded{Config: cfg, Digest: Digest(data)}, nil
}

// ParseConfig decodes and validates a structure document.
func ParseConfig(data []byte, format Format) (*Config, error) {
	cfg := new(Config)
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the required sections and the question-space preconditions.
func (c *Config) Validate() error {
	if c.Intro == nil {
		return fmt.Errorf("%w: missing section 說明", ErrConfiguration)
	}
	if c.BasicInfo == nil {
		return fmt.Errorf("%w: missing section 基本資料", ErrConfiguration)
	}
	if c.Dimensions == nil {
		return fmt.Errorf("%w: missing section 架構", ErrConfiguration)
	}
	return validateDimensions(c.Dimensions)
}

// Digest fingerprints the raw structure text. Sessions record it so a changed
// structure can be detected before answers are exported.
func Digest(configText []byte) string {
	sum := sha256.Sum256(configText)
	return hex.EncodeToString(sum[:])
}

func validateDimensions(dimensions []Dimension) error {
	if len(dimensions) < 2 {
		return fmt.Errorf("%w: at least 2 dimensions are required, got %d", ErrConfiguration, len(dimensions))
	}

	dimensionCodes := make(map[string]struct{}, len(dimensions))
	criteriaCodes := make(map[string]struct{})
	for _, d := range dimensions {
		if err := validateCode("dimension", d.Code); err != nil {
			return err
		}
		if _, dup := dimensionCodes[d.Code]; dup {
			return fmt.Errorf("%w: duplicate dimension code %q", ErrConfiguration, d.Code)
		}
		dimensionCodes[d.Code] = struct{}{}

		for _, c := range d.Criteria {
			if err := validateCode("criterion", c.Code); err != nil {
				return err
			}
			if _, dup := criteriaCodes[c.Code]; dup {
				return fmt.Errorf("%w: duplicate criterion code %q", ErrConfiguration, c.Code)
			}
			criteriaCodes[c.Code] = struct{}{}
		}
	}

	if len(criteriaCodes) < 2 {
		return fmt.Errorf("%w: at least 2 criteria are required, got %d", ErrConfiguration, len(criteriaCodes))
	}
	return nil
}

// Codes are embedded in "<category>:<a>|<b>" keys, so they must be non-empty and free of '|'.
func validateCode(kind, code string) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("%w: empty %s code", ErrConfiguration, kind)
	}
	if strings.Contains(code, "|") {
		return fmt.Errorf("%w: %s code %q contains '|'", ErrConfiguration, kind, code)
	}
	return nil
}
