package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mike-a-ellis/vecquery/internal/storage"
)

// Plan is one provision -> index -> query run, loaded from YAML.
type Plan struct {
	Collection  string `yaml:"collection"`
	TextField   string `yaml:"text_field"`
	VectorField string `yaml:"vector_field"`
	Dimensions  int    `yaml:"dimensions"`
	Metric      string `yaml:"metric"`

	// Documents are indexed verbatim, one document per entry.
	Documents []string `yaml:"documents"`
	// Sources are doublestar globs of markdown files; each H1/H2 section becomes a document.
	// Relative patterns resolve against the plan file's directory.
	Sources []string `yaml:"sources"`
	// GitHub optionally pulls markdown files from a repository directory.
	GitHub *GitHubSource `yaml:"github,omitempty"`

	Query QueryPlan `yaml:"query"`
}

// GitHubSource names a repository directory holding markdown files.
type GitHubSource struct {
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`
	Path  string `yaml:"path"`
	Ref   string `yaml:"ref"`
}

// QueryPlan is the similarity query run after indexing.
type QueryPlan struct {
	Text       string `yaml:"text"`
	K          int    `yaml:"k"`
	Candidates int    `yaml:"candidates"`
}

// petDocuments is the default demo corpus.
var petDocuments = []string{
	"A cat is a domesticated animal that likes to sleep.",
	"A dog is a loyal companion that likes to play.",
	"A bird is a feathered creature that likes to fly.",
	"A fish is an aquatic animal that likes to swim.",
	"A lion is a wild animal that likes to hunt.",
}

func basePlan() *Plan {
	return &Plan{
		Collection:  "pets",
		TextField:   storage.DefaultTextField,
		VectorField: storage.DefaultVectorField,
		Dimensions:  storage.DefaultDimensions,
		Metric:      string(storage.MetricCosine),
		Query: QueryPlan{
			K:          5,
			Candidates: 10,
		},
	}
}

// DefaultPlan returns the pets demo: five sentences and one water query.
func DefaultPlan() *Plan {
	p := basePlan()
	p.Documents = append([]string(nil), petDocuments...)
	p.Query.Text = "What animal likes water?"
	return p
}

// LoadPlan reads a plan from path. An empty path returns DefaultPlan.
// Fields missing from the file keep the defaults of basePlan; the document
// list and query text never inherit the demo values.
func LoadPlan(path string) (*Plan, error) {
	if path == "" {
		return DefaultPlan(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}

	p := basePlan()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i, pattern := range p.Sources {
		if !filepath.IsAbs(pattern) {
			p.Sources[i] = filepath.Join(dir, pattern)
		}
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	return p, nil
}

// Schema converts the collection settings into a storage schema.
func (p *Plan) Schema() (storage.Schema, error) {
	metric, err := storage.ParseMetric(p.Metric)
	if err != nil {
		return storage.Schema{}, err
	}
	s := storage.Schema{
		Name:        p.Collection,
		TextField:   p.TextField,
		VectorField: p.VectorField,
		Dimensions:  p.Dimensions,
		Metric:      metric,
	}
	return s, s.Validate()
}

// Validate checks the schema and query settings.
func (p *Plan) Validate() error {
	if _, err := p.Schema(); err != nil {
		return err
	}
	if p.Query.K < 1 {
		return fmt.Errorf("%w: query.k must be at least 1, got %d", ErrInvalidSetting, p.Query.K)
	}
	if p.Query.Candidates < p.Query.K {
		return fmt.Errorf("%w: query.candidates (%d) must be >= query.k (%d)",
			ErrInvalidSetting, p.Query.Candidates, p.Query.K)
	}
	if g := p.GitHub; g != nil && (g.Owner == "" || g.Repo == "") {
		return fmt.Errorf("%w: github.owner and github.repo are required", ErrInvalidSetting)
	}
	return nil
}
