package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// Section is one H1/H2 section of a markdown file.
type Section struct {
	Index      int    // Position in the file (0, 1, 2...)
	HeaderPath string // "Getting Started > Installation"; empty for text before the first heading
	Body       string // Section markdown including its heading line
}

// Text is what gets embedded: the header path followed by the body, so a
// section keeps the context of the headings above it.
func (s Section) Text() string {
	if s.HeaderPath == "" {
		return s.Body
	}
	return s.HeaderPath + "\n\n" + s.Body
}

// Splitter cuts markdown files at H1 and H2 headings.
type Splitter struct {
	md goldmark.Markdown
}

// NewSplitter creates a Splitter with auto heading IDs enabled.
func NewSplitter() *Splitter {
	return &Splitter{
		md: goldmark.New(goldmark.WithParserOptions(parser.WithAutoHeadingID())),
	}
}

type boundary struct {
	path  string
	start int // byte offset of the heading line
}

// Split returns the sections of source in document order. Empty sections are dropped.
// A file without H1/H2 headings is a single section.
func (s *Splitter) Split(source []byte) ([]Section, error) {
	doc := s.md.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source, toc.MinDepth(1), toc.MaxDepth(2), toc.Compact(true))
	if err != nil {
		return nil, fmt.Errorf("inspect headings: %w", err)
	}

	starts := headingOffsets(doc, source)

	var bounds []boundary
	var walk func(items toc.Items, ancestors []string)
	walk = func(items toc.Items, ancestors []string) {
		for _, item := range items {
			path := append(ancestors[:len(ancestors):len(ancestors)], string(item.Title))
			if start, ok := starts[string(item.ID)]; ok {
				bounds = append(bounds, boundary{path: strings.Join(path, " > "), start: start})
			}
			walk(item.Items, path)
		}
	}
	walk(tree.Items, nil)

	var sections []Section
	add := func(path string, body []byte) {
		b := strings.TrimSpace(string(body))
		if b == "" {
			return
		}
		sections = append(sections, Section{Index: len(sections), HeaderPath: path, Body: b})
	}

	if len(bounds) == 0 {
		add("", source)
		return sections, nil
	}

	add("", source[:bounds[0].start])
	for i, b := range bounds {
		end := len(source)
		if i+1 < len(bounds) {
			end = bounds[i+1].start
		}
		add(b.path, source[b.start:end])
	}
	return sections, nil
}

// headingOffsets maps the id of each H1/H2 heading to the offset of the
// line it starts on, so the "#" markers stay in the section body.
func headingOffsets(doc ast.Node, source []byte) map[string]int {
	offsets := make(map[string]int)
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindHeading {
			return ast.WalkContinue, nil
		}
		heading := n.(*ast.Heading)
		if heading.Level > 2 || heading.Lines().Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		if id, ok := heading.AttributeString("id"); ok {
			if b, ok := id.([]byte); ok {
				start := heading.Lines().At(0).Start
				offsets[string(b)] = bytes.LastIndexByte(source[:start], '\n') + 1
			}
		}
		return ast.WalkSkipChildren, nil
	})
	return offsets
}
