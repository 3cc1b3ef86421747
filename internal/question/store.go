// Package question turns a task template and a sample into the question
// markup the marketplace expects.
package question

import (
	"bytes"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"
	"sync"

	"github.com/psantana5/hitctl/pkg/models"
)

const (
	htmlQuestionNS     = "http://mechanicalturk.amazonaws.com/AWSMechanicalTurkDataSchemas/2011-11-11/HTMLQuestion.xsd"
	defaultFrameHeight = 600
)

// Store resolves template identifiers to files under a folder
type Store struct {
	folder string

	mu        sync.Mutex
	templates map[string]*template.Template
}

// NewStore creates a store rooted at folder
func NewStore(folder string) *Store {
	return &Store{
		folder:    folder,
		templates: make(map[string]*template.Template),
	}
}

// RenderHTML executes the task's template with the sample as its data
func (s *Store) RenderHTML(task models.Task, sample models.Sample) (string, error) {
	tmpl, err := s.lookup(task.Template)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, sample); err != nil {
		return "", fmt.Errorf("render template %s: %w", task.Template, err)
	}
	return buf.String(), nil
}

// Render returns the HTMLQuestion document for task and sample
func (s *Store) Render(task models.Task, sample models.Sample) (string, error) {
	html, err := s.RenderHTML(task, sample)
	if err != nil {
		return "", err
	}
	height := task.FrameHeight
	if height <= 0 {
		height = defaultFrameHeight
	}
	return WrapHTML(html, height), nil
}

func (s *Store) lookup(name string) (*template.Template, error) {
	if name == "" {
		return nil, fmt.Errorf("task has no template")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tmpl, ok := s.templates[name]; ok {
		return tmpl, nil
	}

	path := filepath.Join(s.folder, filepath.Clean("/" + name))
	tmpl, err := template.New(filepath.Base(path)).Option("missingkey=error").ParseFiles(path)
	if err != nil {
		return nil, fmt.Errorf("load template %s: %w", name, err)
	}
	s.templates[name] = tmpl
	return tmpl, nil
}

// WrapHTML embeds html in an HTMLQuestion envelope
func WrapHTML(html string, frameHeight int32) string {
	// "]]>" would terminate the CDATA section early
	safe := strings.ReplaceAll(html, "]]>", "]]]]><![CDATA[>")

	var b strings.Builder
	fmt.Fprintf(&b, "<HTMLQuestion xmlns=\"%s\">\n", htmlQuestionNS)
	fmt.Fprintf(&b, "  <HTMLContent><![CDATA[\n%s\n]]></HTMLContent>\n", safe)
	fmt.Fprintf(&b, "  <FrameHeight>%d</FrameHeight>\n", frameHeight)
	b.WriteString("</HTMLQuestion>")
	return b.String()
}
