package scenegen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"slidereel/internal/services"
	"slidereel/internal/store"
)

const stageName = "generate"

// Output describes a generated source file.
type Output struct {
	SourcePath string
	Scenes     []string
}

// SceneName returns the scene class name for slide index i.
func SceneName(i int) string {
	return fmt.Sprintf("Slide%dScene", i)
}

// Generator writes animation sources.
type Generator struct {
	SourceName string
}

// New returns a Generator that writes sourceName into each working directory.
func New(sourceName string) *Generator {
	if strings.TrimSpace(sourceName) == "" {
		sourceName = "slides.py"
	}
	return &Generator{SourceName: sourceName}
}

// Generate writes the source for slides into workDir.
func (g *Generator) Generate(slides []store.Slide, workDir string) (Output, error) {
	if len(slides) == 0 {
		return Output{}, services.Wrap(services.ErrGeneration, stageName, "build", "script has no slides", nil)
	}
	scenes := make([]sceneData, 0, len(slides))
	names := make([]string, 0, len(slides))
	for i, slide := range slides {
		body, err := sceneBody(slide)
		if err != nil {
			return Output{}, services.Wrap(services.ErrGeneration, stageName, "build", fmt.Sprintf("slide %d", i), err)
		}
		name := SceneName(i)
		scenes = append(scenes, sceneData{Name: name, Body: body})
		names = append(names, name)
	}

	var buf bytes.Buffer
	if err := sourceTemplate.Execute(&buf, scenes); err != nil {
		return Output{}, services.Wrap(services.ErrGeneration, stageName, "render template", "", err)
	}
	path := filepath.Join(workDir, g.SourceName)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return Output{}, services.Wrap(services.ErrGeneration, stageName, "write source", path, err)
	}
	return Output{SourcePath: path, Scenes: names}, nil
}

type sceneData struct {
	Name string
	Body []string
}

// layout is the structured visual payload.
type layout struct {
	Title   string   `json:"title"`
	Bullets []string `json:"bullets"`
	Code    string   `json:"code"`
}

var sourceTemplate = template.Must(template.New("source").Parse(`from manim import *

{{range .}}
class {{.Name}}(Scene):
    def construct(self):
{{- range .Body}}
        {{.}}
{{- end}}

{{end}}`))

func sceneBody(slide store.Slide) ([]string, error) {
	raw := bytes.TrimSpace(slide.Visual)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return titleCard(slide.Narration), nil
	}
	switch raw[0] {
	case '"':
		var code string
		if err := json.Unmarshal(raw, &code); err != nil {
			return nil, fmt.Errorf("decode visual: %w", err)
		}
		lines := dedent(code)
		if len(lines) == 0 {
			return titleCard(slide.Narration), nil
		}
		return lines, nil
	case '{':
		var l layout
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("decode visual: %w", err)
		}
		return l.lines(slide.Narration), nil
	default:
		return nil, fmt.Errorf("unsupported visual payload %q", truncate(string(raw), 32))
	}
}

func titleCard(narration string) []string {
	text := firstSentence(narration)
	if text == "" {
		return []string{"self.wait(1)"}
	}
	return []string{
		"text = Text(" + pyString(text) + ", font_size=36)",
		"self.play(Write(text))",
		"self.wait(1)",
	}
}

func (l layout) lines(narration string) []string {
	title := strings.TrimSpace(l.Title)
	if title == "" && len(l.Bullets) == 0 && strings.TrimSpace(l.Code) == "" {
		return titleCard(narration)
	}
	var out []string
	group := []string{}
	if title != "" {
		out = append(out, "title = Text("+pyString(title)+", font_size=44).to_edge(UP)")
		out = append(out, "self.play(Write(title))")
		group = append(group, "title")
	}
	if len(l.Bullets) > 0 {
		items := make([]string, 0, len(l.Bullets))
		for _, bullet := range l.Bullets {
			if bullet = strings.TrimSpace(bullet); bullet != "" {
				items = append(items, "Text("+pyString("• "+bullet)+", font_size=28)")
			}
		}
		if len(items) > 0 {
			out = append(out, "bullets = VGroup("+strings.Join(items, ", ")+").arrange(DOWN, aligned_edge=LEFT)")
			if title != "" {
				out = append(out, "bullets.next_to(title, DOWN, buff=0.6)")
			}
			out = append(out, "self.play(FadeIn(bullets, shift=UP))")
			group = append(group, "bullets")
		}
	}
	if code := strings.TrimRight(l.Code, "\n"); strings.TrimSpace(code) != "" {
		out = append(out, "code = Code(code_string="+pyString(code)+", language=\"python\")")
		if len(group) > 0 {
			out = append(out, "code.next_to("+group[len(group)-1]+", DOWN, buff=0.4)")
		}
		out = append(out, "self.play(Create(code))")
	}
	out = append(out, "self.wait(1)")
	return out
}

// pyString quotes s as a Python string literal. Go escape sequences are a
// subset of Python's for the characters strconv.Quote emits.
func pyString(s string) string {
	return strconv.Quote(s)
}

func dedent(code string) []string {
	code = strings.ReplaceAll(code, "\r\n", "\n")
	code = strings.ReplaceAll(code, "\t", "    ")
	raw := strings.Split(code, "\n")
	indent := -1
	for _, line := range raw {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " "))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	var lines []string
	for _, line := range raw {
		if strings.TrimSpace(line) == "" {
			if len(lines) > 0 {
				lines = append(lines, "")
			}
			continue
		}
		lines = append(lines, strings.TrimRight(line[indent:], " "))
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func firstSentence(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if idx := strings.IndexAny(text, ".!?"); idx > 0 {
		text = text[:idx+1]
	}
	return truncate(text, 80)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
