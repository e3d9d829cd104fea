// Package docs loads markdown recipes and extracts their fenced code blocks
// so they can be run through the shell.
package docs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// InteractiveMarker flags a block that should be offered for editing at the
// prompt instead of being run as is.
const InteractiveMarker = "# @interactive"

var shellLangs = map[string]bool{
	"sh":      true,
	"bash":    true,
	"shell":   true,
	"zsh":     true,
	"console": true,
}

// Block is a fenced code block of a document.
type Block struct {
	Index       int    `json:"index"`
	Lang        string `json:"lang"`
	Code        string `json:"code"`
	Heading     string `json:"heading,omitempty"`
	Runnable    bool   `json:"runnable"`
	Interactive bool   `json:"interactive"`
	// Binary is set by a binary=<name> info attribute and marks an install
	// block for that executable.
	Binary string `json:"binary,omitempty"`
}

// Title is a short label for pickers.
func (b Block) Title() string {
	first, _, _ := strings.Cut(b.Code, "\n")
	if b.Heading != "" {
		return b.Heading + ": " + first
	}
	return first
}

// Doc is one markdown file.
type Doc struct {
	Path   string  `json:"path"`
	Name   string  `json:"name"`
	Title  string  `json:"title"`
	Source string  `json:"-"`
	Blocks []Block `json:"blocks"`
}

// Runnable returns the blocks that can be sent to the shell.
func (d Doc) Runnable() []Block {
	var out []Block
	for _, b := range d.Blocks {
		if b.Runnable {
			out = append(out, b)
		}
	}
	return out
}

var quotes = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`, "‟", `"`,
	"‘", "'", "’", "'", "‚", "'", "‛", "'",
)

// NormalizeQuotes replaces typographic quotes with their ASCII forms.
func NormalizeQuotes(s string) string { return quotes.Replace(s) }

var md = goldmark.New()

// Parse reads a markdown document. The front matter, if any, is dropped.
func Parse(path string, src []byte) Doc {
	body := StripFrontmatter(string(src))
	source := []byte(body)
	doc := Doc{
		Path:   path,
		Name:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Source: body,
	}

	root := md.Parser().Parse(text.NewReader(source))
	heading := ""
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Heading:
			heading = strings.TrimSpace(string(n.Lines().Value(source)))
			if doc.Title == "" && n.Level == 1 {
				doc.Title = heading
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock:
			doc.Blocks = append(doc.Blocks, newBlock(len(doc.Blocks), n, source, heading))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if doc.Title == "" {
		doc.Title = doc.Name
	}
	return doc
}

func newBlock(i int, n *ast.FencedCodeBlock, source []byte, heading string) Block {
	b := Block{Index: i, Heading: heading, Lang: "text"}
	if n.Info != nil {
		info := strings.Fields(string(n.Info.Segment.Value(source)))
		if len(info) > 0 {
			b.Lang = strings.ToLower(info[0])
		}
		for _, attr := range info[1:] {
			if v, ok := strings.CutPrefix(attr, "binary="); ok {
				b.Binary = strings.Trim(v, `"'`)
			}
		}
	}

	var code bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(source))
	}
	b.Code = strings.TrimRight(code.String(), "\n")
	b.Runnable = shellLangs[b.Lang]
	if strings.Contains(b.Code, InteractiveMarker) {
		b.Interactive = true
		b.Code = strings.TrimSpace(NormalizeQuotes(strings.Replace(b.Code, InteractiveMarker, "", 1)))
	}
	return b
}

// StripFrontmatter removes a leading "---" delimited block.
func StripFrontmatter(s string) string {
	lines := strings.Split(s, "\n")
	if strings.TrimRight(lines[0], "\r") != "---" {
		return s
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r") == "---" {
			return strings.Join(lines[i+1:], "\n")
		}
	}
	return s
}

func isMarkdown(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".md" || ext == ".markdown"
}

// Load parses every markdown file under dir, sorted by path.
func Load(dir string) ([]Doc, error) {
	var docs []Doc
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !isMarkdown(d.Name()) {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("docs: read %s: %w", path, err)
		}
		docs = append(docs, Parse(path, b))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}
