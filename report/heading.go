package report

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// demoteHeadings walks source's Markdown AST and returns it with every ATX
// heading's level increased by shift (capped at level 6), so a node's own
// "#"/"##" headings never outrank the section heading it is nested under.
// Non-heading content, including fenced code blocks that merely contain a
// line starting with "#", is left untouched.
func demoteHeadings(source string, shift int) string {
	if shift <= 0 || strings.TrimSpace(source) == "" {
		return source
	}

	src := []byte(source)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	type edit struct {
		offset int
		level  int
	}
	var edits []edit

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		lines := h.Lines()
		if lines.Len() == 0 {
			return ast.WalkContinue, nil
		}
		edits = append(edits, edit{offset: lines.At(0).Start, level: h.Level})
		return ast.WalkContinue, nil
	})
	if len(edits) == 0 {
		return source
	}

	// headingPrefixEnd finds the end of the existing run of '#' characters
	// immediately preceding offset, scanning backward to the start of line.
	headingPrefixEnd := func(offset int) (start, end int) {
		start = offset
		for start > 0 && src[start-1] != '\n' {
			start--
		}
		end = start
		for end < len(src) && src[end] == '#' {
			end++
		}
		return start, end
	}

	var out strings.Builder
	cursor := 0
	for _, e := range edits {
		lineStart, hashEnd := headingPrefixEnd(e.offset)
		newLevel := e.level + shift
		if newLevel > 6 {
			newLevel = 6
		}
		out.Write(src[cursor:lineStart])
		out.WriteString(strings.Repeat("#", newLevel))
		cursor = hashEnd
	}
	out.Write(src[cursor:])
	return out.String()
}
