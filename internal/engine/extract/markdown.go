package extract

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"symgraph/internal/engine/address"
	"symgraph/internal/engine/graph"
)

// extractMarkdown builds document structure from ATX headings: each heading
// becomes a Heading node owning a Section node for its body, and headings
// nest by level through contains edges.
func (e *Extractor) extractMarkdown(filePath string, content []byte) (graph.Batch, error) {
	b := newBatchBuilder(e.project, filePath, content)

	type openHeading struct {
		addr  string
		level int
	}
	var stack []openHeading

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	inFence := false
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		level, title := parseHeading(line)
		if level == 0 {
			continue
		}

		meta := map[string]string{"level": strconv.Itoa(level)}
		addr := b.addNode(address.KindHeading, title, lineNo, meta)

		section := b.addNode(address.KindSection, title, lineNo, map[string]string{"level": strconv.Itoa(level)})
		b.addEdge(addr, section, graph.EdgeContains)

		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			stack = stack[:len(stack)-1]
		}
		parent := b.namespace
		if len(stack) > 0 {
			parent = stack[len(stack)-1].addr
		}
		b.addEdge(parent, addr, graph.EdgeContains)
		stack = append(stack, openHeading{addr: addr, level: level})
	}
	if err := scanner.Err(); err != nil {
		return graph.Batch{}, err
	}
	return b.batch(), nil
}

// parseHeading returns the ATX level and title, or 0 for a non-heading.
func parseHeading(line string) (int, string) {
	trimmed := strings.TrimSpace(line)
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return 0, ""
	}
	rest := trimmed[level:]
	if rest != "" && !strings.HasPrefix(rest, " ") {
		return 0, ""
	}
	title := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(rest), "#"))
	if title == "" {
		return 0, ""
	}
	return level, title
}
