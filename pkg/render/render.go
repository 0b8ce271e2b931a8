// Package render exports pipelines as Graphviz diagrams and plain-text summaries.
package render

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/awalterschulze/gographviz"
	"github.com/polymicro/manager/pkg/models"
	"github.com/polymicro/manager/pkg/registry"
)

var categoryColors = map[models.Category]string{
	models.CategoryTriggers:   "lightgoldenrod",
	models.CategoryExecution:  "lightblue",
	models.CategoryFlow:       "plum",
	models.CategoryAutomation: "palegreen",
}

var connectionStyles = map[models.ConnectionType][2]string{ // color, style
	models.ConnectionSuccess:   {"darkgreen", "solid"},
	models.ConnectionFailure:   {"red", "solid"},
	models.ConnectionLoop:      {"blue", "dashed"},
	models.ConnectionTruePath:  {"darkgreen", "bold"},
	models.ConnectionFalsePath: {"orange", "bold"},
}

// DOT renders the pipeline as a Graphviz digraph. Blocks keep their canvas
// positions as pinned coordinates; connections are coloured by type.
func DOT(p *models.Pipeline) (string, error) {
	g := gographviz.NewGraph()

	name := p.Name
	if name == "" {
		name = "pipeline"
	}

	graphName := dotID(name)

	if err := g.SetName(graphName); err != nil {
		return "", fmt.Errorf("failed to set graph name: %w", err)
	}

	if err := g.SetDir(true); err != nil {
		return "", err
	}

	if err := g.AddAttr(graphName, "rankdir", "LR"); err != nil {
		return "", fmt.Errorf("failed to set graph attribute: %w", err)
	}

	nodes := make(map[string]bool, len(p.Blocks))

	for _, b := range p.Blocks {
		nodes[b.ID] = true

		y := -b.Position.Y
		if y == 0 {
			y = 0 // drop the sign of -0
		}

		attrs := map[string]string{
			"label":     `"` + escape(b.Name) + `\n(` + escape(b.Type) + `)"`,
			"shape":     shape(b),
			"style":     "filled",
			"fillcolor": categoryColor(b.Category),
			"pos":       dotID(fmt.Sprintf("%g,%g!", b.Position.X, y)),
		}

		if err := g.AddNode(graphName, dotID(b.ID), attrs); err != nil {
			return "", fmt.Errorf("failed to add block %s: %w", b.ID, err)
		}
	}

	for _, c := range p.Connections {
		if !nodes[c.Source] || !nodes[c.Target] {
			continue
		}

		style, ok := connectionStyles[c.Type]
		if !ok {
			style = [2]string{"black", "solid"}
		}

		attrs := map[string]string{
			"label": dotID(string(c.Type)),
			"color": style[0],
			"style": style[1],
		}

		if err := g.AddEdge(dotID(c.Source), dotID(c.Target), true, attrs); err != nil {
			return "", fmt.Errorf("failed to add connection %s: %w", c.ID, err)
		}
	}

	return g.String(), nil
}

var plainID = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// dotID returns s as a DOT identifier, quoting it unless it is a plain word.
func dotID(s string) string {
	if plainID.MatchString(s) {
		return s
	}

	return `"` + escape(s) + `"`
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", "")

// escape prepares s for use inside a double-quoted DOT string.
func escape(s string) string {
	return dotEscaper.Replace(s)
}

func shape(b *models.BlockInstance) string {
	switch {
	case b.IsTrigger():
		return "oval"
	case b.Type == registry.BlockCondition:
		return "diamond"
	default:
		return "box"
	}
}

func categoryColor(c models.Category) string {
	if color, ok := categoryColors[c]; ok {
		return color
	}

	return "white"
}

// Text produces a human-readable summary listing blocks in execution order
// followed by their connections.
func Text(p *models.Pipeline) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Pipeline: %s  (%d blocks, %d connections)\n", p.Name, len(p.Blocks), len(p.Connections))

	byID := make(map[string]*models.BlockInstance, len(p.Blocks))
	width := 5 // "block"

	for _, b := range p.Blocks {
		byID[b.ID] = b

		if len(b.ID) > width {
			width = len(b.ID)
		}
	}

	fmt.Fprintf(&sb, "\nBlocks:\n")

	for _, id := range Order(p) {
		b := byID[id]

		keys := make([]string, 0, len(b.Config))
		for k, v := range b.Config {
			if !v.IsZero() {
				keys = append(keys, k)
			}
		}

		sort.Strings(keys)

		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + truncate(b.Config[k].Display(), 40)
		}

		fmt.Fprintf(&sb, "  %-*s  %-10s  %-10s  %s\n", width, id, b.Type, b.Category, strings.Join(parts, " "))
	}

	fmt.Fprintf(&sb, "\nConnections:\n")

	if len(p.Connections) == 0 {
		fmt.Fprintf(&sb, "  (none)\n")
	}

	for _, c := range p.Connections {
		fmt.Fprintf(&sb, "  %-*s  --%s-->  %s\n", width, models.MakePortID(c.Source, c.SourcePort), c.Type, c.Target)
	}

	if len(p.Variables) > 0 {
		fmt.Fprintf(&sb, "\nVariables:\n")

		for _, v := range p.Variables {
			fmt.Fprintf(&sb, "  %s=%s (%s)\n", v.Name, v.Value, v.Scope)
		}
	}

	return sb.String()
}

// Order returns block IDs sorted so that every block follows the blocks
// feeding it. Loop connections are ignored; blocks caught in a cycle keep
// their placement order at the end.
func Order(p *models.Pipeline) []string {
	indegree := make(map[string]int, len(p.Blocks))
	adjacency := make(map[string][]string)

	for _, b := range p.Blocks {
		indegree[b.ID] = 0
	}

	for _, c := range p.Connections {
		if c.Type == models.ConnectionLoop {
			continue
		}

		if _, ok := indegree[c.Source]; !ok {
			continue
		}

		if _, ok := indegree[c.Target]; !ok {
			continue
		}

		adjacency[c.Source] = append(adjacency[c.Source], c.Target)
		indegree[c.Target]++
	}

	var queue []string

	for _, b := range p.Blocks {
		if indegree[b.ID] == 0 {
			queue = append(queue, b.ID)
		}
	}

	order := make([]string, 0, len(p.Blocks))
	placed := make(map[string]bool, len(p.Blocks))

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if placed[cur] {
			continue
		}

		placed[cur] = true
		order = append(order, cur)

		for _, next := range adjacency[cur] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	for _, b := range p.Blocks {
		if !placed[b.ID] {
			placed[b.ID] = true
			order = append(order, b.ID)
		}
	}

	return order
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}

	return string(runes[:maxLen]) + "…"
}
