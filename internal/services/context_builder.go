package services

import (
	"cmp"
	"slices"
	"strings"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/models"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/tokens"
)

type sourceExcerpts struct {
	name   string
	chunks []models.Chunk
}

// buildSourceContext joins chunks into one context block of at most budget tokens.
// Sources keep the order in which they first appear and share the budget equally;
// each source's excerpts are truncated to its share.
func buildSourceContext(chunks []models.Chunk, budget int) string {
	if len(chunks) == 0 || budget < 1 {
		return ""
	}

	var groups []*sourceExcerpts
	byID := make(map[string]*sourceExcerpts)
	for _, c := range chunks {
		if strings.TrimSpace(c.Chunk) == "" {
			continue
		}
		g, ok := byID[c.SourceID]
		if !ok {
			name := c.SourceName
			if name == "" {
				name = c.SourceID
			}
			g = &sourceExcerpts{name: name}
			byID[c.SourceID] = g
			groups = append(groups, g)
		}
		g.chunks = append(g.chunks, c)
	}
	if len(groups) == 0 {
		return ""
	}

	share := max(budget/len(groups), 1)
	sections := make([]string, 0, len(groups))
	for _, g := range groups {
		slices.SortStableFunc(g.chunks, func(a, b models.Chunk) int { return cmp.Compare(a.Order, b.Order) })
		texts := make([]string, 0, len(g.chunks))
		for _, c := range g.chunks {
			texts = append(texts, strings.TrimSpace(c.Chunk))
		}
		header := "Source: " + g.name
		body := tokens.Truncate(strings.Join(texts, "\n\n"), max(share-tokens.Estimate(header), 1))
		sections = append(sections, header+"\n"+body)
	}
	return tokens.Truncate(strings.Join(sections, "\n\n"), budget)
}
