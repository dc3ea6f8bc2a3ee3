package services

import (
	"strings"
	"testing"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/models"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/tokens"

	"github.com/stretchr/testify/assert"
)

func TestBuildSourceContext_GroupsAndOrders(t *testing.T) {
	chunks := []models.Chunk{
		{SourceID: "s2", SourceName: "Week 2", Order: 1, Chunk: "Routing tables"},
		{SourceID: "s1", Order: 0, Chunk: "Layered models"},
		{SourceID: "s2", SourceName: "Week 2", Order: 0, Chunk: "IP addressing"},
		{SourceID: "s1", Order: 1, Chunk: "   "},
	}

	got := buildSourceContext(chunks, 1000)

	assert.Equal(t, "Source: Week 2\nIP addressing\n\nRouting tables\n\nSource: s1\nLayered models", got)
}

func TestBuildSourceContext_RespectsBudget(t *testing.T) {
	long := strings.Repeat("Congestion windows grow additively and shrink multiplicatively. ", 100)
	chunks := []models.Chunk{
		{SourceID: "a", SourceName: "A", Chunk: long},
		{SourceID: "b", SourceName: "B", Chunk: long},
	}

	got := buildSourceContext(chunks, 120)

	assert.LessOrEqual(t, tokens.Estimate(got), 120)
	assert.Contains(t, got, "Source: A")
	assert.Contains(t, got, "Source: B", "each source keeps a share of the budget")
}

func TestBuildSourceContext_Empty(t *testing.T) {
	assert.Empty(t, buildSourceContext(nil, 100))
	assert.Empty(t, buildSourceContext([]models.Chunk{{SourceID: "a", Chunk: "text"}}, 0))
	assert.Empty(t, buildSourceContext([]models.Chunk{{SourceID: "a", Chunk: " "}}, 100))
}
