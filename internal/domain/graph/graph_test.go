package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphmind/internal/errors"
)

func rel(id, from, to string) RawConnection {
	return RawConnection{
		Relationship: RawRelationship{ID: id, Type: "RELATED_TO", From: RawNodeRef{ID: from}, To: RawNodeRef{ID: to}},
	}
}

func chain() Snapshot {
	return Snapshot{
		Nodes: []Node{{ID: "A", Title: "Alpha"}, {ID: "B", Title: "Beta"}, {ID: "C", Title: "Gamma"}},
		Links: []Link{
			{ID: "ab", SourceID: "A", TargetID: "B", Type: LinkRelatedTo},
			{ID: "bc", SourceID: "B", TargetID: "C", Type: LinkRelatedTo},
		},
	}
}

func ids(nodes []Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func TestNewPairKey_IsOrderIndependent(t *testing.T) {
	assert.Equal(t, NewPairKey("a", "b"), NewPairKey("b", "a"))
	assert.Equal(t, "a|b", NewPairKey("b", "a").String())
}

func TestParseLinkType(t *testing.T) {
	tests := []struct {
		in    string
		want  LinkType
		known bool
	}{
		{"", LinkRelatedTo, true},
		{"similar_to", LinkSimilarTo, true},
		{" REFERENCES ", LinkReferences, true},
		{"CONTRADICTS", LinkType("CONTRADICTS"), false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, known := ParseLinkType(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.known, known)
		})
	}
}

func TestNormalize_MirroredRelationshipYieldsOneLink(t *testing.T) {
	// Arrange
	raw := []RawNode{
		{ID: "A", Title: "Alpha", Connections: []RawConnection{rel("r1", "A", "B")}},
		{ID: "B", Title: "Beta", Connections: []RawConnection{rel("r1", "A", "B")}},
	}

	// Act
	snap, issues, err := Normalize(raw)

	// Assert
	require.NoError(t, err)
	assert.Empty(t, issues)
	require.Len(t, snap.Links, 1)
	assert.Equal(t, "A", snap.Links[0].SourceID)
	assert.Equal(t, "B", snap.Links[0].TargetID)
}

func TestNormalize_ReverseDirectionKeepsFirstSeen(t *testing.T) {
	raw := []RawNode{
		{ID: "B", Connections: []RawConnection{rel("r2", "B", "A")}},
		{ID: "A", Connections: []RawConnection{rel("r1", "A", "B")}},
	}

	snap, _, err := Normalize(raw)

	require.NoError(t, err)
	require.Len(t, snap.Links, 1)
	assert.Equal(t, "r2", snap.Links[0].ID)
	assert.Equal(t, "B", snap.Links[0].SourceID)
}

func TestNormalize_DuplicateNodesKeepFirst(t *testing.T) {
	raw := []RawNode{{ID: "A", Title: "first"}, {ID: "A", Title: "second"}}

	snap, _, err := Normalize(raw)

	require.NoError(t, err)
	require.Len(t, snap.Nodes, 1)
	assert.Equal(t, "first", snap.Nodes[0].Title)
}

func TestNormalize_DanglingLinkIsReported(t *testing.T) {
	raw := []RawNode{{ID: "A", Connections: []RawConnection{rel("r1", "A", "ghost")}}}

	snap, issues, err := Normalize(raw)

	require.NoError(t, err)
	assert.Empty(t, snap.Links)
	require.Len(t, issues, 1)
	assert.Equal(t, "r1", issues[0].LinkID)
	assert.True(t, errors.IsInvariant(issues[0].Err))
}

func TestNormalize_ReusedLinkIDIsReported(t *testing.T) {
	// Arrange
	raw := []RawNode{
		{ID: "A", Connections: []RawConnection{rel("x", "A", "B")}},
		{ID: "B", Connections: []RawConnection{rel("x", "A", "B"), rel("x", "B", "C")}},
		{ID: "C", Connections: []RawConnection{rel("x", "B", "C")}},
	}

	// Act
	snap, issues, err := Normalize(raw)

	// Assert
	require.NoError(t, err)
	require.Len(t, snap.Links, 1)
	assert.Equal(t, NewPairKey("A", "B"), snap.Links[0].Key())
	require.Len(t, issues, 2)
	for _, issue := range issues {
		assert.Equal(t, "x", issue.LinkID)
		assert.Equal(t, errors.CodeDuplicateLink.String(), issue.Err.Code)
	}
	_, links := NewModel(snap).Len()
	assert.Equal(t, len(snap.Links), links)
}

func TestNormalize_MissingIDRejectsPayload(t *testing.T) {
	tests := []struct {
		name string
		raw  []RawNode
	}{
		{"node without id", []RawNode{{ID: "A"}, {Title: "anonymous"}}},
		{"relationship without id", []RawNode{{ID: "A", Connections: []RawConnection{rel("", "A", "A")}}}},
		{"relationship without endpoint", []RawNode{{ID: "A", Connections: []RawConnection{rel("r", "A", "")}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, issues, err := Normalize(tt.raw)

			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
			assert.Empty(t, snap.Nodes)
			assert.Empty(t, issues)
		})
	}
}

func TestNormalize_EmptyTypeDefaults(t *testing.T) {
	conn := rel("r", "A", "B")
	conn.Relationship.Type = ""
	raw := []RawNode{{ID: "A", Connections: []RawConnection{conn}}, {ID: "B"}}

	snap, _, err := Normalize(raw)

	require.NoError(t, err)
	require.Len(t, snap.Links, 1)
	assert.Equal(t, DefaultLinkType, snap.Links[0].Type)
}

func TestModel_NeighborsOf(t *testing.T) {
	m := NewModel(chain())

	assert.ElementsMatch(t, []string{"A", "C"}, ids(m.NeighborsOf("B")))
	assert.Equal(t, []string{"B"}, ids(m.NeighborsOf("A")))
	assert.Empty(t, m.NeighborsOf("missing"))
}

func TestModel_NeighborsOfIsolatedNode(t *testing.T) {
	snap := chain()
	snap.Nodes = append(snap.Nodes, Node{ID: "D"})
	m := NewModel(snap)

	assert.Empty(t, m.NeighborsOf("D"))
}

func TestModel_NeighborsOfExcludesSelf(t *testing.T) {
	m := NewModel(Snapshot{
		Nodes: []Node{{ID: "A"}, {ID: "B"}},
		Links: []Link{{ID: "aa", SourceID: "A", TargetID: "A"}, {ID: "ab", SourceID: "A", TargetID: "B"}},
	})

	assert.Equal(t, []string{"B"}, ids(m.NeighborsOf("A")))
}

func TestModel_RemoveNodeCascades(t *testing.T) {
	// Arrange
	m := NewModel(chain())

	// Act
	removed, ok := m.RemoveNode("B")

	// Assert
	require.True(t, ok)
	assert.Len(t, removed, 2)
	snap := m.Snapshot()
	assert.Equal(t, []string{"A", "C"}, snap.NodeIDs())
	assert.Empty(t, snap.Links)
	for _, l := range snap.Links {
		assert.False(t, l.Touches("B"))
	}
	assert.Empty(t, m.NeighborsOf("A"))
	assert.False(t, m.IsNeighbor("A", "B"))
}

func TestModel_RemoveNodeUnknown(t *testing.T) {
	m := NewModel(chain())

	removed, ok := m.RemoveNode("Z")

	assert.False(t, ok)
	assert.Nil(t, removed)
	nodes, links := m.Len()
	assert.Equal(t, 3, nodes)
	assert.Equal(t, 2, links)
}

func TestModel_AddLinkRejectsDuplicatePair(t *testing.T) {
	m := NewModel(chain())

	added, err := m.AddLink(Link{ID: "ba", SourceID: "B", TargetID: "A"})

	require.NoError(t, err)
	assert.False(t, added)
	_, links := m.Len()
	assert.Equal(t, 2, links)
}

func TestModel_AddLinkRejectsReusedID(t *testing.T) {
	m := NewModel(chain())

	added, err := m.AddLink(Link{ID: "ab", SourceID: "A", TargetID: "C"})

	assert.False(t, added)
	assert.True(t, errors.IsInvariant(err))
	assert.False(t, m.IsNeighbor("A", "C"))
}

func TestModel_AddLinkUnknownEndpoint(t *testing.T) {
	m := NewModel(chain())

	added, err := m.AddLink(Link{ID: "az", SourceID: "A", TargetID: "Z"})

	assert.False(t, added)
	assert.True(t, errors.IsInvariant(err))
}

func TestModel_AddNode(t *testing.T) {
	m := NewModel(chain())

	require.NoError(t, m.AddNode(Node{ID: "D", Title: "Delta"}))
	assert.True(t, errors.IsInvariant(m.AddNode(Node{ID: "D"})))
	assert.True(t, errors.IsValidation(m.AddNode(Node{})))

	added, err := m.AddLink(Link{ID: "ad", SourceID: "A", TargetID: "D"})
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, DefaultLinkType, mustLink(t, m, "ad").Type)
	assert.ElementsMatch(t, []string{"B", "D"}, ids(m.NeighborsOf("A")))
}

func TestModel_RemoveLinkAndResolve(t *testing.T) {
	m := NewModel(chain())

	resolved, ok := m.ResolveLink("ab")
	require.True(t, ok)
	assert.Equal(t, "Alpha", resolved.Source.Title)
	assert.Equal(t, "Beta", resolved.Target.Title)

	assert.True(t, m.RemoveLink("ab"))
	assert.False(t, m.RemoveLink("ab"))
	_, ok = m.ResolveLink("ab")
	assert.False(t, ok)
	assert.Equal(t, []string{"C"}, ids(m.NeighborsOf("B")))

	// The pair is free again.
	added, err := m.AddLink(Link{ID: "ba", SourceID: "B", TargetID: "A"})
	require.NoError(t, err)
	assert.True(t, added)
}

func TestModel_ReplaceRebuilds(t *testing.T) {
	m := NewModel(chain())

	m.Replace(Snapshot{Nodes: []Node{{ID: "X"}}})

	nodes, links := m.Len()
	assert.Equal(t, 1, nodes)
	assert.Equal(t, 0, links)
	assert.Empty(t, m.LinksOf("B"))
}

func TestNode_Label(t *testing.T) {
	assert.Equal(t, "Alpha", Node{ID: "A", Title: "Alpha"}.Label())
	assert.Equal(t, "A", Node{ID: "A"}.Label())
}

func mustLink(t *testing.T, m *Model, id string) Link {
	t.Helper()
	l, ok := m.Link(id)
	require.True(t, ok)
	return l
}
