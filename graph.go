package flow

import (
	"encoding/json"
	"strings"
)

// Graph is a workflow graph: the nodes and edges of one dynamically defined handler.
type Graph struct {
	ID    string `json:"id"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NodeType is the dispatch tag of a node.
type NodeType string

const (
	NodeEntrypoint   NodeType = "entrypoint"
	NodeIf           NodeType = "if"
	NodeGetVar       NodeType = "get_var"
	NodeSetVar       NodeType = "set_var"
	NodeTransformer  NodeType = "transformer"
	NodeArrayPush    NodeType = "array_push"
	NodeArrayPop     NodeType = "array_pop"
	NodeArrayShift   NodeType = "array_shift"
	NodeArrayUnshift NodeType = "array_unshift"
	NodeArrayFilter  NodeType = "array_filter"
	NodeForLoop      NodeType = "for_loop"
	NodeForEachLoop  NodeType = "foreach_loop"
	NodeTransaction  NodeType = "transaction"
	NodeDBGetSingle  NodeType = "db_get_single"
	NodeDBGetAll     NodeType = "db_get_all"
	NodeDBInsert     NodeType = "db_insert"
	NodeDBInsertBulk NodeType = "db_insert_bulk"
	NodeDBUpdate     NodeType = "db_update"
	NodeDBDelete     NodeType = "db_delete"
	NodeDBNative     NodeType = "db_native"
	NodeHTTPRequest  NodeType = "http_request"
	NodeResponse     NodeType = "response"
	NodeErrorHandler NodeType = "error_handler"
	NodeLogging      NodeType = "logging"
)

var nodeTypes = []NodeType{
	NodeEntrypoint, NodeIf, NodeGetVar, NodeSetVar, NodeTransformer,
	NodeArrayPush, NodeArrayPop, NodeArrayShift, NodeArrayUnshift, NodeArrayFilter,
	NodeForLoop, NodeForEachLoop, NodeTransaction,
	NodeDBGetSingle, NodeDBGetAll, NodeDBInsert, NodeDBInsertBulk, NodeDBUpdate, NodeDBDelete, NodeDBNative,
	NodeHTTPRequest, NodeResponse, NodeErrorHandler, NodeLogging,
}

// NodeTypes returns every known node type.
func NodeTypes() []NodeType {
	out := make([]NodeType, len(nodeTypes))
	copy(out, nodeTypes)
	return out
}

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	for _, known := range nodeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Structural reports whether blocks of this type own a nested sub-graph.
func (t NodeType) Structural() bool {
	return t == NodeForLoop || t == NodeForEachLoop || t == NodeTransaction
}

// Semantic edge handles.
const (
	HandleSource   = "source"
	HandleSuccess  = "success"
	HandleFailure  = "failure"
	HandleExecutor = "executor"
)

// handleSeparator splits a disambiguating prefix from the handle in Edge.ToHandle.
const handleSeparator = "-"

// Position is the editor layout of a node. It has no runtime meaning.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node represents a block in the graph.
// Ref is a temporary key used only during CreateGraph for edge wiring. It is never persisted.
type Node struct {
	ID       string          `json:"id,omitempty"`
	Ref      string          `json:"ref,omitempty"`
	Type     NodeType        `json:"type"`
	Data     json.RawMessage `json:"data"`
	Position Position        `json:"position"`
}

// Edge represents a directed connection between two nodes.
// FromNodeRef / ToNodeRef are temporary keys used only during CreateGraph. They are never persisted.
type Edge struct {
	ID          string `json:"id,omitempty"`
	FromNodeID  string `json:"from_node_id,omitempty"`
	ToNodeID    string `json:"to_node_id,omitempty"`
	FromHandle  string `json:"from_handle,omitempty"`
	ToHandle    string `json:"to_handle,omitempty"`
	FromNodeRef string `json:"from_node_ref,omitempty"`
	ToNodeRef   string `json:"to_node_ref,omitempty"`
}

// Handle returns the semantic handle of the edge: the part of ToHandle after
// the last separator, or ToHandle itself when it has none.
func (e Edge) Handle() string {
	return ExtractHandle(e.ToHandle)
}

// ExtractHandle strips any disambiguating prefix from a raw handle string.
func ExtractHandle(raw string) string {
	if i := strings.LastIndex(raw, handleSeparator); i >= 0 {
		return raw[i+len(handleSeparator):]
	}
	return raw
}

// Successor is one adjacency entry: the target node and the handle it was reached through.
type Successor struct {
	To     string
	Handle string
}

// AdjacencyMap maps a node id to its ordered outgoing successors.
type AdjacencyMap map[string][]Successor

// Next returns the first successor of id reached through handle, or "".
func (m AdjacencyMap) Next(id, handle string) string {
	for _, s := range m[id] {
		if s.Handle == handle {
			return s.To
		}
	}
	return ""
}
