// Package workflow executes directed graphs of typed nodes: inputs, outputs,
// agent calls, tool invocations, conditionals and transforms, connected by
// typed edges that route data, success, error and condition branches.
package workflow

import (
	"fmt"
	"sort"

	"github.com/agentwire/agentwire/pkg/a2a"
)

// ============================================================================
// WORKFLOW GRAPH TYPES
// ============================================================================

// NodeType discriminates node execution semantics.
type NodeType string

const (
	NodeTypeInput       NodeType = "input"
	NodeTypeOutput      NodeType = "output"
	NodeTypeAgent       NodeType = "agent"
	NodeTypeTool        NodeType = "tool"
	NodeTypeConditional NodeType = "conditional"
	NodeTypeTransform   NodeType = "transform"
)

// ParseNodeType validates a node type name.
func ParseNodeType(s string) (NodeType, error) {
	switch NodeType(s) {
	case NodeTypeInput, NodeTypeOutput, NodeTypeAgent, NodeTypeTool,
		NodeTypeConditional, NodeTypeTransform:
		return NodeType(s), nil
	default:
		return "", fmt.Errorf("%w: unknown node type %q", a2a.ErrBadEnum, s)
	}
}

// EdgeType discriminates edge-follow semantics.
type EdgeType string

const (
	EdgeTypeData           EdgeType = "data"
	EdgeTypeSuccess        EdgeType = "success"
	EdgeTypeError          EdgeType = "error"
	EdgeTypeConditionTrue  EdgeType = "condition_true"
	EdgeTypeConditionFalse EdgeType = "condition_false"
)

// ParseEdgeType validates an edge type name. Empty means data.
func ParseEdgeType(s string) (EdgeType, error) {
	switch EdgeType(s) {
	case EdgeTypeData, EdgeTypeSuccess, EdgeTypeError,
		EdgeTypeConditionTrue, EdgeTypeConditionFalse:
		return EdgeType(s), nil
	case "":
		return EdgeTypeData, nil
	default:
		return "", fmt.Errorf("%w: unknown edge type %q", a2a.ErrBadEnum, s)
	}
}

// NodeStatus tracks a node through one execution.
type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "pending"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusFailed    NodeStatus = "failed"
	NodeStatusSkipped   NodeStatus = "skipped"
)

// Status is the overall workflow execution state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Position is an optional layout hint carried for round-tripping graph
// editors; execution ignores it.
type Position struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// NodeConfig carries the per-type configuration of a node. Only the fields
// of the node's type are meaningful.
type NodeConfig struct {
	// input
	InputKey     string `yaml:"input_key" json:"input_key"`
	DefaultValue any    `yaml:"default_value" json:"default_value"`

	// output
	OutputKey string `yaml:"output_key" json:"output_key"`

	// agent
	AgentID string `yaml:"agent_id" json:"agent_id"`

	// tool
	ToolID         string         `yaml:"tool_id" json:"tool_id"`
	Parameters     map[string]any `yaml:"parameters" json:"parameters"`
	InputParameter string         `yaml:"input_parameter" json:"input_parameter"`

	// conditional
	ConditionType  string   `yaml:"condition_type" json:"condition_type"`
	ConditionValue string   `yaml:"condition_value" json:"condition_value"`
	RequiredInputs []string `yaml:"required_inputs" json:"required_inputs"`

	// transform
	TransformType   string         `yaml:"transform_type" json:"transform_type"`
	TransformConfig map[string]any `yaml:"transform_config" json:"transform_config"`
}

// Node is one vertex of the workflow graph.
type Node struct {
	ID       string     `yaml:"id" json:"id"`
	Name     string     `yaml:"name" json:"name"`
	Type     NodeType   `yaml:"node_type" json:"node_type"`
	Config   NodeConfig `yaml:"config" json:"config"`
	Position *Position  `yaml:"position" json:"position,omitempty"`
}

// EdgeConfig carries the condition evaluated by condition_true and
// condition_false edges.
type EdgeConfig struct {
	ConditionType  string `yaml:"condition_type" json:"condition_type"`
	ConditionValue string `yaml:"condition_value" json:"condition_value"`
}

// Edge connects two nodes.
type Edge struct {
	ID     string     `yaml:"id" json:"id"`
	Source string     `yaml:"source" json:"source"`
	Target string     `yaml:"target" json:"target"`
	Type   EdgeType   `yaml:"edge_type" json:"edge_type"`
	Config EdgeConfig `yaml:"config" json:"config"`
}

// Workflow is a complete graph definition.
type Workflow struct {
	Name        string           `yaml:"name" json:"name"`
	Description string           `yaml:"description" json:"description"`
	Nodes       map[string]*Node `yaml:"nodes" json:"nodes"`
	Edges       []*Edge          `yaml:"edges" json:"edges"`
}

// Validate checks the graph shape without executing anything. It is pure:
// repeated calls on the same workflow yield the same result.
func (w *Workflow) Validate() error {
	if len(w.Nodes) == 0 {
		return fmt.Errorf("workflow has no nodes")
	}
	for id, node := range w.Nodes {
		if node.ID == "" {
			node.ID = id
		}
		if node.ID != id {
			return fmt.Errorf("node %q declares mismatched id %q", id, node.ID)
		}
		if _, err := ParseNodeType(string(node.Type)); err != nil {
			return fmt.Errorf("node %q: %w", id, err)
		}
	}

	hasIncoming := make(map[string]bool)
	for _, edge := range w.Edges {
		if _, ok := w.Nodes[edge.Source]; !ok {
			return fmt.Errorf("edge %q references unknown source node %q", edge.ID, edge.Source)
		}
		if _, ok := w.Nodes[edge.Target]; !ok {
			return fmt.Errorf("edge %q references unknown target node %q", edge.ID, edge.Target)
		}
		if _, err := ParseEdgeType(string(edge.Type)); err != nil {
			return fmt.Errorf("edge %q: %w", edge.ID, err)
		}
		hasIncoming[edge.Target] = true
	}

	// At least one node must be able to start without inputs.
	for id := range w.Nodes {
		if !hasIncoming[id] {
			return nil
		}
	}
	return fmt.Errorf("workflow has no start node")
}

// StartNodes returns the ids of nodes with no incoming edges, sorted for
// deterministic scheduling.
func (w *Workflow) StartNodes() []string {
	hasIncoming := make(map[string]bool)
	for _, edge := range w.Edges {
		hasIncoming[edge.Target] = true
	}
	var starts []string
	for id := range w.Nodes {
		if !hasIncoming[id] {
			starts = append(starts, id)
		}
	}
	sort.Strings(starts)
	return starts
}

// OutgoingEdges returns the edges leaving a node.
func (w *Workflow) OutgoingEdges(nodeID string) []*Edge {
	var out []*Edge
	for _, edge := range w.Edges {
		if edge.Source == nodeID {
			out = append(out, edge)
		}
	}
	return out
}

// IncomingEdges returns the edges entering a node.
func (w *Workflow) IncomingEdges(nodeID string) []*Edge {
	var in []*Edge
	for _, edge := range w.Edges {
		if edge.Target == nodeID {
			in = append(in, edge)
		}
	}
	return in
}
