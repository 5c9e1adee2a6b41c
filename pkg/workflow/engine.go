package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/agentwire/agentwire/pkg/a2a"
	"github.com/agentwire/agentwire/pkg/observability"
)

// DefaultMaxSteps bounds total scheduler steps; cyclic or stalled graphs
// fail instead of spinning.
const DefaultMaxSteps = 1000

// ErrMaxStepsExceeded marks a workflow killed by the step budget.
var ErrMaxStepsExceeded = errors.New("max steps exceeded")

// Result is the outcome of one workflow execution.
type Result struct {
	WorkflowName  string                `json:"workflow_name"`
	Status        Status                `json:"status"`
	Error         string                `json:"error,omitempty"`
	Results       map[string]any        `json:"results"`
	NodeOutputs   map[string]any        `json:"node_outputs"`
	NodeStatus    map[string]NodeStatus `json:"node_status"`
	StepsExecuted int                   `json:"steps_executed"`
	Duration      time.Duration         `json:"duration"`
}

// StepEvent is emitted per executed node when an event channel is attached.
type StepEvent struct {
	NodeID string
	Status NodeStatus
	Output any
	Error  string
}

// Engine executes workflows against agent and tool registries.
type Engine struct {
	agents   *AgentRegistry
	tools    *ToolRegistry
	maxSteps int
	obs      *observability.Manager
	events   chan<- StepEvent
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithMaxSteps overrides the step budget.
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) { e.maxSteps = n }
}

// WithObservability records per-node duration metrics.
func WithObservability(obs *observability.Manager) EngineOption {
	return func(e *Engine) { e.obs = obs }
}

// WithEvents attaches a step event channel. Sends are non-blocking; a full
// channel drops events rather than stalling execution.
func WithEvents(ch chan<- StepEvent) EngineOption {
	return func(e *Engine) { e.events = ch }
}

// NewEngine creates an engine. Nil registries are replaced with empty ones.
func NewEngine(agents *AgentRegistry, tools *ToolRegistry, opts ...EngineOption) *Engine {
	if agents == nil {
		agents = NewAgentRegistry()
	}
	if tools == nil {
		tools = NewToolRegistry()
	}
	e := &Engine{agents: agents, tools: tools, maxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// execution is the per-run mutable state.
type execution struct {
	wf        *Workflow
	inputData map[string]any

	// inputs[nodeID][edgeID] holds values delivered along followed edges.
	inputs   map[string]map[string]any
	statuses map[string]NodeStatus
	outputs  map[string]any
	results  map[string]any
	queue    []string
	queued   map[string]bool
	steps    int
}

// Execute runs the workflow to completion or failure.
func (e *Engine) Execute(ctx context.Context, wf *Workflow, inputData map[string]any) (*Result, error) {
	start := time.Now()
	if err := wf.Validate(); err != nil {
		return nil, err
	}

	ex := &execution{
		wf:        wf,
		inputData: inputData,
		inputs:    make(map[string]map[string]any),
		statuses:  make(map[string]NodeStatus),
		outputs:   make(map[string]any),
		results:   make(map[string]any),
		queued:    make(map[string]bool),
	}
	for id := range wf.Nodes {
		ex.statuses[id] = NodeStatusPending
	}
	for _, id := range wf.StartNodes() {
		ex.enqueue(id)
	}

	result := &Result{
		WorkflowName: wf.Name,
		Status:       StatusRunning,
		Results:      ex.results,
		NodeOutputs:  ex.outputs,
		NodeStatus:   ex.statuses,
	}

	for len(ex.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return e.finish(result, ex, StatusFailed, err.Error(), start), nil
		}

		ex.steps++
		if ex.steps > e.maxSteps {
			return e.finish(result, ex, StatusFailed, ErrMaxStepsExceeded.Error(), start), nil
		}

		id := ex.queue[0]
		ex.queue = ex.queue[1:]
		ex.queued[id] = false
		if ex.statuses[id] != NodeStatusPending {
			continue
		}
		node := wf.Nodes[id]

		ready, starved := ex.readiness(node)
		if !ready {
			if starved {
				// Every feeding branch finished without delivering a value:
				// the node is on a dead branch.
				ex.statuses[id] = NodeStatusSkipped
				e.emit(StepEvent{NodeID: id, Status: NodeStatusSkipped})
				ex.enqueueTargets(id)
				continue
			}
			ex.enqueue(id)
			continue
		}

		output, err := e.executeNode(ctx, ex, node)
		if err != nil {
			if !e.routeError(ex, node, err) {
				return e.finish(result, ex, StatusFailed,
					fmt.Sprintf("node %s: %s", id, err), start), nil
			}
			continue
		}

		ex.statuses[id] = NodeStatusCompleted
		ex.outputs[id] = output
		e.emit(StepEvent{NodeID: id, Status: NodeStatusCompleted, Output: output})
		e.deliver(ex, node, output, false)
	}

	// Unreached nodes sat on branches never taken.
	for id, status := range ex.statuses {
		if status == NodeStatusPending {
			ex.statuses[id] = NodeStatusSkipped
		}
	}
	return e.finish(result, ex, StatusCompleted, "", start), nil
}

func (e *Engine) finish(result *Result, ex *execution, status Status, errText string, start time.Time) *Result {
	result.Status = status
	result.Error = errText
	result.StepsExecuted = ex.steps
	result.Duration = time.Since(start)
	if status == StatusFailed {
		slog.Debug("workflow failed", "workflow", result.WorkflowName, "error", errText)
	}
	return result
}

func (e *Engine) emit(event StepEvent) {
	if e.events == nil {
		return
	}
	select {
	case e.events <- event:
	default:
	}
}

func (ex *execution) enqueue(id string) {
	if ex.queued[id] || ex.statuses[id] != NodeStatusPending {
		return
	}
	ex.queue = append(ex.queue, id)
	ex.queued[id] = true
}

func (ex *execution) enqueueTargets(id string) {
	for _, edge := range ex.wf.OutgoingEdges(id) {
		ex.enqueue(edge.Target)
	}
}

// readiness reports whether the node's required inputs are present. starved
// means no input can ever arrive: every feeding source already finished.
func (ex *execution) readiness(node *Node) (ready, starved bool) {
	incoming := ex.wf.IncomingEdges(node.ID)
	if len(incoming) == 0 {
		return true, false
	}

	required := make(map[string]bool)
	if node.Type == NodeTypeConditional && len(node.Config.RequiredInputs) > 0 {
		for _, edgeID := range node.Config.RequiredInputs {
			required[edgeID] = true
		}
	} else {
		for _, edge := range incoming {
			required[edge.ID] = true
		}
	}

	slots := ex.inputs[node.ID]
	missing := false
	allSourcesDone := true
	for _, edge := range incoming {
		if !required[edge.ID] {
			continue
		}
		if _, ok := slots[edge.ID]; ok {
			continue
		}
		missing = true
		if status := ex.statuses[edge.Source]; status == NodeStatusPending {
			allSourcesDone = false
		}
	}
	if !missing {
		return true, false
	}
	if allSourcesDone {
		// Required edges will never fire; if some inputs did arrive the node
		// still runs with what it has.
		if len(slots) > 0 {
			return true, false
		}
		return false, true
	}
	return false, false
}

// firstInput returns the first delivered value in edge declaration order.
func (ex *execution) firstInput(nodeID string) (any, bool) {
	slots := ex.inputs[nodeID]
	if len(slots) == 0 {
		return nil, false
	}
	for _, edge := range ex.wf.IncomingEdges(nodeID) {
		if v, ok := slots[edge.ID]; ok {
			return v, true
		}
	}
	return nil, false
}

// deliver routes the node output along its outgoing edges per the
// edge-follow rules and enqueues the receiving nodes.
func (e *Engine) deliver(ex *execution, node *Node, output any, erred bool) {
	for _, edge := range ex.wf.OutgoingEdges(node.ID) {
		follow, err := shouldFollowEdge(edge, output, erred)
		if err != nil {
			slog.Warn("edge condition failed", "edge", edge.ID, "error", err)
			continue
		}
		if !follow {
			// The target may starve; let its readiness check decide.
			ex.enqueue(edge.Target)
			continue
		}
		if ex.inputs[edge.Target] == nil {
			ex.inputs[edge.Target] = make(map[string]any)
		}
		ex.inputs[edge.Target][edge.ID] = output
		ex.enqueue(edge.Target)
	}
}

// routeError wraps the node error as a text message with metadata.error and
// sends it along error edges. Returns false when the node has none and the
// workflow must fail.
func (e *Engine) routeError(ex *execution, node *Node, nodeErr error) bool {
	hasErrorEdge := false
	for _, edge := range ex.wf.OutgoingEdges(node.ID) {
		if edge.Type == EdgeTypeError {
			hasErrorEdge = true
			break
		}
	}

	ex.statuses[node.ID] = NodeStatusFailed
	e.emit(StepEvent{NodeID: node.ID, Status: NodeStatusFailed, Error: nodeErr.Error()})
	if !hasErrorEdge {
		return false
	}

	wrapped := map[string]any{
		"content":  nodeErr.Error(),
		"type":     "text",
		"metadata": map[string]any{"error": true},
	}
	e.deliver(ex, node, wrapped, true)
	return true
}

// shouldFollowEdge implements the edge-follow rules.
func shouldFollowEdge(edge *Edge, output any, erred bool) (bool, error) {
	switch edge.Type {
	case EdgeTypeError:
		return erred, nil
	case EdgeTypeData, EdgeTypeSuccess, "":
		return !erred, nil
	case EdgeTypeConditionTrue, EdgeTypeConditionFalse:
		if erred {
			return false, nil
		}
		var matched bool
		if edge.Config.ConditionType == "" {
			matched = textOf(output) == "true"
		} else {
			var err error
			matched, err = EvaluateCondition(edge.Config.ConditionType, edge.Config.ConditionValue, textOf(output))
			if err != nil {
				return false, err
			}
		}
		if edge.Type == EdgeTypeConditionTrue {
			return matched, nil
		}
		return !matched, nil
	default:
		return false, fmt.Errorf("%w: unknown edge type %q", a2a.ErrBadEnum, edge.Type)
	}
}

// executeNode runs one node and returns its output message.
func (e *Engine) executeNode(ctx context.Context, ex *execution, node *Node) (out any, err error) {
	start := time.Now()
	defer func() {
		if e.obs == nil {
			return
		}
		if m := e.obs.GetMetrics(); m != nil {
			m.NodeDuration.Record(ctx, time.Since(start).Seconds(),
				metric.WithAttributes(
					attribute.String("node_type", string(node.Type)),
					attribute.Bool("error", err != nil),
				))
		}
	}()

	switch node.Type {
	case NodeTypeInput:
		return e.runInput(ex, node), nil
	case NodeTypeOutput:
		return e.runOutput(ex, node)
	case NodeTypeAgent:
		return e.runAgent(ctx, ex, node)
	case NodeTypeTool:
		return e.runTool(ctx, ex, node)
	case NodeTypeConditional:
		return e.runConditional(ex, node)
	case NodeTypeTransform:
		return e.runTransform(ex, node)
	default:
		return nil, fmt.Errorf("unexecutable node type %q", node.Type)
	}
}

func (e *Engine) runInput(ex *execution, node *Node) any {
	var value any
	switch {
	case node.Config.InputKey != "" && ex.inputData[node.Config.InputKey] != nil:
		value = ex.inputData[node.Config.InputKey]
	default:
		if v, ok := ex.firstInput(node.ID); ok {
			value = contentOf(v)
		} else {
			value = node.Config.DefaultValue
		}
	}
	return message(value)
}

func (e *Engine) runOutput(ex *execution, node *Node) (any, error) {
	v, ok := ex.firstInput(node.ID)
	if !ok {
		return nil, fmt.Errorf("output node received no input")
	}
	key := node.Config.OutputKey
	if key == "" {
		key = node.ID
	}
	ex.results[key] = contentOf(v)
	return v, nil
}

func (e *Engine) runAgent(ctx context.Context, ex *execution, node *Node) (any, error) {
	agent, err := e.agents.Get(node.Config.AgentID)
	if err != nil {
		return nil, err
	}
	v, _ := ex.firstInput(node.ID)

	reply, err := agent.Ask(ctx, textOf(v))
	if err != nil {
		return nil, err
	}
	// A mapping reply carrying content/text is unwrapped; anything else is
	// treated as raw text.
	if m, ok := reply.(map[string]any); ok {
		if content, ok := m["content"]; ok {
			return message(content), nil
		}
		if text, ok := m["text"]; ok {
			return message(text), nil
		}
	}
	return message(textOf(reply)), nil
}

func (e *Engine) runTool(ctx context.Context, ex *execution, node *Node) (any, error) {
	tool, err := e.tools.Get(node.Config.ToolID)
	if err != nil {
		return nil, err
	}

	params := make(map[string]any, len(node.Config.Parameters))
	for k, v := range node.Config.Parameters {
		params[k] = v
	}
	if v, ok := ex.firstInput(node.ID); ok {
		mergeToolInput(params, contentOf(v), node.Config.InputParameter)
	}

	result, err := tool.Invoke(ctx, params)
	if err != nil {
		return nil, err
	}
	return message(result), nil
}

// mergeToolInput folds the incoming value into the parameter map: mappings
// merge key-wise, JSON-object strings parse then merge, anything else lands
// under the configured input parameter name.
func mergeToolInput(params map[string]any, incoming any, inputParameter string) {
	switch v := incoming.(type) {
	case map[string]any:
		for k, val := range v {
			params[k] = val
		}
		return
	case string:
		var parsed map[string]any
		if err := json.Unmarshal([]byte(v), &parsed); err == nil {
			for k, val := range parsed {
				params[k] = val
			}
			return
		}
	}
	if inputParameter != "" {
		params[inputParameter] = incoming
	}
}

func (e *Engine) runConditional(ex *execution, node *Node) (any, error) {
	v, _ := ex.firstInput(node.ID)
	matched, err := EvaluateCondition(node.Config.ConditionType, node.Config.ConditionValue, textOf(v))
	if err != nil {
		return nil, err
	}
	return message(matched), nil
}

func (e *Engine) runTransform(ex *execution, node *Node) (any, error) {
	v, _ := ex.firstInput(node.ID)
	result, err := ApplyTransform(node.Config.TransformType, node.Config.TransformConfig, contentOf(v))
	if err != nil {
		return nil, err
	}
	return message(result), nil
}

// message wraps a value as the map shape passed along edges.
func message(content any) map[string]any {
	contentType := "text"
	switch content.(type) {
	case string, nil:
	case bool:
		contentType = "bool"
	case map[string]any, []any:
		contentType = "json"
	default:
		contentType = "json"
	}
	return map[string]any{"content": content, "type": contentType}
}

// contentOf unwraps a message map back to its payload.
func contentOf(v any) any {
	if m, ok := v.(map[string]any); ok {
		if content, ok := m["content"]; ok {
			return content
		}
	}
	return v
}
