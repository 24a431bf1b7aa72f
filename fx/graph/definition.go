package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidJSON is returned when a definition cannot be decoded.
var ErrInvalidJSON = errors.New("graph: invalid definition json")

// Node is one declared processing node.
type Node struct {
	ID     string
	Kind   Kind
	Params Params
}

// NewNode returns a node of kind k with default parameters.
func NewNode(id string, k Kind) Node {
	return Node{ID: id, Kind: k, Params: DefaultParams(k)}
}

// TypeName returns the declared type string, including the raw name of
// unknown kinds.
func (n Node) TypeName() string {
	if p, ok := n.Params.(UnknownParams); ok && p.Type != "" {
		return p.Type
	}

	return n.Kind.String()
}

// Port addresses one side of a connection.
type Port struct {
	NodeID string
	Index  int
}

// Connection joins the output of one node to the input of another.
type Connection struct {
	From Port
	To   Port
}

// Definition is the declarative description of an effect graph.
type Definition struct {
	Nodes       []Node
	Connections []Connection
}

// Node returns the node with the given id.
func (d Definition) Node(id string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}

	return Node{}, false
}

// NodesOfKind returns every node of kind k in declaration order.
func (d Definition) NodesOfKind(k Kind) []Node {
	var out []Node

	for _, n := range d.Nodes {
		if n.Kind == k {
			out = append(out, n)
		}
	}

	return out
}

// Outgoing returns the connections leaving node id in declaration order.
func (d Definition) Outgoing(id string) []Connection {
	var out []Connection

	for _, c := range d.Connections {
		if c.From.NodeID == id {
			out = append(out, c)
		}
	}

	return out
}

// HasEndpoints reports whether the definition declares an input and an
// output node.
func (d Definition) HasEndpoints() bool {
	return len(d.NodesOfKind(KindInput)) > 0 && len(d.NodesOfKind(KindOutput)) > 0
}

type jsonPort struct {
	NodeID      string `json:"nodeId"`
	OutputIndex *int   `json:"outputIndex,omitempty"`
	InputIndex  *int   `json:"inputIndex,omitempty"`
}

type jsonConnection struct {
	From jsonPort `json:"from"`
	To   jsonPort `json:"to"`
}

type jsonNode struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

type jsonDefinition struct {
	Nodes       []jsonNode       `json:"nodes"`
	Connections []jsonConnection `json:"connections"`
}

// Parse decodes a definition from its JSON form. Unknown node types decode to
// KindUnknown; structural checks are left to the compiler and validator.
func Parse(data []byte) (Definition, error) {
	var def Definition
	if err := def.UnmarshalJSON(data); err != nil {
		return Definition{}, err
	}

	return def, nil
}

// Linear returns a definition that connects nodes one after another in the
// order given.
func Linear(nodes ...Node) Definition {
	def := Definition{Nodes: nodes}
	for i := 1; i < len(nodes); i++ {
		def.Connections = append(def.Connections, Connection{
			From: Port{NodeID: nodes[i-1].ID},
			To:   Port{NodeID: nodes[i].ID},
		})
	}

	return def
}

func (d *Definition) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw jsonDefinition
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}

	def := Definition{
		Nodes:       make([]Node, 0, len(raw.Nodes)),
		Connections: make([]Connection, 0, len(raw.Connections)),
	}

	for _, n := range raw.Nodes {
		k, _ := ParseKind(n.Type)
		def.Nodes = append(def.Nodes, Node{ID: n.ID, Kind: k, Params: decodeParams(k, n.Type, n.Params)})
	}

	for _, c := range raw.Connections {
		conn := Connection{
			From: Port{NodeID: c.From.NodeID},
			To:   Port{NodeID: c.To.NodeID},
		}
		if c.From.OutputIndex != nil {
			conn.From.Index = *c.From.OutputIndex
		}

		if c.To.InputIndex != nil {
			conn.To.Index = *c.To.InputIndex
		}

		def.Connections = append(def.Connections, conn)
	}

	*d = def

	return nil
}

func (d Definition) MarshalJSON() ([]byte, error) {
	raw := jsonDefinition{
		Nodes:       make([]jsonNode, 0, len(d.Nodes)),
		Connections: make([]jsonConnection, 0, len(d.Connections)),
	}

	for _, n := range d.Nodes {
		raw.Nodes = append(raw.Nodes, jsonNode{ID: n.ID, Type: n.TypeName(), Params: encodeParams(n.Params)})
	}

	for _, c := range d.Connections {
		out, in := c.From.Index, c.To.Index
		raw.Connections = append(raw.Connections, jsonConnection{
			From: jsonPort{NodeID: c.From.NodeID, OutputIndex: &out},
			To:   jsonPort{NodeID: c.To.NodeID, InputIndex: &in},
		})
	}

	return json.Marshal(raw)
}

// encodeParams flattens typed params back to their authored names.
func encodeParams(p Params) map[string]any {
	switch t := p.(type) {
	case GainParams:
		return map[string]any{"gain": t.Gain}
	case DelayParams:
		return map[string]any{"time": t.Time, "feedback": t.Feedback, "mix": t.Mix}
	case ReverbParams:
		m := map[string]any{"decay": t.Decay, "preDelay": t.PreDelay, "mix": t.Mix}
		if t.RoomSize > 0 {
			m["roomSize"] = t.RoomSize
		}

		return m
	case FilterParams:
		return map[string]any{"type": string(t.Type), "frequency": t.Frequency, "Q": t.Q}
	case DistortionParams:
		return map[string]any{"type": string(t.Type), "amount": t.Amount, "mix": t.Mix}
	case CompressorParams:
		return map[string]any{"threshold": t.Threshold, "ratio": t.Ratio, "attack": t.Attack, "release": t.Release}
	case ChorusParams:
		return map[string]any{"rate": t.Rate, "depth": t.Depth, "mix": t.Mix}
	case TremoloParams:
		return map[string]any{"rate": t.Rate, "depth": t.Depth, "shape": string(t.Shape)}
	case PannerParams:
		return map[string]any{"pan": t.Pan}
	case UnknownParams:
		return t.Raw
	default:
		return map[string]any{}
	}
}
