// Package graph builds deferred raster expressions. Nothing here touches pixels:
// a Node only describes a computation that an evaluation backend performs on demand.
package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"snowdiff_service/internal/domain/model"
)

type Op string

const (
	OpLoadCollection       Op = "ImageCollection.load"
	OpFilterBounds         Op = "ImageCollection.filterBounds"
	OpFilterDate           Op = "ImageCollection.filterDate"
	OpFilterMonth          Op = "ImageCollection.filterCalendarMonth"
	OpFilterMetadata       Op = "ImageCollection.filterMetadata"
	OpMap                  Op = "ImageCollection.map"
	OpReduce               Op = "ImageCollection.reduce"
	OpSize                 Op = "ImageCollection.size"
	OpVariable             Op = "Variable"
	OpSelect               Op = "Image.select"
	OpBitwiseAnd           Op = "Image.bitwiseAnd"
	OpEq                   Op = "Image.eq"
	OpGt                   Op = "Image.gt"
	OpAnd                  Op = "Image.and"
	OpUpdateMask           Op = "Image.updateMask"
	OpNormalizedDifference Op = "Image.normalizedDifference"
	OpSubtract             Op = "Image.subtract"
	OpClip                 Op = "Image.clip"
	OpRename               Op = "Image.rename"
)

// Node is one immutable step of an expression graph.
type Node struct {
	op     Op
	inputs []*Node
	params map[string]any
}

func newNode(op Op, params map[string]any, inputs ...*Node) *Node {
	return &Node{op: op, inputs: inputs, params: params}
}

func (n *Node) Op() Op { return n.op }

// Inputs returns a copy of the node's operands.
func (n *Node) Inputs() []*Node {
	return append([]*Node(nil), n.inputs...)
}

// Input returns operand i or nil.
func (n *Node) Input(i int) *Node {
	if i < 0 || i >= len(n.inputs) {
		return nil
	}
	return n.inputs[i]
}

// ParamKeys lists parameter names in sorted order.
func (n *Node) ParamKeys() []string {
	keys := make([]string, 0, len(n.params))
	for k := range n.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (n *Node) StringParam(key string) (string, error) {
	v, ok := n.params[key].(string)
	if !ok {
		return "", n.paramErr(key, "string")
	}
	return v, nil
}

func (n *Node) StringsParam(key string) ([]string, error) {
	v, ok := n.params[key].([]string)
	if !ok {
		return nil, n.paramErr(key, "[]string")
	}
	return append([]string(nil), v...), nil
}

func (n *Node) FloatParam(key string) (float64, error) {
	v, ok := n.params[key].(float64)
	if !ok {
		return 0, n.paramErr(key, "float64")
	}
	return v, nil
}

func (n *Node) IntParam(key string) (int64, error) {
	v, ok := n.params[key].(int64)
	if !ok {
		return 0, n.paramErr(key, "int64")
	}
	return v, nil
}

func (n *Node) TimeParam(key string) (time.Time, error) {
	v, ok := n.params[key].(time.Time)
	if !ok {
		return time.Time{}, n.paramErr(key, "time.Time")
	}
	return v, nil
}

func (n *Node) RegionParam(key string) (model.Region, error) {
	v, ok := n.params[key].(model.Region)
	if !ok {
		return model.Region{}, n.paramErr(key, "model.Region")
	}
	return v, nil
}

// FuncParam returns a nested lambda body, as used by OpMap.
func (n *Node) FuncParam(key string) (*Node, error) {
	v, ok := n.params[key].(*Node)
	if !ok {
		return nil, n.paramErr(key, "*Node")
	}
	return v, nil
}

func (n *Node) paramErr(key, want string) error {
	return fmt.Errorf("%s: parameter %q missing or not %s", n.op, key, want)
}

// Walk visits n and everything reachable from it, lambda bodies included, depth first.
func (n *Node) Walk(visit func(*Node)) {
	visit(n)
	for _, in := range n.inputs {
		in.Walk(visit)
	}
	for _, k := range n.ParamKeys() {
		if fn, ok := n.params[k].(*Node); ok {
			fn.Walk(visit)
		}
	}
}

// Count returns how many nodes reachable from n carry op.
func (n *Node) Count(op Op) int {
	c := 0
	n.Walk(func(m *Node) {
		if m.op == op {
			c++
		}
	})
	return c
}

type wireNode struct {
	Op     Op             `json:"op"`
	Inputs []*Node        `json:"inputs,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

// MarshalJSON renders the wire form the evaluation service accepts.
func (n *Node) MarshalJSON() ([]byte, error) {
	params := make(map[string]any, len(n.params))
	for k, v := range n.params {
		if t, ok := v.(time.Time); ok {
			params[k] = t.UTC().Format(time.RFC3339)
			continue
		}
		params[k] = v
	}
	return json.Marshal(wireNode{Op: n.op, Inputs: n.inputs, Params: params})
}

// Fingerprint is a stable digest of the graph, identical for identical expressions.
func (n *Node) Fingerprint() string {
	b, err := json.Marshal(n)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
