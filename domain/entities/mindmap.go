package entities

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Position is an optional layout hint for a node
type Position struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

// Node is a concept in a mind map
type Node struct {
	ID       string    `json:"id" bson:"id"`
	Label    string    `json:"label" bson:"label"`
	Type     string    `json:"type,omitempty" bson:"type,omitempty"`
	Position *Position `json:"position,omitempty" bson:"position,omitempty"`
}

// Edge is a labeled relation between two nodes
type Edge struct {
	ID     string `json:"id" bson:"id"`
	Source string `json:"source" bson:"source"`
	Target string `json:"target" bson:"target"`
	Label  string `json:"label,omitempty" bson:"label,omitempty"`
	Type   string `json:"type,omitempty" bson:"type,omitempty"`
}

// MindMap is a small labeled graph extracted from a session's transcripts.
// It is only ever stored complete.
type MindMap struct {
	ID             int64     `json:"id" bson:"_id"`
	SessionID      string    `json:"session_id" bson:"session_id"`
	Nodes          []Node    `json:"nodes" bson:"nodes"`
	Edges          []Edge    `json:"edges" bson:"edges"`
	Prompt         string    `json:"prompt,omitempty" bson:"prompt,omitempty"`
	Model          string    `json:"model,omitempty" bson:"model,omitempty"`
	ProcessingTime float64   `json:"processing_time" bson:"processing_time"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

// Validate validates the mind map before it is stored
func (m *MindMap) Validate() error {
	if m.SessionID == "" {
		return errors.New("session_id is required")
	}
	if m.Nodes == nil || m.Edges == nil {
		return errors.New("mind map requires both nodes and edges")
	}
	return nil
}

// GraphFromMap converts a parsed JSON object holding "nodes" and "edges"
// into typed slices. Both keys must be present and hold arrays.
func GraphFromMap(raw map[string]any) ([]Node, []Edge, error) {
	rawNodes, ok := raw["nodes"].([]any)
	if !ok {
		return nil, nil, errors.New("nodes must be an array")
	}
	rawEdges, ok := raw["edges"].([]any)
	if !ok {
		return nil, nil, errors.New("edges must be an array")
	}

	nodes := []Node{}
	if err := remarshal(rawNodes, &nodes); err != nil {
		return nil, nil, fmt.Errorf("invalid nodes: %w", err)
	}
	edges := []Edge{}
	if err := remarshal(rawEdges, &edges); err != nil {
		return nil, nil, fmt.Errorf("invalid edges: %w", err)
	}
	return nodes, edges, nil
}

func remarshal(in any, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
