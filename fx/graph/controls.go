package graph

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ControlKind is the widget family a panel control is drawn as.
type ControlKind string

const (
	ControlKnob   ControlKind = "knob"
	ControlSlider ControlKind = "slider"
	ControlToggle ControlKind = "toggle"
	ControlSelect ControlKind = "select"
	ControlXY     ControlKind = "xy"
)

// Control binds one panel widget to a node parameter.
type Control struct {
	ID     string      `json:"id"`
	Kind   ControlKind `json:"type"`
	Label  string      `json:"label"`
	NodeID string      `json:"nodeId"`
	Param  string      `json:"param"`
}

// ParseControls decodes a panel's control list. A bare array and an object
// with a "controls" field are both accepted.
func ParseControls(data []byte) ([]Control, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}

	var controls []Control

	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &controls); err != nil {
			return nil, fmt.Errorf("%w: controls: %w", ErrInvalidJSON, err)
		}
	} else {
		var wrapper struct {
			Controls []Control `json:"controls"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: controls: %w", ErrInvalidJSON, err)
		}

		controls = wrapper.Controls
	}

	for i := range controls {
		controls[i].Kind = ControlKind(strings.ToLower(strings.TrimSpace(string(controls[i].Kind))))
	}

	return controls, nil
}
