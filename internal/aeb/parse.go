package aeb

import (
	"encoding/json"
	"fmt"
)

// Frame is one scene as it arrives from an upstream perception unit or an
// API client.
type Frame struct {
	Seq     uint64              `json:"seq"`
	Weather WeatherCondition    `json:"weather,omitempty"`
	Objects []GroundTruthObject `json:"objects"`
}

// ParseScene decodes a JSON array of object descriptors:
//
//	[{"id": 1, "type": "pedestrian", "position": [12, 0],
//	  "velocity": [0, 0], "size": [0.6, 1.8]}]
//
// id is optional and defaults to the 1-based index. Every other field is
// required. Any rejected field yields an *InputError.
func ParseScene(data []byte) ([]GroundTruthObject, error) {
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &InputError{Index: -1, Field: "objects", Reason: fmt.Sprintf("not a JSON array of objects: %v", err)}
	}
	return parseDescriptors(raw)
}

// ParseFrame decodes a frame envelope:
//
//	{"seq": 7, "weather": "fog", "objects": [...]}
//
// weather is optional; an empty Weather means the receiver keeps its current
// setting.
func ParseFrame(data []byte) (Frame, error) {
	var env struct {
		Seq     uint64                       `json:"seq"`
		Weather string                       `json:"weather"`
		Objects []map[string]json.RawMessage `json:"objects"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return Frame{}, &InputError{Index: -1, Field: "frame", Reason: err.Error()}
	}
	f := Frame{Seq: env.Seq}
	if env.Weather != "" {
		w, err := ParseWeather(env.Weather)
		if err != nil {
			return Frame{}, &InputError{Index: -1, Field: "weather", Reason: err.Error()}
		}
		f.Weather = w
	}
	objs, err := parseDescriptors(env.Objects)
	if err != nil {
		return Frame{}, err
	}
	f.Objects = objs
	return f, nil
}

func parseDescriptors(raw []map[string]json.RawMessage) ([]GroundTruthObject, error) {
	out := make([]GroundTruthObject, 0, len(raw))
	for i, desc := range raw {
		o, err := parseDescriptor(i, desc)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func parseDescriptor(i int, desc map[string]json.RawMessage) (GroundTruthObject, error) {
	if desc == nil {
		return GroundTruthObject{}, inputErrorf(i, "object", "descriptor is null")
	}
	o := GroundTruthObject{ID: i + 1}
	if rawID, ok := desc["id"]; ok {
		if err := json.Unmarshal(rawID, &o.ID); err != nil {
			return o, inputErrorf(i, "id", "must be an integer")
		}
	}

	rawType, ok := desc["type"]
	if !ok {
		return o, inputErrorf(i, "type", "missing")
	}
	var typ string
	if err := json.Unmarshal(rawType, &typ); err != nil {
		return o, inputErrorf(i, "type", "must be a string")
	}
	class, err := ParseObjectClass(typ)
	if err != nil {
		return o, inputErrorf(i, "type", "%v", err)
	}
	o.Class = class

	pos, err := pair(i, desc, "position")
	if err != nil {
		return o, err
	}
	vel, err := pair(i, desc, "velocity")
	if err != nil {
		return o, err
	}
	size, err := pair(i, desc, "size")
	if err != nil {
		return o, err
	}
	o.Position = Vec2{X: pos[0], Y: pos[1]}
	o.Velocity = Vec2{X: vel[0], Y: vel[1]}
	o.Size = Size{Width: size[0], Length: size[1]}

	if err := o.Validate(i); err != nil {
		return o, err
	}
	return o, nil
}

func pair(i int, desc map[string]json.RawMessage, field string) ([2]float64, error) {
	var out [2]float64
	raw, ok := desc[field]
	if !ok {
		return out, inputErrorf(i, field, "missing")
	}
	var vals []interface{}
	if err := json.Unmarshal(raw, &vals); err != nil {
		return out, inputErrorf(i, field, "must be an array of two numbers")
	}
	if len(vals) != 2 {
		return out, inputErrorf(i, field, "must have exactly 2 components, got %d", len(vals))
	}
	for k, v := range vals {
		f, ok := v.(float64)
		if !ok {
			return out, inputErrorf(i, field, "component %d is not numeric", k)
		}
		out[k] = f
	}
	return out, nil
}
