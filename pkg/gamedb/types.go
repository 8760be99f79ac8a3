package gamedb

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// VoidID is the reserved root of the containment tree. It contains itself.
const VoidID = "void"

// RoomCapacity is the default contain_size given to rooms.
const RoomCapacity = 100000

// Class is a tag describing what an entity is and what verbs apply to it.
type Class string

const (
	ClassRoom      Class = "room"
	ClassAgent     Class = "agent"
	ClassObject    Class = "object"
	ClassContainer Class = "container"
	ClassWearable  Class = "wearable"
	ClassWieldable Class = "wieldable"
	ClassFood      Class = "food"
	ClassDrink     Class = "drink"
	ClassVoid      Class = "void"
)

// PropKey names a property. The declared constants are the keys the engine
// itself reads; content packs may use any other key.
type PropKey string

const (
	PropSize        PropKey = "size"
	PropContainSize PropKey = "contain_size"
	PropIsPlayer    PropKey = "is_player"
	PropHealth      PropKey = "health"
	PropIsLocked    PropKey = "is_locked"
	PropDead        PropKey = "dead"
	PropHuman       PropKey = "human"
	PropExamined    PropKey = "examined"
	PropSpeed       PropKey = "speed"
	PropDamage      PropKey = "damage"
	PropDefense     PropKey = "defense"
	PropDeathTicks  PropKey = "death_ticks"
	PropPersona     PropKey = "persona"
	PropDesc        PropKey = "desc"
	PropExtraDesc   PropKey = "extra_desc"
	PropEquipped    PropKey = "equipped"
	PropGold        PropKey = "gold"
	PropSurfaceType PropKey = "surface_type"
	PropPolicy      PropKey = "policy"
	PropScript      PropKey = "script"
)

// Known reports whether k is one of the engine's declared keys.
func (k PropKey) Known() bool {
	switch k {
	case PropSize, PropContainSize, PropIsPlayer, PropHealth, PropIsLocked,
		PropDead, PropHuman, PropExamined, PropSpeed, PropDamage, PropDefense,
		PropDeathTicks, PropPersona, PropDesc, PropExtraDesc, PropEquipped,
		PropGold, PropSurfaceType, PropPolicy, PropScript:
		return true
	}
	return false
}

// ValueKind selects which field of a Value is meaningful.
type ValueKind int

const (
	KindInt ValueKind = iota
	KindBool
	KindStr
	KindList
)

// Value is a property value.
type Value struct {
	Kind ValueKind
	Int  int
	Bool bool
	Str  string
	List []string
}

// Int returns an integer Value.
func Int(n int) Value { return Value{Kind: KindInt, Int: n} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Str returns a string Value.
func Str(s string) Value { return Value{Kind: KindStr, Str: s} }

// List returns a list Value.
func List(items ...string) Value {
	return Value{Kind: KindList, List: append([]string(nil), items...)}
}

// AsInt coerces the value to an int. Booleans are 0 or 1, strings are parsed.
func (v Value) AsInt() int {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindBool:
		if v.Bool {
			return 1
		}
		return 0
	case KindStr:
		n, _ := strconv.Atoi(strings.TrimSpace(v.Str))
		return n
	case KindList:
		return len(v.List)
	}
	return 0
}

// AsBool coerces the value to a bool.
func (v Value) AsBool() bool {
	switch v.Kind {
	case KindInt:
		return v.Int != 0
	case KindBool:
		return v.Bool
	case KindStr:
		b, _ := strconv.ParseBool(v.Str)
		return b
	case KindList:
		return len(v.List) > 0
	}
	return false
}

// AsString renders the value as text.
func (v Value) AsString() string {
	switch v.Kind {
	case KindInt:
		return strconv.Itoa(v.Int)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindStr:
		return v.Str
	case KindList:
		return strings.Join(v.List, ", ")
	}
	return ""
}

// Equal reports whether two values hold the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindInt:
		return v.Int == o.Int
	case KindBool:
		return v.Bool == o.Bool
	case KindStr:
		return v.Str == o.Str
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if v.List[i] != o.List[i] {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON encodes the value as a plain JSON scalar or array.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindInt:
		return json.Marshal(v.Int)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	default:
		return json.Marshal(v.Str)
	}
}

// UnmarshalJSON decodes a plain JSON scalar or array.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	val, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// ValueOf converts a decoded JSON or YAML scalar into a Value.
func ValueOf(raw any) (Value, error) {
	switch t := raw.(type) {
	case int:
		return Int(t), nil
	case int64:
		return Int(int(t)), nil
	case float64:
		return Int(int(t)), nil
	case bool:
		return Bool(t), nil
	case string:
		return Str(t), nil
	case nil:
		return Str(""), nil
	case []any:
		items := make([]string, 0, len(t))
		for _, it := range t {
			items = append(items, fmt.Sprint(it))
		}
		return List(items...), nil
	case []string:
		return List(t...), nil
	}
	return Value{}, fmt.Errorf("gamedb: unsupported property value %T", raw)
}

// Props is an entity's property map.
type Props map[PropKey]Value

// Clone returns a copy of the map.
func (p Props) Clone() Props {
	out := make(Props, len(p))
	for k, v := range p {
		if v.Kind == KindList {
			v.List = append([]string(nil), v.List...)
		}
		out[k] = v
	}
	return out
}

// Entity is a node of the world graph: a room, an object or an agent.
type Entity struct {
	ID      string
	Desc    string
	Names   []string
	Classes map[Class]bool
	Props   Props
}

// HasClass reports whether the entity carries tag c.
func (e *Entity) HasClass(c Class) bool {
	return e.Classes[c]
}

// ClassList returns the entity's classes in sorted order.
func (e *Entity) ClassList() []string {
	out := make([]string, 0, len(e.Classes))
	for c := range e.Classes {
		out = append(out, string(c))
	}
	sort.Strings(out)
	return out
}

// Path is a directed room-to-room edge.
type Path struct {
	Label        string `json:"label"`
	ExamineDesc  string `json:"examine_desc,omitempty"`
	LockedDesc   string `json:"locked_desc"`
	UnlockedDesc string `json:"unlocked_desc"`
	LockedWith   string `json:"locked_with,omitempty"`
	Locked       bool   `json:"is_locked"`
	FullLabel    bool   `json:"full_label,omitempty"`
}
