package config

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/boshu2/regtest/internal/pipeline"
)

// Ordered is a YAML mapping that remembers declaration order, since the
// first declared test, pipe and corpus group are the defaults.
type Ordered[T any] struct {
	keys   []string
	values map[string]T
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (o *Ordered[T]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	o.keys = nil
	o.values = make(map[string]T, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var v T
		if err := node.Content[i+1].Decode(&v); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		o.Set(key, v)
	}
	return nil
}

// MarshalJSON renders the values in declaration order as a list.
func (o Ordered[T]) MarshalJSON() ([]byte, error) {
	out := make([]T, 0, len(o.keys))
	for _, k := range o.keys {
		out = append(out, o.values[k])
	}
	return json.Marshal(out)
}

// Set adds or replaces key.
func (o *Ordered[T]) Set(key string, v T) {
	if o.values == nil {
		o.values = make(map[string]T)
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Get returns the value of key.
func (o Ordered[T]) Get(key string) (T, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Keys returns the keys in declaration order.
func (o Ordered[T]) Keys() []string {
	return append([]string(nil), o.keys...)
}

// Len is the number of keys.
func (o Ordered[T]) Len() int {
	return len(o.keys)
}

// StringList accepts either a single string or a list of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*l = StringList{node.Value}
		return nil
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return err
	}
	*l = list
	return nil
}

// Pipe declares a pipeline in one of three forms: a list whose items are
// step names or inline stages, a mapping from stage name to stage, or a
// command whose output describes the pipeline.
type Pipe struct {
	// Command, when set, is run to discover the stages.
	Command string
	// Items holds the stage references and inline stages in order.
	Items []PipeItem
}

// PipeItem is either a reference to a declared step or an inline stage.
type PipeItem struct {
	Ref    string
	Inline *pipeline.Stage
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *Pipe) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		p.Command = node.Value
		return nil
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item.Kind == yaml.ScalarNode {
				p.Items = append(p.Items, PipeItem{Ref: item.Value})
				continue
			}
			var st pipeline.Stage
			if err := item.Decode(&st); err != nil {
				return fmt.Errorf("line %d: %w", item.Line, err)
			}
			p.Items = append(p.Items, PipeItem{Inline: &st})
		}
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			var st pipeline.Stage
			if err := node.Content[i+1].Decode(&st); err != nil {
				return fmt.Errorf("%s: %w", node.Content[i].Value, err)
			}
			st.Name = node.Content[i].Value
			p.Items = append(p.Items, PipeItem{Inline: &st})
		}
		return nil
	}
	return fmt.Errorf("line %d: pipe must be a command, list or mapping", node.Line)
}
