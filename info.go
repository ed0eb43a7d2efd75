package hannou

import (
	"fmt"
	"io"
	"reflect"

	"gopkg.in/yaml.v3"
)

// ComponentInfo describes one component kind. Its position in
// ContextInfo.Components is the kind index.
type ComponentInfo struct {
	Name string       `yaml:"name"`
	Type reflect.Type `yaml:"-"`
}

// ContextInfo describes the component-kind space shared by every entity of
// a Context. Kind indices are dense and assigned in declaration order.
type ContextInfo struct {
	Name       string          `yaml:"name"`
	Components []ComponentInfo `yaml:"-"`
}

// TotalComponents returns the number of declared component kinds.
func (info *ContextInfo) TotalComponents() int {
	return len(info.Components)
}

// ComponentName returns the declared name for kind, or its decimal index if
// kind is out of range.
func (info *ContextInfo) ComponentName(kind int) string {
	if kind < 0 || kind >= len(info.Components) {
		return fmt.Sprintf("%d", kind)
	}
	return info.Components[kind].Name
}

// ComponentNames returns the declared names in kind order.
func (info *ContextInfo) ComponentNames() []string {
	names := make([]string, len(info.Components))
	for i, c := range info.Components {
		names[i] = c.Name
	}
	return names
}

// Kind returns the kind index for a declared component name.
func (info *ContextInfo) Kind(name string) (int, error) {
	for i, c := range info.Components {
		if c.Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q in context %q", ErrUnknownComponentName, name, info.Name)
}

// RegisterComponent declares component type T under its type name and
// returns its kind index. If a kind with that name was already declared
// without a type (for example by LoadContextInfo) the type is bound to it.
// Registering the same type twice returns the existing index.
// It panics if the maximum number of component kinds is exceeded.
func RegisterComponent[T any](info *ContextInfo) int {
	t := reflect.TypeFor[T]()
	return info.register(componentName(t), t)
}

// RegisterNamedComponent is RegisterComponent with an explicit name.
func RegisterNamedComponent[T any](info *ContextInfo, name string) int {
	return info.register(name, reflect.TypeFor[T]())
}

func (info *ContextInfo) register(name string, t reflect.Type) int {
	for i, c := range info.Components {
		if c.Type == t && t != nil {
			return i
		}
		if c.Name == name {
			if c.Type == nil {
				info.Components[i].Type = t
				return i
			}
			if c.Type != t {
				panic(fmt.Sprintf("component name %q already bound to %s", name, c.Type))
			}
		}
	}
	if len(info.Components) >= MaxComponentKinds {
		panic(fmt.Sprintf("cannot register component %s: maximum number of component kinds (%d) reached", name, MaxComponentKinds))
	}
	info.Components = append(info.Components, ComponentInfo{Name: name, Type: t})
	return len(info.Components) - 1
}

// componentName strips pointer indirections so that *Position and Position
// both register as "Position".
func componentName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

type contextInfoDocument struct {
	Name       string   `yaml:"name"`
	Components []string `yaml:"components"`
}

// LoadContextInfo decodes a YAML context declaration:
//
//	name: game
//	components:
//	  - Position
//	  - Velocity
//
// The listed names become kinds 0..n-1 with no bound types; bind them with
// RegisterComponent or RegisterNamedComponent before creating components
// through Context.CreateComponent.
func LoadContextInfo(r io.Reader) (ContextInfo, error) {
	var doc contextInfoDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return ContextInfo{}, fmt.Errorf("decode context info: %w", err)
	}
	if len(doc.Components) > MaxComponentKinds {
		return ContextInfo{}, fmt.Errorf("context %q declares %d component kinds, maximum is %d", doc.Name, len(doc.Components), MaxComponentKinds)
	}
	info := ContextInfo{Name: doc.Name, Components: make([]ComponentInfo, 0, len(doc.Components))}
	seen := make(map[string]struct{}, len(doc.Components))
	for _, name := range doc.Components {
		if name == "" {
			return ContextInfo{}, fmt.Errorf("context %q: empty component name", doc.Name)
		}
		if _, ok := seen[name]; ok {
			return ContextInfo{}, fmt.Errorf("context %q: duplicate component name %q", doc.Name, name)
		}
		seen[name] = struct{}{}
		info.Components = append(info.Components, ComponentInfo{Name: name})
	}
	return info, nil
}

// checkKind panics if kind can never be a valid component kind index.
func checkKind(kind int) {
	if kind < 0 || kind >= MaxComponentKinds {
		panic(fmt.Sprintf("component kind %d exceeds maximum (%d)", kind, MaxComponentKinds))
	}
}
