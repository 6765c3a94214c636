package kind

import "strings"

// Kind identifies a hierarchical event kind using dot notation.
// Examples: "telemetry.gpu", "config.changed", "plan.split"
//
// The dot structure is the hierarchy: "telemetry.gpu" is a child of
// "telemetry", and a subscription on "telemetry" receives every event
// whose kind descends from it. Ancestry is resolved by walking the
// dot-prefixes of the concrete kind, so lookup is a fixed table walk
// with no runtime type inspection.
type Kind string

const (
	// Any is the root of the kind hierarchy. A subscription on Any
	// receives every event published on the typed channel.
	Any Kind = "*"

	// Separator is the character used to separate kind segments.
	Separator = "."
)

// String returns the kind as a string.
func (k Kind) String() string {
	return string(k)
}

// Segments returns the kind split by the separator.
func (k Kind) Segments() []string {
	if k == "" {
		return nil
	}
	return strings.Split(string(k), Separator)
}

// Parent returns the parent kind by removing the last segment.
// Returns an empty kind if there is no parent.
//
// Example: "telemetry.gpu.metrics" -> "telemetry.gpu"
func (k Kind) Parent() Kind {
	s := string(k)
	idx := strings.LastIndex(s, Separator)
	if idx < 0 {
		return ""
	}
	return Kind(s[:idx])
}

// Child returns a child kind by appending a segment.
//
// Example: "telemetry".Child("gpu") -> "telemetry.gpu"
func (k Kind) Child(segment string) Kind {
	if k == "" {
		return Kind(segment)
	}
	return Kind(string(k) + Separator + segment)
}

// Base returns the last segment of the kind.
//
// Example: "telemetry.gpu" -> "gpu"
func (k Kind) Base() string {
	s := string(k)
	idx := strings.LastIndex(s, Separator)
	if idx < 0 {
		return s
	}
	return s[idx+1:]
}

// Ancestors returns the chain of parent kinds from the immediate parent
// up to the topmost segment, not including the kind itself and not
// including Any.
//
// Example: "telemetry.gpu.metrics" -> ["telemetry.gpu", "telemetry"]
func (k Kind) Ancestors() []Kind {
	var chain []Kind
	for p := k.Parent(); p != ""; p = p.Parent() {
		chain = append(chain, p)
	}
	return chain
}

// Lineage returns the full dispatch chain for the kind: the kind itself,
// each ancestor in order, and finally Any. Lineage(Any) is [Any].
func (k Kind) Lineage() []Kind {
	if k == Any {
		return []Kind{Any}
	}
	chain := make([]Kind, 0, 4)
	chain = append(chain, k)
	chain = append(chain, k.Ancestors()...)
	chain = append(chain, Any)
	return chain
}

// IsDescendantOf returns true if the kind is the other kind or descends
// from it. Every kind descends from Any.
func (k Kind) IsDescendantOf(other Kind) bool {
	if other == Any {
		return true
	}
	s, p := string(k), string(other)
	if !strings.HasPrefix(s, p) {
		return false
	}
	if len(s) == len(p) {
		return true
	}
	return s[len(p)] == '.'
}

// IsValid returns true if the kind is well formed.
// A valid kind:
//   - Is not empty
//   - Is Any, or contains no separator abuse: no leading/trailing
//     separator, no consecutive separators, no empty segments
func (k Kind) IsValid() bool {
	if k == Any {
		return true
	}
	s := string(k)
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, Separator) || strings.HasSuffix(s, Separator) {
		return false
	}
	if strings.Contains(s, Separator+Separator) {
		return false
	}
	for _, seg := range k.Segments() {
		if seg == "" {
			return false
		}
	}
	return true
}

// Join joins multiple segments into a kind.
func Join(segments ...string) Kind {
	return Kind(strings.Join(segments, Separator))
}
