// Package schema declares connector configuration fields and rebuilds the
// schema when a trigger field changes value.
package schema

// Kind is the type of a configuration field.
type Kind string

const (
	KindText          Kind = "text"
	KindBoolean       Kind = "boolean"
	KindInteger       Kind = "integer"
	KindEncryptedText Kind = "encrypted_text"
	KindChoice        Kind = "choice"
	KindDocument      Kind = "document"
	KindFolderRef     Kind = "folder"
	// KindGroup nests fields for layout; it holds no value of its own.
	KindGroup Kind = "group"
)

// Choice is one selectable option of a choice field.
type Choice struct {
	Name  string `json:"name" yaml:"name"`
	Value any    `json:"value" yaml:"value"`
}

// FieldSpec describes a single configuration field.
type FieldSpec struct {
	Key             string      `json:"key"`
	Kind            Kind        `json:"kind"`
	Label           string      `json:"label,omitempty"`
	Description     string      `json:"description,omitempty"`
	Instruction     string      `json:"instruction,omitempty"`
	Placeholder     string      `json:"placeholder,omitempty"`
	Required        bool        `json:"required,omitempty"`
	Choices         []Choice    `json:"choices,omitempty"`
	RefreshOnChange bool        `json:"refreshOnChange,omitempty"`
	Default         any         `json:"default,omitempty"`
	Rules           []Rule      `json:"-"`
	Fields          []FieldSpec `json:"fields,omitempty"`

	// Errors holds rule violations for the current value, set by Definition.Build.
	Errors []string `json:"errors,omitempty"`
}

// Sensitive reports whether the field's value must never be echoed.
func (f FieldSpec) Sensitive() bool {
	return f.Kind == KindEncryptedText
}

// HasChoice reports whether v is one of the field's choice values.
func (f FieldSpec) HasChoice(v any) bool {
	for _, c := range f.Choices {
		if sameValue(c.Value, v) {
			return true
		}
	}
	return false
}

func (f FieldSpec) clone() FieldSpec {
	out := f
	out.Choices = append([]Choice(nil), f.Choices...)
	out.Rules = append([]Rule(nil), f.Rules...)
	out.Errors = nil
	if len(f.Fields) > 0 {
		out.Fields = make([]FieldSpec, len(f.Fields))
		for i, c := range f.Fields {
			out.Fields[i] = c.clone()
		}
	}
	return out
}

// Text returns a text field.
func Text(key, label string) FieldSpec {
	return FieldSpec{Key: key, Kind: KindText, Label: label}
}

// Encrypted returns an encrypted text field.
func Encrypted(key, label string) FieldSpec {
	return FieldSpec{Key: key, Kind: KindEncryptedText, Label: label}
}

// Boolean returns a boolean field.
func Boolean(key, label string) FieldSpec {
	return FieldSpec{Key: key, Kind: KindBoolean, Label: label}
}

// Integer returns an integer field.
func Integer(key, label string) FieldSpec {
	return FieldSpec{Key: key, Kind: KindInteger, Label: label}
}

// Dropdown returns a choice field with the given options.
func Dropdown(key, label string, choices ...Choice) FieldSpec {
	return FieldSpec{Key: key, Kind: KindChoice, Label: label, Choices: choices}
}

// Document returns a document reference field.
func Document(key, label string) FieldSpec {
	return FieldSpec{Key: key, Kind: KindDocument, Label: label}
}

// Folder returns a folder reference field.
func Folder(key, label string) FieldSpec {
	return FieldSpec{Key: key, Kind: KindFolderRef, Label: label}
}

// Group nests fields under key.
func Group(key, label string, fields ...FieldSpec) FieldSpec {
	return FieldSpec{Key: key, Kind: KindGroup, Label: label, Fields: fields}
}

// Require marks the field required.
func (f FieldSpec) Require() FieldSpec {
	f.Required = true
	return f
}

// Refresh marks the field as triggering a schema rebuild when it changes.
func (f FieldSpec) Refresh() FieldSpec {
	f.RefreshOnChange = true
	return f
}

// WithRules appends validation rules.
func (f FieldSpec) WithRules(rules ...Rule) FieldSpec {
	f.Rules = append(append([]Rule(nil), f.Rules...), rules...)
	return f
}

// WithDefault sets the value used when none is given.
func (f FieldSpec) WithDefault(v any) FieldSpec {
	f.Default = v
	return f
}

// WithPlaceholder sets the placeholder text.
func (f FieldSpec) WithPlaceholder(p string) FieldSpec {
	f.Placeholder = p
	return f
}

// WithInstruction sets the instruction text.
func (f FieldSpec) WithInstruction(s string) FieldSpec {
	f.Instruction = s
	return f
}

// WithDescription sets the description.
func (f FieldSpec) WithDescription(s string) FieldSpec {
	f.Description = s
	return f
}
