package edit

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/matthewbaird/recordview/internal/record"
)

// Page is the root edit context of a screen. Fields that do not belong to
// a repeatable child are owned by the page.
type Page struct {
	Ref    record.Ref
	New    bool
	fields []*FieldContext
	byName map[string]*FieldContext
}

// NewPage creates the root edit page for ref.
func NewPage(ref record.Ref, isNew bool) *Page {
	return &Page{Ref: ref, New: isNew, byName: make(map[string]*FieldContext)}
}

func (p *Page) OwnerID() string { return "page:" + p.Ref.String() }

// AddField attaches a field context to the page.
func (p *Page) AddField(fc *FieldContext) error {
	if err := fc.attach(p); err != nil {
		return err
	}
	if _, exists := p.byName[fc.Name]; !exists {
		p.fields = append(p.fields, fc)
	}
	p.byName[fc.Name] = fc
	return nil
}

// Field returns the page-level context for name, or nil.
func (p *Page) Field(name string) *FieldContext { return p.byName[name] }

// Fields returns the page-level contexts.
func (p *Page) Fields() []*FieldContext { return p.fields }

// Violation is one constraint violation.
type Violation struct {
	Field   string `json:"field"`
	ChildID string `json:"child_id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError carries the aggregated violations of a validation call.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Message
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// AsError wraps violations into a *ValidationError, or returns nil.
func AsError(vs []Violation) error {
	if len(vs) == 0 {
		return nil
	}
	return &ValidationError{Violations: vs}
}

// Check validates one field context. Inert contexts are skipped.
func Check(fc *FieldContext, childID string) []Violation {
	return check(fc, childID, true)
}

func check(fc *FieldContext, childID string, required bool) []Violation {
	if fc.Inert || fc.Spec == nil {
		return nil
	}
	var out []Violation
	label := fc.Spec.DisplayLabel()
	if label == "" {
		label = fc.Name
	}
	if required && fc.Spec.Attributes.Must && fc.Empty() {
		out = append(out, Violation{
			Field: fc.Name, ChildID: childID, Code: "required",
			Message: fmt.Sprintf("%s is required", label),
		})
	}
	c := fc.Spec.Constraints
	if c.MaxLength > 0 && utf8.RuneCountInString(fc.Value()) > c.MaxLength {
		out = append(out, Violation{
			Field: fc.Name, ChildID: childID, Code: "max_length",
			Message: fmt.Sprintf("%s exceeds %d characters", label, c.MaxLength),
		})
	}
	if c.Pattern != "" && !fc.Empty() {
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			out = append(out, Violation{
				Field: fc.Name, ChildID: childID, Code: "bad_pattern",
				Message: fmt.Sprintf("%s has an invalid pattern: %v", label, err),
			})
		} else if !re.MatchString(fc.Value()) {
			out = append(out, Violation{
				Field: fc.Name, ChildID: childID, Code: "pattern",
				Message: fmt.Sprintf("%s has an invalid format", label),
			})
		}
	}
	return out
}

// Violations validates the page-level fields.
func (p *Page) Violations() []Violation {
	var out []Violation
	for _, fc := range p.fields {
		out = append(out, Check(fc, "")...)
	}
	return out
}

// Violations validates a child against the page it is edited in. Deleted
// children, and new children nobody has filled in, are skipped because
// they are never persisted as creates. When an existing page is updated,
// a required field that was already empty and is untouched is not
// reported.
func (c *ChildContext) Violations(page *Page) []Violation {
	if c.deleteRequested {
		return nil
	}
	if c.New && !c.HasNonEmptyField() && len(c.changedLinks) == 0 {
		return nil
	}
	updating := page != nil && !page.New
	var out []Violation
	for _, fc := range c.fields {
		required := !(updating && !c.New && !fc.Changed() && fc.Original() == "")
		out = append(out, check(fc, c.ID, required)...)
	}
	return out
}
