package screens

import (
	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
)

// Field types understood by the page template.
const (
	FieldText     = "text"
	FieldEmail    = "email"
	FieldPassword = "password"
	FieldHidden   = "hidden"
	FieldCheckbox = "checkbox"
	FieldCode     = "code"
)

type Field struct {
	Name     string
	Label    string
	Type     string
	Value    string
	Required bool
	Error    string
}

// Button is an extra submit button posting Name=Value with the screen's form.
type Button struct {
	Name  string
	Value string
	Label string
}

type Link struct {
	Label string
	URL   string
}

// View is everything the page template needs to draw one screen.
type View struct {
	Screen      string
	Title       string
	Description string
	// Action is the form target. It always carries the login session state.
	Action    string
	Fields    []Field
	Submit    string
	Secondary []Button
	Links     []Link
	Notice    string
	Error     string
	CSRFToken string
	Locale    string
	Text      RenderContext
}

// Field returns the named field, or nil.
func (v *View) Field(name string) *Field {
	for i := range v.Fields {
		if v.Fields[i].Name == name {
			return &v.Fields[i]
		}
	}
	return nil
}

// SetError shows err on its field when the view has one, otherwise above the form.
func (v *View) SetError(err error) {
	if err == nil {
		return
	}
	var e *apperrors.Error
	if !apperrors.As(err, &e) {
		v.Error = v.Text.T("error.generic")
		return
	}
	if e.Kind == apperrors.KindTransient {
		v.Error = v.Text.T("error.generic")
		return
	}
	if f := v.Field(e.Field); f != nil && e.Field != "" {
		f.Error = e.Message
		return
	}
	v.Error = e.Message
}
