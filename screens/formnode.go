package screens

import (
	"context"
	"net/url"

	"github.com/jrsteele09/go-auth-engine/auth"
	"github.com/jrsteele09/go-auth-engine/hooks"
)

// FormNode renders one node of the form a post-login hook is waiting on.
type FormNode struct{}

func (FormNode) ID() string { return auth.ScreenFormNode }

func (FormNode) Render(ctx context.Context, fc *FlowContext) (*View, error) {
	form, node, err := fc.Service.FormNode(ctx, fc.LoginSession, fc.FormID, fc.NodeID)
	if err != nil {
		return nil, err
	}
	v := &View{
		Title:  node.Title,
		Action: auth.FormNodePath(form.ID, node.ID, fc.state()),
		Submit: fc.Text.T("form.submit"),
	}
	if v.Title == "" {
		v.Title = form.Name
	}
	for _, f := range node.Fields {
		v.Fields = append(v.Fields, Field{
			Name:     f.Name,
			Label:    f.Label,
			Type:     fieldType(f),
			Required: f.Required,
		})
	}
	return v, nil
}

func (FormNode) Submit(ctx context.Context, fc *FlowContext, form url.Values) auth.Result {
	values := make(map[string]string, len(form))
	for k := range form {
		if k == CSRFField {
			continue
		}
		values[k] = form.Get(k)
	}
	return fc.Service.SubmitFormNode(ctx, fc.LoginSession, fc.FormID, fc.NodeID, values, fc.Request)
}

func fieldType(f hooks.Field) string {
	switch f.Type {
	case FieldEmail, FieldCheckbox:
		return f.Type
	default:
		return FieldText
	}
}
