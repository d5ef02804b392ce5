package hooks

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jrsteele09/go-auth-engine/users"
)

var (
	ErrFormNotFound = errors.New("form not found")
	ErrNodeNotFound = errors.New("form node not found")
)

type Field struct {
	Name     string `json:"name" yaml:"name"`
	Label    string `json:"label" yaml:"label"`
	Type     string `json:"type" yaml:"type"` // text | email | checkbox
	Required bool   `json:"required" yaml:"required"`
}

type Node struct {
	ID     string  `json:"id" yaml:"id"`
	Title  string  `json:"title" yaml:"title"`
	Fields []Field `json:"fields" yaml:"fields"`
}

// Form is a multi-step form shown while a login session awaits a hook.
type Form struct {
	ID       string `json:"id" yaml:"id"`
	TenantID string `json:"tenant_id" yaml:"tenant_id"`
	Name     string `json:"name" yaml:"name"`
	Nodes    []Node `json:"nodes" yaml:"nodes"`
}

func (f *Form) FirstNode() string {
	if len(f.Nodes) == 0 {
		return ""
	}
	return f.Nodes[0].ID
}

func (f *Form) Node(id string) (*Node, error) {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i], nil
		}
	}
	return nil, ErrNodeNotFound
}

// NextNode returns the node after id, or "" when id is the last node.
func (f *Form) NextNode(id string) string {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id && i+1 < len(f.Nodes) {
			return f.Nodes[i+1].ID
		}
	}
	return ""
}

// Validate returns the name of the first required field missing from values.
func (n *Node) Validate(values map[string]string) (string, bool) {
	for _, f := range n.Fields {
		if f.Required && strings.TrimSpace(values[f.Name]) == "" {
			return f.Name, false
		}
	}
	return "", true
}

const formMetadataPrefix = "form:"

// FormCompleted reports whether user has already submitted formID.
func FormCompleted(user *users.User, formID string) bool {
	return user.UserMetadata[formMetadataPrefix+formID] == "completed"
}

// MarkFormCompleted records formID on the user's metadata together with the submitted values.
func MarkFormCompleted(user *users.User, formID string, values map[string]string) {
	if user.UserMetadata == nil {
		user.UserMetadata = make(map[string]string)
	}
	for k, v := range values {
		user.UserMetadata[k] = v
	}
	user.UserMetadata[formMetadataPrefix+formID] = "completed"
}

type FormRepo interface {
	Upsert(ctx context.Context, form *Form) error
	Get(ctx context.Context, tenantID, id string) (*Form, error)
}

var _ FormRepo = (*InMemoryFormRepo)(nil)

type InMemoryFormRepo struct {
	mu    sync.RWMutex
	forms map[string]Form // tenantID/id -> Form
}

func NewInMemoryFormRepo() *InMemoryFormRepo {
	return &InMemoryFormRepo{forms: make(map[string]Form)}
}

func (r *InMemoryFormRepo) Upsert(_ context.Context, form *Form) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forms[form.TenantID+"/"+form.ID] = *form
	return nil
}

func (r *InMemoryFormRepo) Get(_ context.Context, tenantID, id string) (*Form, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	form, ok := r.forms[tenantID+"/"+id]
	if !ok {
		return nil, ErrFormNotFound
	}
	return &form, nil
}
