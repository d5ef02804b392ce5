package notify

import (
	"context"
	"sync"
)

// Kind of a recorded notification.
type Kind string

const (
	KindCode          Kind = "code"
	KindLink          Kind = "link"
	KindResetPassword Kind = "reset_password"
)

type Sent struct {
	Kind     Kind
	To       Recipient
	Code     string
	Link     string
	Language string
}

// Recorder keeps every notification in memory. Err, when set, is returned from every send
// after recording.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	Err  error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) SendCode(_ context.Context, to Recipient, code, language string) error {
	return r.record(Sent{Kind: KindCode, To: to, Code: code, Language: language})
}

func (r *Recorder) SendLink(_ context.Context, to Recipient, code, link, language string) error {
	return r.record(Sent{Kind: KindLink, To: to, Code: code, Link: link, Language: language})
}

func (r *Recorder) SendResetPassword(_ context.Context, to Recipient, link, language string) error {
	return r.record(Sent{Kind: KindResetPassword, To: to, Link: link, Language: language})
}

func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// Last returns the most recent notification, if any.
func (r *Recorder) Last() (Sent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Sent{}, false
	}
	return r.sent[len(r.sent)-1], true
}

func (r *Recorder) record(s Sent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, s)
	return r.Err
}
