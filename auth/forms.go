package auth

import (
	"context"

	"github.com/jrsteele09/go-auth-engine/hooks"
	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
	"github.com/jrsteele09/go-auth-engine/loginsessions"
	"github.com/pkg/errors"
)

// FormNode returns the form node the login session is waiting on. Any other form or node
// is not found.
func (as *AuthorizationService) FormNode(ctx context.Context, ls *loginsessions.LoginSession, formID, nodeID string) (*hooks.Form, *hooks.Node, error) {
	if ls.State != loginsessions.StateAwaitingHook || ls.StateData.HookFormID != formID || ls.StateData.HookNodeID != nodeID {
		return nil, nil, notFound("This form is not part of the current login.", nil)
	}
	form, err := as.forms.Get(ctx, ls.TenantID, formID)
	if errors.Is(err, hooks.ErrFormNotFound) {
		return nil, nil, notFound("This form does not exist.", err)
	}
	if err != nil {
		return nil, nil, transient("[AuthorizationService.FormNode] Get", err)
	}
	node, err := form.Node(nodeID)
	if err != nil {
		return nil, nil, notFound("This form step does not exist.", err)
	}
	return form, node, nil
}

// SubmitFormNode stores the values of one form node. The last node marks the form completed
// on the user, clears the hook wait and completes the login.
func (as *AuthorizationService) SubmitFormNode(ctx context.Context, ls *loginsessions.LoginSession, formID, nodeID string, values map[string]string, req RequestInfo) Result {
	form, node, err := as.FormNode(ctx, ls, formID, nodeID)
	if err != nil {
		return Fail(err)
	}
	if missing, ok := node.Validate(values); !ok {
		return ContinueWithError(ScreenFormNode, apperrors.Validation(missing, "This field is required."))
	}

	user, err := as.repos.Users.Get(ctx, ls.TenantID, ls.StateData.HookUserID)
	if err != nil {
		return Fail(transient("[AuthorizationService.SubmitFormNode] Get", err))
	}
	if user.UserMetadata == nil {
		user.UserMetadata = make(map[string]string)
	}
	for _, field := range node.Fields {
		if v, ok := values[field.Name]; ok {
			user.UserMetadata[field.Name] = v
		}
	}

	next := form.NextNode(nodeID)
	if next == "" {
		hooks.MarkFormCompleted(user, formID, nil)
	}
	user.UpdatedAt = as.nowTime()
	if err := as.repos.Users.Update(ctx, user); err != nil {
		return Fail(transient("[AuthorizationService.SubmitFormNode] Update", err))
	}

	if next != "" {
		ls.StateData.HookNodeID = next
		if err := as.loginSessions.Save(ctx, ls); err != nil {
			return Fail(transient("[AuthorizationService.SubmitFormNode] Save", err))
		}
		return Redirect(FormNodePath(formID, next, ls.ID))
	}
	return as.CompleteHook(ctx, ls, req)
}

// CompleteHook clears the hook wait and completes the login with hooks skipped. The wait is
// only cleared once the user has completed the form; before that the browser is sent back to
// the pending form node. It is safe to call again: once the login has completed it reports
// not found and issues nothing.
func (as *AuthorizationService) CompleteHook(ctx context.Context, ls *loginsessions.LoginSession, req RequestInfo) Result {
	if ls.State == loginsessions.StateAwaitingHook {
		user, err := as.repos.Users.Get(ctx, ls.TenantID, ls.StateData.HookUserID)
		if err != nil {
			return Fail(transient("[AuthorizationService.CompleteHook] Get", err))
		}
		if !hooks.FormCompleted(user, ls.StateData.HookFormID) {
			return Redirect(FormNodePath(ls.StateData.HookFormID, ls.StateData.HookNodeID, ls.ID))
		}
	}
	if _, err := as.loginSessions.CompleteHook(ctx, ls); err != nil {
		return Fail(transient("[AuthorizationService.CompleteHook] CompleteHook", err))
	}
	if ls.State != loginsessions.StatePending || !ls.StateData.HookCompleted {
		return Fail(notFound("There is no pending login to complete.", nil))
	}
	user, err := as.repos.Users.Get(ctx, ls.TenantID, ls.StateData.HookUserID)
	if err != nil {
		return Fail(transient("[AuthorizationService.CompleteHook] Get", err))
	}
	return as.CompleteAuth(ctx, Completion{LoginSession: ls, User: user, SkipHooks: true, Request: req})
}
