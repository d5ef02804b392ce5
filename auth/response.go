package auth

import (
	"bytes"
	"html/template"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/jrsteele09/go-auth-engine/clients"
	"github.com/jrsteele09/go-auth-engine/oauthmodel"
)

var formPostTemplate = template.Must(template.New("form_post").Parse(`<!DOCTYPE html>
<html>
<head><title>Submit This Form</title></head>
<body onload="javascript:document.forms[0].submit()">
<form method="post" action="{{.Action}}">
{{- range .Fields}}
<input type="hidden" name="{{.Name}}" value="{{.Value}}"/>
{{- end}}
<noscript><button type="submit">Continue</button></noscript>
</form>
</body>
</html>
`))

var webMessageTemplate = template.Must(template.New("web_message").Parse(`<!DOCTYPE html>
<html>
<head><title>Authorization Response</title></head>
<body>
<script type="text/javascript">
(function(window) {
  var targetOrigin = {{.Origin}};
  var authorizationResponse = {type: "authorization_response", response: {{.Response}}};
  var mainWin = window.opener ? window.opener : window.parent;
  mainWin.postMessage(authorizationResponse, targetOrigin);
})(this);
</script>
</body>
</html>
`))

type formField struct {
	Name  string
	Value string
}

// deliver returns values to the client's redirect URI using the request's response mode.
func (as *AuthorizationService) deliver(params oauthmodel.AuthorizationParameters, values url.Values, cookies ...*http.Cookie) Result {
	switch params.EffectiveResponseMode() {
	case oauthmodel.FormPostResponseMode:
		doc, err := renderFormPost(params.RedirectURI, values)
		if err != nil {
			return Fail(transient("[AuthorizationService.deliver] form_post", err))
		}
		return Document(doc, cookies...)
	case oauthmodel.WebMessageResponseMode:
		doc, err := renderWebMessage(clients.OriginOf(params.RedirectURI), values)
		if err != nil {
			return Fail(transient("[AuthorizationService.deliver] web_message", err))
		}
		return Document(doc, cookies...)
	case oauthmodel.FragmentResponseMode:
		base, _, _ := strings.Cut(params.RedirectURI, "#")
		return Redirect(base+"#"+values.Encode(), cookies...)
	default:
		u, err := url.Parse(params.RedirectURI)
		if err != nil {
			return Fail(invalidRequest("redirect_uri is not a valid URL", err))
		}
		q := u.Query()
		for k, vs := range values {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		return Redirect(u.String(), cookies...)
	}
}

// errorResponse delivers err to the client as an OAuth error through the response mode.
func (as *AuthorizationService) errorResponse(params oauthmodel.AuthorizationParameters, err error, cookies ...*http.Cookie) Result {
	values := url.Values{}
	values.Set("error", errorCode(err))
	values.Set("error_description", errorDescription(err))
	if params.State != "" {
		values.Set("state", params.State)
	}
	res := as.deliver(params, values, cookies...)
	if res.Err == nil {
		res.Err = err
	}
	return res
}

func renderFormPost(action string, values url.Values) (string, error) {
	var buf bytes.Buffer
	err := formPostTemplate.Execute(&buf, struct {
		Action string
		Fields []formField
	}{Action: action, Fields: sortedFields(values)})
	return buf.String(), err
}

func renderWebMessage(origin string, values url.Values) (string, error) {
	response := make(map[string]string, len(values))
	for k := range values {
		response[k] = values.Get(k)
	}
	var buf bytes.Buffer
	err := webMessageTemplate.Execute(&buf, struct {
		Origin   string
		Response map[string]string
	}{Origin: origin, Response: response})
	return buf.String(), err
}

func sortedFields(values url.Values) []formField {
	fields := make([]formField, 0, len(values))
	for k := range values {
		fields = append(fields, formField{Name: k, Value: values.Get(k)})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return fields
}
