package screens

import (
	"fmt"
	"strings"
)

const defaultLanguage = "en"

var catalogue = map[string]map[string]string{
	"en": {
		"login.title":               "Welcome",
		"login.description":         "Log in to continue.",
		"login.username":            "Email, phone number or username",
		"login.submit":              "Continue",
		"code.title":                "Verify your identity",
		"code.description":          "We've sent a code to %s. Enter it below.",
		"code.code":                 "Code",
		"code.submit":               "Continue",
		"password.title":            "Enter your password",
		"password.description":      "Log in as %s.",
		"password.password":         "Password",
		"password.submit":           "Continue",
		"password.forgot":           "Forgot password?",
		"reset.title":               "Change your password",
		"reset.description":         "Enter the code from the email and a new password.",
		"reset.code":                "Code",
		"reset.password":            "New password",
		"reset.submit":              "Reset password",
		"impersonate.title":         "Impersonate a user",
		"impersonate.description":   "You are logged in as %s.",
		"impersonate.user":          "User id, email or username",
		"impersonate.submit":        "Impersonate",
		"account.title":             "Your account",
		"account.description":       "Logged in as %s.",
		"account.change_email":      "Change email",
		"account.continue":          "Continue",
		"change_email.title":        "Change your email",
		"change_email.email":        "New email address",
		"change_email.submit":       "Save",
		"form.submit":               "Continue",
		"error.generic":             "Something went wrong, please try again later.",
		"error.title":               "Something went wrong",
		"error.session_expired":     "Your session has expired. Please start again.",
		"upstream.continue_with":    "Continue with %s",
		"account.email_unverified":  "not verified",
		"password.back_to_username": "Edit",
	},
	"es": {
		"login.title":               "Bienvenido",
		"login.description":         "Inicia sesión para continuar.",
		"login.username":            "Correo, teléfono o nombre de usuario",
		"login.submit":              "Continuar",
		"code.title":                "Verifica tu identidad",
		"code.description":          "Hemos enviado un código a %s. Introdúcelo abajo.",
		"code.code":                 "Código",
		"code.submit":               "Continuar",
		"password.title":            "Introduce tu contraseña",
		"password.description":      "Inicia sesión como %s.",
		"password.password":         "Contraseña",
		"password.submit":           "Continuar",
		"password.forgot":           "¿Olvidaste tu contraseña?",
		"reset.title":               "Cambia tu contraseña",
		"reset.description":         "Introduce el código del correo y una nueva contraseña.",
		"reset.code":                "Código",
		"reset.password":            "Nueva contraseña",
		"reset.submit":              "Restablecer contraseña",
		"impersonate.title":         "Suplantar a un usuario",
		"impersonate.description":   "Has iniciado sesión como %s.",
		"impersonate.user":          "Id, correo o nombre de usuario",
		"impersonate.submit":        "Suplantar",
		"account.title":             "Tu cuenta",
		"account.description":       "Sesión iniciada como %s.",
		"account.change_email":      "Cambiar correo",
		"account.continue":          "Continuar",
		"change_email.title":        "Cambia tu correo",
		"change_email.email":        "Nuevo correo electrónico",
		"change_email.submit":       "Guardar",
		"form.submit":               "Continuar",
		"error.generic":             "Algo salió mal, inténtalo de nuevo más tarde.",
		"error.title":               "Algo salió mal",
		"error.session_expired":     "Tu sesión ha caducado. Vuelve a empezar.",
		"upstream.continue_with":    "Continuar con %s",
		"account.email_unverified":  "sin verificar",
		"password.back_to_username": "Editar",
	},
}

// RenderContext selects the language and the tenant's text overrides for one render. It is
// passed explicitly to every screen; there is no process wide locale.
type RenderContext struct {
	Locale    string
	Overrides map[string]string
}

// NewRenderContext picks the first supported language of uiLocales, then fallback, then
// English. overrides is keyed by language, then by text key.
func NewRenderContext(uiLocales, fallback string, overrides map[string]map[string]string) RenderContext {
	lang := defaultLanguage
	for _, l := range append(strings.Fields(uiLocales), fallback) {
		if base := baseLanguage(l); catalogue[base] != nil {
			lang = base
			break
		}
	}
	return RenderContext{Locale: lang, Overrides: overrides[lang]}
}

func baseLanguage(locale string) string {
	base, _, _ := strings.Cut(strings.ToLower(locale), "-")
	base, _, _ = strings.Cut(base, "_")
	return base
}

// T returns the text for key: the tenant override, the language's text, the English text, or
// the key itself.
func (rc RenderContext) T(key string) string {
	if s, ok := rc.Overrides[key]; ok {
		return s
	}
	if s, ok := catalogue[rc.Locale][key]; ok {
		return s
	}
	if s, ok := catalogue[defaultLanguage][key]; ok {
		return s
	}
	return key
}

func (rc RenderContext) Tf(key string, args ...any) string {
	return fmt.Sprintf(rc.T(key), args...)
}
