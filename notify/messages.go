package notify

import (
	"fmt"
	"strings"
)

type message struct {
	Subject string
	Text    string
	HTML    string
}

func codeMessage(code, language string) message {
	if isSpanish(language) {
		return message{
			Subject: "Tu código de verificación",
			Text:    fmt.Sprintf("Tu código de verificación es %s", code),
			HTML:    fmt.Sprintf("<p>Tu código de verificación es <strong>%s</strong></p>", code),
		}
	}
	return message{
		Subject: "Your verification code",
		Text:    fmt.Sprintf("Your verification code is %s", code),
		HTML:    fmt.Sprintf("<p>Your verification code is <strong>%s</strong></p>", code),
	}
}

func linkMessage(code, link, language string) message {
	if isSpanish(language) {
		return message{
			Subject: "Tu enlace de acceso",
			Text:    fmt.Sprintf("Inicia sesión con este enlace: %s (código %s)", link, code),
			HTML:    fmt.Sprintf(`<p><a href="%s">Iniciar sesión</a></p><p>Código: %s</p>`, link, code),
		}
	}
	return message{
		Subject: "Your sign-in link",
		Text:    fmt.Sprintf("Sign in with this link: %s (code %s)", link, code),
		HTML:    fmt.Sprintf(`<p><a href="%s">Sign in</a></p><p>Code: %s</p>`, link, code),
	}
}

func resetMessage(link, language string) message {
	if isSpanish(language) {
		return message{
			Subject: "Restablece tu contraseña",
			Text:    fmt.Sprintf("Restablece tu contraseña aquí: %s", link),
			HTML:    fmt.Sprintf(`<p><a href="%s">Restablecer contraseña</a></p>`, link),
		}
	}
	return message{
		Subject: "Reset your password",
		Text:    fmt.Sprintf("Reset your password here: %s", link),
		HTML:    fmt.Sprintf(`<p><a href="%s">Reset password</a></p>`, link),
	}
}

func isSpanish(language string) bool {
	return strings.HasPrefix(strings.ToLower(language), "es")
}
