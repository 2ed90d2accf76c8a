// internal/browser/persona.go
package browser

// Persona describes the browser identity presented to the target page.
type Persona struct {
	UserAgent      string
	Platform       string
	AcceptLanguage string
	ViewportWidth  int
	ViewportHeight int
}

// DefaultPersona returns a desktop Chrome identity with a full HD viewport.
func DefaultPersona() Persona {
	return Persona{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Platform:       "Win32",
		AcceptLanguage: "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
	}
}
