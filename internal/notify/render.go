package notify

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	id "entrygate/pkg/domain"
)

// Template names a message layout.
type Template string

const (
	TemplateConfirmation Template = "confirmation"
	TemplateReminder     Template = "reminder"
	TemplateDraw         Template = "draw"
)

// Image paths under the landing page that the message layout references.
const (
	heroImagePath   = "/email/countdown-hero.png"
	footerImagePath = "/email/footer.png"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

type copyText struct {
	Subject    string
	Hero       string
	Subheading string
	Body       string
}

var copyCatalogue = map[Template]map[id.Locale]copyText{
	TemplateConfirmation: {
		id.LocaleEN: {
			Subject:    "Entry Confirmation",
			Hero:       "THANK YOU",
			Subheading: "Your entry is in",
			Body:       "Thanks! Your contest entry has been received.",
		},
		id.LocaleFR: {
			Subject:    "Confirmation de participation",
			Hero:       "MERCI",
			Subheading: "Votre participation est enregistrée",
			Body:       "Merci! Votre participation au concours a bien été reçue.",
		},
	},
	TemplateReminder: {
		id.LocaleEN: {
			Subject:    "Countdown to Kickoff!",
			Hero:       "REMINDER",
			Subheading: "The draw is coming up",
			Body:       "The countdown is on!",
		},
		id.LocaleFR: {
			Subject:    "Rappel du tirage",
			Hero:       "RAPPEL",
			Subheading: "Le tirage approche",
			Body:       "Petit rappel : le tirage approche. Bonne chance!",
		},
	},
	TemplateDraw: {
		id.LocaleEN: {
			Subject:    "Draw Day",
			Hero:       "TODAY",
			Subheading: "It's draw day",
			Body:       "It's draw day! Good luck!",
		},
		id.LocaleFR: {
			Subject:    "Jour du tirage",
			Hero:       "AUJOURD'HUI",
			Subheading: "C'est le jour du tirage",
			Body:       "C'est le jour du tirage! Bonne chance!",
		},
	},
}

var greetings = map[id.Locale]string{
	id.LocaleEN: "Hi",
	id.LocaleFR: "Bonjour",
}

// Rendered is a message ready for a Mailer.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

type layoutData struct {
	copyText
	Locale      id.Locale
	Greeting    string
	HeroImage   string
	FooterImage string
}

// Renderer fills the embedded layouts with localized copy.
type Renderer struct {
	html        *htmltemplate.Template
	text        *texttemplate.Template
	landingPage string
}

func NewRenderer(landingPageURL string) (*Renderer, error) {
	html, err := htmltemplate.ParseFS(templateFS, "templates/message.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse html layout: %w", err)
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/message.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse text layout: %w", err)
	}
	return &Renderer{html: html, text: text, landingPage: strings.TrimRight(landingPageURL, "/")}, nil
}

// Render produces the message for tmpl in locale. Unknown locales fall back to English.
func (r *Renderer) Render(tmpl Template, locale id.Locale, firstName string) (Rendered, error) {
	byLocale, ok := copyCatalogue[tmpl]
	if !ok {
		return Rendered{}, fmt.Errorf("unknown template %q", tmpl)
	}
	c, ok := byLocale[locale]
	if !ok {
		locale = id.LocaleEN
		c = byLocale[locale]
	}

	data := layoutData{
		copyText: c,
		Locale:   locale,
		Greeting: greeting(locale, firstName),
	}
	if r.landingPage != "" {
		data.HeroImage = r.landingPage + heroImagePath
		data.FooterImage = r.landingPage + footerImagePath
	}

	var html, text bytes.Buffer
	if err := r.html.Execute(&html, data); err != nil {
		return Rendered{}, fmt.Errorf("render html: %w", err)
	}
	if err := r.text.Execute(&text, data); err != nil {
		return Rendered{}, fmt.Errorf("render text: %w", err)
	}
	return Rendered{Subject: c.Subject, HTML: html.String(), Text: text.String()}, nil
}

func greeting(locale id.Locale, firstName string) string {
	hello := greetings[locale]
	if firstName = strings.TrimSpace(firstName); firstName == "" {
		return hello + ","
	}
	return hello + " " + firstName + ","
}
