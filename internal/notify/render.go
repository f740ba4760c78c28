package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// Rendered is a ready-to-send email.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

type emailView struct {
	Recipient string
	Title     string
	Agency    string
	Deadline  string
	Price     string
	URL       string
	Summary   string
	Keywords  []string
}

// Renderer turns a Match into an email.
type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() *Renderer {
	return &Renderer{tmpl: template.Must(template.New("email").Parse(emailHTMLTemplate))}
}

func (r *Renderer) Render(m Match) (*Rendered, error) {
	view := newEmailView(m)

	var html bytes.Buffer
	if err := r.tmpl.Execute(&html, view); err != nil {
		return nil, fmt.Errorf("render email template: %w", err)
	}

	return &Rendered{
		Subject: fmt.Sprintf("[입찰 알림] %s", view.Title),
		Text:    renderPlainText(view),
		HTML:    html.String(),
	}, nil
}

func newEmailView(m Match) emailView {
	a := m.Announcement
	agency := a.Agency
	if agency == "" {
		agency = undecided
	}
	return emailView{
		Recipient: recipientName(m.Subscriber),
		Title:     a.Title,
		Agency:    agency,
		Deadline:  formatDeadline(a.Deadline),
		Price:     formatPrice(a.Price),
		URL:       a.URL,
		Summary:   a.AISummary,
		Keywords:  m.Keywords,
	}
}

func renderPlainText(v emailView) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s님, 새로운 입찰 공고가 등록되었습니다.\n\n", v.Recipient)
	sb.WriteString(v.Title + "\n")
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")
	fmt.Fprintf(&sb, "발주처: %s\n", v.Agency)
	fmt.Fprintf(&sb, "마감일: %s\n", v.Deadline)
	fmt.Fprintf(&sb, "추정가: %s\n", v.Price)
	if len(v.Keywords) > 0 {
		fmt.Fprintf(&sb, "키워드: %s\n", strings.Join(v.Keywords, ", "))
	}
	fmt.Fprintf(&sb, "공고 보기: %s\n", v.URL)

	if v.Summary != "" {
		sb.WriteString("\nAI 요약\n")
		sb.WriteString(strings.Repeat("-", 20) + "\n")
		sb.WriteString(v.Summary + "\n")
	}
	return sb.String()
}
