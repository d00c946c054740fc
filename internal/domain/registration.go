package domain

import (
	"net/mail"
	"strings"
)

// SheetHeader is the column layout of the registration sheet.
var SheetHeader = []string{"Name", "Phone Number", "Gender", "Branch/Department", "Interests", "Score"}

// Registration is the form submitted after passing the quiz.
type Registration struct {
	Name      string `json:"name"`
	Number    string `json:"number"`
	Gender    string `json:"gender"`
	Branch    string `json:"branch"`
	Interests string `json:"interests"`
	Score     string `json:"score,omitempty"`
}

// Normalize trims whitespace from every field.
func (r Registration) Normalize() Registration {
	r.Name = strings.TrimSpace(r.Name)
	r.Number = strings.TrimSpace(r.Number)
	r.Gender = strings.TrimSpace(r.Gender)
	r.Branch = strings.TrimSpace(r.Branch)
	r.Interests = strings.TrimSpace(r.Interests)
	r.Score = strings.TrimSpace(r.Score)
	return r
}

// Validate requires all fields except score.
func (r Registration) Validate() error {
	if r.Name == "" || r.Number == "" || r.Gender == "" || r.Branch == "" || r.Interests == "" {
		return NewValidationError("All fields are required")
	}
	return nil
}

// Row renders the registration in SheetHeader order.
func (r Registration) Row() []string {
	return []string{r.Name, r.Number, r.Gender, r.Branch, r.Interests, r.Score}
}

// ContactMessage is the landing-page contact form.
type ContactMessage struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Validate requires all fields and a parseable email address.
func (c ContactMessage) Validate() error {
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Email) == "" || strings.TrimSpace(c.Message) == "" {
		return NewValidationError("Name, email, and message are required")
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return NewValidationError("Invalid email address")
	}
	return nil
}

// Row renders the contact message for the Contact sheet.
func (c ContactMessage) Row() []string {
	return []string{c.Name, c.Email, c.Message}
}
