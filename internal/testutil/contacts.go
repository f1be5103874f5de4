package testutil

import "abook/internal/model"

// NewContact returns an unsaved contact with a display name and, optionally,
// email addresses.
func NewContact(name string, emails ...string) *model.Contact {
	c := &model.Contact{DisplayName: name}
	for _, e := range emails {
		c.Emails = append(c.Emails, model.Email{Value: e})
	}
	return c
}

// FullContact returns an unsaved contact with most fields populated.
func FullContact() *model.Contact {
	return &model.Contact{
		DisplayName: "Jane Q. Smith",
		Name:        model.StructuredName{Given: "Jane", Middle: "Q.", Family: "Smith"},
		Emails: []model.Email{
			{Value: "jane@example.com", Type: "work", Primary: true},
			{Value: "jane.smith@home.example"},
		},
		Phones:       []model.Phone{{Value: "(555) 123-4567", Type: "cell"}},
		Addresses:    []model.Address{{Street: "1 Main St", City: "Springfield", Country: "USA", Type: "home"}},
		Organization: &model.Organization{Name: "Acme, Inc.", Title: "Engineer"},
		Birthday:     "1985-07-14",
		URLs:         []string{"https://example.com/jane"},
		Note:         "Met at the conference;\nlikes tea",
		Categories:   []string{"work", "friends"},
	}
}
