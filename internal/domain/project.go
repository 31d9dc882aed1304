package domain

// Project is a server-persisted record of a past generation.
type Project struct {
	ID          ID          `json:"id"`
	Title       string      `json:"title"`
	WebsiteType WebsiteType `json:"website_type"`
	UserPrompt  string      `json:"user_prompt"`
	HTML        string      `json:"html"`
	CSS         string      `json:"css"`
	JavaScript  string      `json:"javascript,omitempty"`
	CreatedAt   Timestamp   `json:"created_at"`
	UpdatedAt   Timestamp   `json:"updated_at"`
}

// Website reprojects the project into the artifact shape used by the
// preview. It is a pure field copy.
func (p *Project) Website() *GeneratedWebsite {
	return &GeneratedWebsite{
		ID:          p.ID,
		Title:       p.Title,
		WebsiteType: p.WebsiteType,
		HTML:        p.HTML,
		CSS:         p.CSS,
		JavaScript:  p.JavaScript,
		CreatedAt:   p.CreatedAt,
	}
}
