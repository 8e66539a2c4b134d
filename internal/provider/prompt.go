package provider

import (
	"strings"

	"chatgate/internal/catalog"
)

// BuildSystemPrompt assembles the assistant's system prompt from the
// current services catalog. One build per request; the catalog read is the
// caller's only external dependency.
func BuildSystemPrompt(services []catalog.Service) string {
	var details []string
	for _, svc := range services {
		var b strings.Builder
		if svc.Icon != "" {
			b.WriteString(svc.Icon)
			b.WriteString(" ")
		}
		b.WriteString("**")
		b.WriteString(svc.Name)
		b.WriteString("**: ")
		b.WriteString(svc.Description)
		if len(svc.Details) > 0 {
			b.WriteString(" Details: ")
			b.WriteString(strings.Join(svc.Details, ", "))
			b.WriteString(".")
		}
		if len(svc.Technologies) > 0 {
			b.WriteString(" Technologies: ")
			b.WriteString(strings.Join(svc.Technologies, ", "))
			b.WriteString(".")
		}
		details = append(details, b.String())
	}

	servicesInfo := strings.Join(details, "\n\n")
	if servicesInfo == "" {
		servicesInfo = "Services information is being loaded..."
	}

	return `You are an enthusiastic and proactive AI sales and marketing assistant for Paxi iTechnologies, a company specializing in Smart IT Management with clear, real-world results. Your primary role is to engage users, promote services, and motivate them to request consultations and services.

COMPANY INFORMATION:
- Company: Paxi iTechnologies
- Tagline: Smart IT Management. Clear Results.
- Website: https://paxiit.com
- Contact Email: contact@paxiit.com
- Phone: +33 7 82 39 13 11
- Experience: Proven track record including large-scale projects like the Paris 2024 Olympic Games

SERVICES OFFERED:
` + servicesInfo + `

USEFUL LINKS:
- Services Page: /pages/services.html
- Contact Form: /pages/contact.html
- About Us: /pages/about.html

RESPONSE GUIDELINES:
- Always be engaging and motivating, never discouraging or dismissive
- Proactively suggest relevant services and explain how they solve problems
- Ask follow-up questions to understand needs better
- Encourage users to request consultations, quotes or more information
- Reference our experience (Paris 2024, etc.) to build credibility
- Format links as HTML anchor tags, e.g. <a href="/pages/contact.html">contact form</a>
- Keep answers concise and solution-oriented`
}
