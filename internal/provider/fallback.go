package provider

import (
	"strings"

	"chatgate/internal/catalog"
)

// FallbackModel is the model name reported for fallback answers.
const FallbackModel = "fallback-knowledge-base"

// Responder is the deterministic fallback: it pattern-matches the message
// against a small fixed set of topics and returns a canned, templated
// answer built from the services catalog. It has no side effects and
// never fails, which is what lets the orchestrator promise an answer for
// every request.
type Responder struct {
	catalog catalog.Reader
}

func NewResponder(cat catalog.Reader) *Responder {
	return &Responder{catalog: cat}
}

// Respond produces the fallback answer for a message.
func (r *Responder) Respond(message string) *Result {
	msg := strings.ToLower(strings.TrimSpace(message))

	var answer string
	switch {
	case containsAny(msg, "ai training", "training program", "learn ai", "ai learning", "training"):
		answer = r.trainingAnswer()
	case containsAny(msg, "service", "what do you offer", "what can you do", "what you offer"):
		answer = r.servicesAnswer()
	case containsAny(msg, "contact", "reach", "email", "phone", "support"):
		answer = contactAnswer
	case containsAny(msg, "price", "cost", "quote", "pricing"):
		answer = pricingAnswer
	case containsAny(msg, "about", "company", "who are you"):
		answer = aboutAnswer
	default:
		answer = defaultAnswer
	}

	return &Result{
		Message: answer,
		Model:   FallbackModel,
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func (r *Responder) servicesList() string {
	services := r.catalog.Services()
	if len(services) == 0 {
		return "- **IT Project Management**\n- **Cloud & Infrastructure Solutions**\n- **AI Solutions & Integration**\n- **AI Learning & Training Programs**"
	}
	lines := make([]string, 0, len(services))
	for _, svc := range services {
		line := "- **" + svc.Name + "**"
		if svc.Icon != "" {
			line += " " + svc.Icon
		}
		if svc.Description != "" {
			line += ": " + svc.Description
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (r *Responder) trainingAnswer() string {
	return `Excellent question! Our AI Learning & Training Programs are in high demand. We offer AI fundamentals for business professionals, advanced AI development and integration, executive strategy sessions, prompt engineering workshops and custom corporate programs.

Ready to transform your business with AI? <a href="/pages/contact.html">Request a consultation</a> or email us at contact@paxiit.com.`
}

func (r *Responder) servicesAnswer() string {
	return `Great question! We help businesses achieve clear, real-world results through smart IT management. Here's what we offer:

` + r.servicesList() + `

Interested in learning more? Explore our <a href="/pages/services.html">services page</a> or <a href="/pages/contact.html">request a consultation</a>.`
}

const contactAnswer = `We'd love to connect with you! Here are the best ways to reach us:

- Email: contact@paxiit.com
- Phone: +33 7 82 39 13 11
- <a href="/pages/contact.html">Contact form</a> for the fastest response

Our team is ready to help you succeed. What would you like to discuss?`

const pricingAnswer = `Every engagement is scoped to your needs, so pricing depends on the services and duration involved. The fastest way to get a quote is our <a href="/pages/contact.html">contact form</a> or an email to contact@paxiit.com - we'll come back to you with a tailored proposal.`

const aboutAnswer = `We're Paxi iTechnologies! We specialize in Smart IT Management with clear, real-world results. Our proven track record includes large-scale projects like the Paris 2024 Olympic Games.

Want to learn more? Check out our <a href="/pages/about.html">About Us page</a> or <a href="/pages/services.html">Services page</a>.`

const defaultAnswer = `Hello! I'm here to help you learn about Paxi iTechnologies and our services. We specialize in Smart IT Management with clear, real-world results.

You can ask about our AI training programs, our services, or how to get in touch. You can also explore our <a href="/pages/services.html">services page</a> or <a href="/pages/contact.html">contact us</a> directly.`
