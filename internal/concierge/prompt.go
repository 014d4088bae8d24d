package concierge

import (
	"fmt"
	"strings"

	"boraha-concierge/internal/domain"
)

// Catalog is the read-only reference data the system prompt is built from.
type Catalog interface {
	Property() domain.Property
	Rooms() []domain.Room
	GuestRooms() []domain.Room
	Offers() []domain.Offer
	Events() []domain.Event
}

// BuildSystemPrompt formats the catalog into the JOJO persona instructions.
func BuildSystemPrompt(c Catalog) string {
	p := c.Property()
	sections := []string{
		fmt.Sprintf("Tu es JOJO, le concierge virtuel de l'hôtel de prestige %q situé à %s.", p.Name, locationName(p.Location)),
		"Ton ton est mystérieux, raffiné et chaleureux.",
		"",
		"Voici les informations clés :",
		"- Nom : " + p.Name,
		"- Lieu : " + p.Location,
		"- Saison des baleines : " + p.WhaleSeason + " (C'est un spectacle unique au monde).",
		"- Sites emblématiques : " + strings.Join(p.Landmarks, ", ") + ".",
		"",
		"Nos Bungalows (Luxe) :",
		roomLines(c.Rooms()),
		"",
		"Nos Chambres (Confort) :",
		roomLines(c.GuestRooms()),
		"",
		"Nos Activités et Services :",
		offerLines(c.Offers()),
		"",
		"Nos Événements Spéciaux :",
		eventLines(c.Events()),
		"",
		personaRules(p),
	}
	return strings.Join(sections, "\n")
}

func locationName(location string) string {
	if i := strings.Index(location, "("); i > 0 {
		return strings.TrimSpace(location[:i])
	}
	return location
}

func roomLines(rooms []domain.Room) string {
	lines := make([]string, 0, len(rooms))
	for _, r := range rooms {
		lines = append(lines, fmt.Sprintf("- %s (%s): %s à partir de %d€", r.Name, r.Size, normalize(r.Description), r.Price))
	}
	return strings.Join(lines, "\n")
}

func offerLines(offers []domain.Offer) string {
	lines := make([]string, 0, len(offers))
	for _, o := range offers {
		lines = append(lines, fmt.Sprintf("- %s: %s", o.Title, normalize(o.Subtitle)))
	}
	return strings.Join(lines, "\n")
}

func eventLines(events []domain.Event) string {
	lines := make([]string, 0, len(events))
	for _, e := range events {
		lines = append(lines, fmt.Sprintf("- %s (%s): %s", e.Title, e.Date, normalize(e.Description)))
	}
	return strings.Join(lines, "\n")
}

func personaRules(p domain.Property) string {
	pirates := "des pirates"
	if len(p.PirateFigures) > 0 {
		pirates = "des pirates (" + strings.Join(p.PirateFigures, ", ") + ")"
	}
	return strings.Join([]string{
		"Ton rôle est d'aider les clients à organiser leur séjour. Parle avec passion des baleines à bosse qui viennent mettre bas dans nos eaux chaudes.",
		"Évoque l'histoire " + pirates + " avec une touche d'aventure.",
		"N'invente pas de prix. Utilise parfois des termes locaux ou marins.",
	}, "\n")
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
