package concierge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"boraha-concierge/internal/domain"
)

type stubCatalog struct {
	property domain.Property
	rooms    []domain.Room
	guest    []domain.Room
	offers   []domain.Offer
	events   []domain.Event
}

func (s stubCatalog) Property() domain.Property { return s.property }
func (s stubCatalog) Rooms() []domain.Room { return s.rooms }
func (s stubCatalog) GuestRooms() []domain.Room { return s.guest }
func (s stubCatalog) Offers() []domain.Offer { return s.offers }
func (s stubCatalog) Events() []domain.Event { return s.events }

func TestBuildSystemPrompt_DefaultCatalog(t *testing.T) {
	prompt := BuildSystemPrompt(testCatalog(t))

	require.True(t, strings.HasPrefix(prompt, `Tu es JOJO, le concierge virtuel de l'hôtel de prestige "Le Boraha Sanctuary" situé à Île Sainte-Marie, Madagascar.`))
	require.Contains(t, prompt, "- Saison des baleines : De Juillet à Septembre")
	require.Contains(t, prompt, "le Cimetière des Pirates")
	require.Contains(t, prompt, "- Bungalow des Baleines (110m²): Une vue imprenable")
	require.Contains(t, prompt, "à partir de 920€")
	require.Contains(t, prompt, "- Chambre Tropicale (35m²):")
	require.Contains(t, prompt, "- Tour de l'île: Le tour de l’île")
	require.Contains(t, prompt, "- Réveillon Pirate (31 Décembre):")
	require.Contains(t, prompt, "La Buse, Thomas Tew")
	require.Contains(t, prompt, "N'invente pas de prix.")
}

func TestBuildSystemPrompt_SectionOrder(t *testing.T) {
	prompt := BuildSystemPrompt(stubCatalog{
		property: domain.Property{Name: "Lodge", Location: "Nosy Be", WhaleSeason: "Août"},
		rooms:    []domain.Room{{Name: "R1", Size: "10m²", Description: "  deux   espaces ", Price: 100}},
		guest:    []domain.Room{{Name: "G1", Size: "5m²", Description: "petit", Price: 50}},
		offers:   []domain.Offer{{Title: "O1", Subtitle: "plongée"}},
		events:   []domain.Event{{Title: "E1", Date: "1 Mai", Description: "fête"}},
	})

	order := []string{
		"Nos Bungalows (Luxe) :",
		"- R1 (10m²): deux espaces à partir de 100€",
		"Nos Chambres (Confort) :",
		"- G1 (5m²): petit à partir de 50€",
		"Nos Activités et Services :",
		"- O1: plongée",
		"Nos Événements Spéciaux :",
		"- E1 (1 Mai): fête",
		"Évoque l'histoire des pirates avec",
	}
	last := -1
	for _, want := range order {
		idx := strings.Index(prompt, want)
		require.Greater(t, idx, last, "expected %q after previous section", want)
		last = idx
	}
	require.Contains(t, prompt, "situé à Nosy Be.")
}
