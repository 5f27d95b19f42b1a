package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
)

type characterView struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Traits       []string `json:"traits"`
	ImageURL     string   `json:"imageUrl,omitempty"`
	ThumbnailURL string   `json:"thumbnailUrl,omitempty"`
	IsDemo       bool     `json:"isDemo"`
}

func viewCharacter(c domain.Character) characterView {
	traits := c.Traits
	if traits == nil {
		traits = []string{}
	}
	return characterView{
		ID:           c.ID,
		Name:         c.Name,
		Description:  c.Description,
		Traits:       traits,
		ImageURL:     c.ImageURL,
		ThumbnailURL: c.ThumbnailURL,
		IsDemo:       c.IsDemo,
	}
}

// ListCharacters returns the demo catalogue.
func (a *App) ListCharacters(w http.ResponseWriter, r *http.Request) {
	list := a.Characters.List()
	items := make([]characterView, 0, len(list))
	for _, c := range list {
		items = append(items, viewCharacter(c))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// GetCharacter resolves one id the same way a job would, substitution
// included.
func (a *App) GetCharacter(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	res, err := a.Characters.Resolve(r.Context(), id)
	if err != nil {
		a.error(w, http.StatusUnprocessableEntity, string(domain.KindOf(err)), err.Error())
		return
	}
	body := map[string]any{
		"character":   viewCharacter(res.Character),
		"source":      res.Source,
		"substituted": res.Substituted,
	}
	if res.Warning != nil {
		body["warning"] = res.Warning
	}
	a.json(w, http.StatusOK, body)
}
