package tui

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/trailhead/internal/draft"
)

type galleryView struct {
	app      *App
	selected int
	adding   bool
	input    textinput.Model
}

func newGalleryView(app *App) *galleryView {
	return &galleryView{app: app, input: newInput("https://…/photo.jpg", 1024)}
}

func (g *galleryView) load() tea.Cmd {
	g.selected = 0
	g.stopAdding()
	return nil
}

func (g *galleryView) capturing() bool { return g.adding }

func (g *galleryView) stopAdding() {
	g.adding = false
	g.input.SetValue("")
	g.input.Blur()
}

func (g *galleryView) update(msg tea.KeyMsg) tea.Cmd {
	if g.adding {
		switch msg.String() {
		case "esc":
			g.stopAdding()
			return nil
		case "enter":
			g.addImage(g.input.Value())
			return nil
		}
		var cmd tea.Cmd
		g.input, cmd = g.input.Update(msg)
		return cmd
	}
	current := g.app.composer.Store().Get()
	images := current.GalleryImages
	switch msg.String() {
	case "a", "n":
		g.adding = true
		g.input.Focus()
	case "up", "k":
		g.selected = clampIndex(g.selected-1, len(images))
	case "down", "j":
		g.selected = clampIndex(g.selected+1, len(images))
	case "x", "delete":
		if len(images) > 0 {
			g.removeImage(current, clampIndex(g.selected, len(images)))
		}
	case "c", "enter":
		if len(images) > 0 {
			idx := clampIndex(g.selected, len(images))
			if err := g.app.composer.Store().SetGallery(images, draft.IntPtr(idx)); err != nil {
				g.app.setStatus("Cover not set: %v", err)
				return nil
			}
			g.app.setStatus("Image %d is now the cover", idx+1)
		}
	}
	return nil
}

// addImage appends an absolute http(s) URL. The first image becomes the
// cover when none is set.
func (g *galleryView) addImage(raw string) {
	link := strings.TrimSpace(raw)
	parsed, err := url.Parse(link)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		g.app.statusMsg = "Enter an absolute http(s) image URL"
		return
	}
	current := g.app.composer.Store().Get()
	for _, existing := range current.GalleryImages {
		if existing == link {
			g.app.statusMsg = "That image is already in the gallery"
			return
		}
	}
	images := append(current.GalleryImages, link)
	cover := current.CoverImageIndex
	if cover == nil {
		cover = draft.IntPtr(0)
	}
	if err := g.app.composer.Store().SetGallery(images, cover); err != nil {
		g.app.setStatus("Image not added: %v", err)
		return
	}
	g.selected = len(images) - 1
	g.app.setStatus("Image %d added", len(images))
	g.stopAdding()
}

// removeImage drops image idx and keeps the cover on the same picture when it
// survives, otherwise on the first remaining image.
func (g *galleryView) removeImage(current draft.TripDraft, idx int) {
	images := append([]string(nil), current.GalleryImages[:idx]...)
	images = append(images, current.GalleryImages[idx+1:]...)
	var cover *int
	if len(images) > 0 {
		next := 0
		if c := current.CoverImageIndex; c != nil && *c != idx {
			next = *c
			if *c > idx {
				next--
			}
		}
		cover = draft.IntPtr(next)
	} else {
		images = nil
	}
	if err := g.app.composer.Store().SetGallery(images, cover); err != nil {
		g.app.setStatus("Image not removed: %v", err)
		return
	}
	g.selected = clampIndex(idx, len(images))
	g.app.setStatus("Image %d removed", idx+1)
}

func (g *galleryView) view(int) string {
	current := g.app.composer.Store().Get()
	lines := []string{titleStyle.Render(fmt.Sprintf("Gallery (%d images)", len(current.GalleryImages)))}
	if len(current.GalleryImages) == 0 {
		lines = append(lines, mutedStyle.Render("  no images yet: press a to add a URL"))
	}
	for i, img := range current.GalleryImages {
		line := fmt.Sprintf("%s %d. %s", cursorMark(i == g.selected), i+1, img)
		if c := current.CoverImageIndex; c != nil && *c == i {
			line += " " + readyStyle.Render("★ cover")
		}
		lines = append(lines, line)
	}
	if g.adding {
		lines = append(lines, "", titleStyle.Render("Image URL"), g.input.View())
	}
	return strings.Join(lines, "\n")
}

func (g *galleryView) hints() string {
	if g.adding {
		return "Enter → add    Esc → cancel"
	}
	return "a add    ↑/↓ select    x remove    c/Enter set cover"
}
