package prompt

import (
	"fmt"
	"strings"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
)

// NegativePrompt lists artefacts storyboard renders should avoid.
const NegativePrompt = "low quality, blurry, distorted, extra limbs, text, watermark, inconsistent character"

var styleDirections = map[string]string{
	"cartoon":    "bright cartoon illustration, bold clean outlines, friendly shapes",
	"watercolor": "soft watercolor illustration, gentle washes, paper texture",
	"cinematic":  "cinematic illustration, dramatic lighting, film still composition",
	"anime":      "anime illustration, cel shading, expressive eyes, vibrant colors",
	"storybook":  "classic storybook illustration, warm palette, detailed linework",
}

// StyleDirection returns the render direction for a style enum.
func StyleDirection(style string) string {
	if d, ok := styleDirections[strings.ToLower(strings.TrimSpace(style))]; ok {
		return d
	}
	return styleDirections[domain.DefaultStyle]
}

// ScenePrompt builds the budgeted text-to-image prompt for one scene.
func ScenePrompt(scene domain.Scene, character domain.Character, style string) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("%s, %s.", strings.TrimSuffix(strings.TrimSpace(scene.Camera), "."), StyleDirection(style)))

	who := character.Name
	if traits := character.TraitSummary(); traits != "" {
		who = fmt.Sprintf("%s (%s)", who, traits)
	}
	parts = append(parts, fmt.Sprintf("Main character: %s.", who))
	if desc := strings.TrimSpace(character.Description); desc != "" {
		parts = append(parts, desc)
	}
	if title := strings.TrimSpace(scene.Title); title != "" {
		parts = append(parts, fmt.Sprintf("Scene: %s.", title))
	}
	if desc := strings.TrimSpace(scene.Description); desc != "" {
		parts = append(parts, desc)
	}
	parts = append(parts, "Consistent character design, high quality, detailed.")
	return Budget(strings.Join(parts, " "))
}

// PortraitPrompt builds the budgeted prompt for a reference character sheet.
func PortraitPrompt(character domain.Character, style string) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Character reference portrait of %s, full body, neutral pose, plain background.", character.Name))
	if traits := character.TraitSummary(); traits != "" {
		parts = append(parts, "Traits: "+traits+".")
	}
	if desc := strings.TrimSpace(character.Description); desc != "" {
		parts = append(parts, desc)
	}
	parts = append(parts, StyleDirection(style)+", high quality, clean.")
	return Budget(strings.Join(parts, " "))
}

// AspectRatioSize maps an aspect ratio to the DashScope size token.
func AspectRatioSize(aspect string) string {
	switch strings.TrimSpace(aspect) {
	case "16:9":
		return "1664*928"
	case "4:3":
		return "1472*1104"
	case "3:4":
		return "1140*1472"
	case "9:16":
		return "928*1664"
	default:
		return "1328*1328"
	}
}
