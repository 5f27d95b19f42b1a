package voice

import (
	"strings"
	"unicode"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/domain"
)

// Emotions recognized by the classifier.
const (
	EmotionHappy    = "happy"
	EmotionSad      = "sad"
	EmotionExcited  = "excited"
	EmotionDramatic = "dramatic"
	EmotionCalm     = "calm"
	EmotionNeutral  = "neutral"
)

var emotionKeywords = []struct {
	emotion  string
	keywords []string
}{
	{EmotionHappy, []string{"happy", "joy", "joyful", "smile", "smiles", "laugh", "laughs", "cheerful", "delight", "celebrate", "fun", "friends", "glowing"}},
	{EmotionSad, []string{"sad", "cry", "cries", "tears", "lonely", "lost", "sorrow", "miss", "goodbye", "gloomy"}},
	{EmotionExcited, []string{"excited", "amazing", "wow", "race", "races", "discover", "discovers", "adventure", "thrilling", "surprise", "leap", "soar"}},
	{EmotionDramatic, []string{"danger", "storm", "battle", "dark", "shadow", "shadowy", "challenge", "confronts", "disaster", "fear", "suddenly", "powerful", "obstacle"}},
	{EmotionCalm, []string{"calm", "peaceful", "quiet", "gentle", "rest", "sleep", "soft", "harmony", "serene", "still"}},
}

// Classify scores a scene's title and description against each emotion's
// keywords. The top count wins; no hits or a tie at the top yields neutral.
func Classify(scene domain.Scene) string {
	words := strings.FieldsFunc(strings.ToLower(scene.Title+" "+scene.Description), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	counts := make(map[string]int, len(emotionKeywords))
	for _, w := range words {
		for _, group := range emotionKeywords {
			for _, kw := range group.keywords {
				if w == kw {
					counts[group.emotion]++
				}
			}
		}
	}
	best, top, tied := EmotionNeutral, 0, false
	for _, group := range emotionKeywords {
		n := counts[group.emotion]
		switch {
		case n > top:
			best, top, tied = group.emotion, n, false
		case n == top && n > 0:
			tied = true
		}
	}
	if top == 0 || tied {
		return EmotionNeutral
	}
	return best
}
