package labels

import (
	"fmt"
	"sort"
	"strings"
)

// Profile bundles everything that differs between predictor deployments.
type Profile struct {
	Name        string
	Collection  string
	Vocabulary  Vocabulary
	Legend      Legend
	DefaultPort string
}

const (
	ProfileTeam    = "team"
	ProfileEmotion = "emotion"
)

func TeamProfile() Profile {
	palette, err := NewPalette(
		"#FF0000", "#00FF00", "#0000FF", "#FFFF00", "#FF00FF",
		"#00FFFF", "#FFA500", "#800080", "#008000", "#000080",
		"#FF1493", "#00CED1", "#FFD700", "#FF4500", "#32CD32",
		"#8B4513", "#4169E1", "#DC143C", "#00FA9A", "#FF6347",
	)
	if err != nil {
		panic(err)
	}

	return Profile{
		Name:       ProfileTeam,
		Collection: "teams",
		// order matches the training data.yaml
		Vocabulary: MustVocabulary(
			"arsenal", "aston-villa-new", "bournemouth", "brentford", "brighton",
			"burnley", "chelsea", "crystal-palace", "everton", "fulham",
			"liverpool", "luton", "mancity", "manutd", "newcastle",
			"nottingham", "sheffield", "tottenham", "westham", "wolves",
		),
		Legend:      palette,
		DefaultPort: "5001",
	}
}

func EmotionProfile() Profile {
	mapping, err := NewMapping(map[string]string{
		"anger":   "#FF0000",
		"fear":    "#800080",
		"happy":   "#00FF00",
		"neutral": "#0000FF",
		"sad":     "#FFA500",
	}, "#FFFFFF")
	if err != nil {
		panic(err)
	}

	return Profile{
		Name:        ProfileEmotion,
		Collection:  "emotions",
		Vocabulary:  MustVocabulary("anger", "fear", "happy", "neutral", "sad"),
		Legend:      mapping,
		DefaultPort: "5000",
	}
}

var profiles = map[string]func() Profile{
	ProfileTeam:    TeamProfile,
	ProfileEmotion: EmotionProfile,
}

func ProfileByName(name string) (Profile, error) {
	build, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q (available: %s)", ErrUnknownProfile, name, strings.Join(ProfileNames(), ", "))
	}
	return build(), nil
}

func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
