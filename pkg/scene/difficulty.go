package scene

import (
	"errors"
	"fmt"
	"strings"
)

// Difficulty selects how many rounds make up one conversation.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ErrInvalidDifficulty is returned for any tier outside easy, medium and hard.
var ErrInvalidDifficulty = errors.New("invalid difficulty")

// Tier describes a difficulty setting.
type Tier struct {
	Difficulty  Difficulty `json:"difficulty"`
	MaxSteps    int        `json:"maxSteps"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
}

var tiers = map[Difficulty]Tier{
	DifficultyEasy: {
		Difficulty:  DifficultyEasy,
		MaxSteps:    1,
		Name:        "easy",
		Description: "Satu pilihan jawaban per percakapan",
	},
	DifficultyMedium: {
		Difficulty:  DifficultyMedium,
		MaxSteps:    3,
		Name:        "medium",
		Description: "Tiga pilihan jawaban berturut-turut dalam satu percakapan",
	},
	DifficultyHard: {
		Difficulty:  DifficultyHard,
		MaxSteps:    5,
		Name:        "hard",
		Description: "Lima pilihan jawaban berturut-turut dalam satu percakapan",
	},
}

// Tiers returns all tiers from easiest to hardest.
func Tiers() []Tier {
	return []Tier{tiers[DifficultyEasy], tiers[DifficultyMedium], tiers[DifficultyHard]}
}

// ParseDifficulty accepts tier names case-insensitively.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := tiers[d]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidDifficulty, s)
	}
	return d, nil
}

// TierFor returns the tier configuration for d.
func TierFor(d Difficulty) (Tier, error) {
	t, ok := tiers[d]
	if !ok {
		return Tier{}, fmt.Errorf("%w: %q", ErrInvalidDifficulty, string(d))
	}
	return t, nil
}

// Valid reports whether d is a known tier.
func (d Difficulty) Valid() bool {
	_, ok := tiers[d]
	return ok
}

// MaxSteps returns the number of rounds for d, or 0 for an unknown tier.
func (d Difficulty) MaxSteps() int {
	return tiers[d].MaxSteps
}
