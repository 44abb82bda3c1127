package services

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/kode-keras/pkg/scene"
)

//go:embed scenepack/default.yaml
var defaultPack []byte

// ErrEmptyPack is returned when a scene pack holds no scenes.
var ErrEmptyPack = errors.New("scene pack has no scenes")

// PackLine is a dialogue line in a scene pack.
type PackLine struct {
	Character string `yaml:"character" json:"character"`
	Text      string `yaml:"text" json:"text"`
}

// PackChoice is a reply option in a scene pack.
type PackChoice struct {
	Text        string `yaml:"text" json:"text"`
	IsCorrect   bool   `yaml:"isCorrect" json:"isCorrect"`
	NextSceneID string `yaml:"nextSceneId,omitempty" json:"nextSceneId,omitempty"`
}

// PackScene is one hand-written scene.
type PackScene struct {
	ID          string       `yaml:"id" json:"id"`
	Title       string       `yaml:"title" json:"sceneTitle"`
	Situation   string       `yaml:"situation" json:"situation"`
	Dialogue    []PackLine   `yaml:"dialogue" json:"dialogue"`
	Choices     []PackChoice `yaml:"choices" json:"choices"`
	Explanation string       `yaml:"explanation" json:"explanation"`
}

// ScenePack is a YAML file of hand-written scenes.
type ScenePack struct {
	Name   string      `yaml:"name"`
	Scenes []PackScene `yaml:"scenes"`
}

// ParseScenePack decodes a YAML scene pack.
func ParseScenePack(data []byte) (*ScenePack, error) {
	var pack ScenePack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("failed to parse scene pack: %w", err)
	}
	if len(pack.Scenes) == 0 {
		return nil, ErrEmptyPack
	}
	return &pack, nil
}

// LoadScenePack reads a pack from path, or the built-in pack when path is empty.
func LoadScenePack(path string) (*ScenePack, error) {
	if path == "" {
		return ParseScenePack(defaultPack)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene pack %s: %w", path, err)
	}
	return ParseScenePack(data)
}

// FixtureGenerator serves scenes from a pack without calling a model.
// It follows nextSceneId links from the previous round when it can and
// otherwise rotates through the pack, skipping recently played titles.
type FixtureGenerator struct {
	pack *ScenePack
	byID map[string]int

	mu   sync.Mutex
	next int
}

// NewFixtureGenerator creates a generator over pack.
func NewFixtureGenerator(pack *ScenePack) *FixtureGenerator {
	g := &FixtureGenerator{
		pack: pack,
		byID: make(map[string]int, len(pack.Scenes)),
	}
	for i, s := range pack.Scenes {
		if s.ID != "" {
			g.byID[s.ID] = i
		}
	}
	return g
}

func (g *FixtureGenerator) GenerateScene(ctx context.Context, req scene.Request) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		observeScene("fixture", err)
		return nil, err
	}

	if len(g.pack.Scenes) == 0 {
		observeScene("fixture", ErrEmptyPack)
		return nil, ErrEmptyPack
	}

	ps := g.pick(req)
	data, err := json.Marshal(ps)
	if err != nil {
		err = fmt.Errorf("failed to marshal pack scene: %w", err)
	}
	observeScene("fixture", err)
	return data, err
}

func (g *FixtureGenerator) pick(req scene.Request) PackScene {
	if n := len(req.StepHistory); n > 0 {
		if i, ok := g.byID[req.StepHistory[n-1].NextSceneID]; ok {
			return g.pack.Scenes[i]
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	count := len(g.pack.Scenes)
	for range count {
		i := g.next % count
		g.next++
		if !recentlyPlayed(req.RecentTitles, g.pack.Scenes[i].Title) {
			return g.pack.Scenes[i]
		}
	}
	// Everything was played recently; repeat rather than fail.
	i := g.next % count
	g.next++
	return g.pack.Scenes[i]
}

func recentlyPlayed(titles []string, title string) bool {
	return slices.ContainsFunc(titles, func(t string) bool {
		return strings.EqualFold(strings.TrimSpace(t), title)
	})
}
