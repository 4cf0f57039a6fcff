package catalog

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/victornm/gamerank/internal/domain"
)

type file struct {
	Games []game `yaml:"games"`
}

type game struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Categories []string `yaml:"categories"`
	Difficulty int      `yaml:"difficulty"`
	Similar    []string `yaml:"similar"`
}

// Load reads a YAML catalog file. An empty path returns the built-in catalog.
func Load(path string) (*domain.Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode parses a YAML catalog, games keep their order in the document.
func Decode(r io.Reader) (*domain.Catalog, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}

	games := make([]domain.GameMetadata, 0, len(f.Games))
	for _, g := range f.Games {
		games = append(games, domain.GameMetadata{
			ID:         g.ID,
			Name:       g.Name,
			Categories: g.Categories,
			Difficulty: g.Difficulty,
			Adjacent:   g.Similar,
		})
	}

	return domain.NewCatalog(games...)
}

// Default returns the catalog the site ships with.
func Default() *domain.Catalog {
	c, err := domain.NewCatalog(
		domain.GameMetadata{ID: "snake", Name: "Snake", Categories: []string{"casual", "classic"}, Difficulty: 2, Adjacent: []string{"tetris", "pacman"}},
		domain.GameMetadata{ID: "2048", Name: "2048", Categories: []string{"puzzle", "numbers"}, Difficulty: 3, Adjacent: []string{"memory", "sudoku"}},
		domain.GameMetadata{ID: "memory", Name: "Memory Match", Categories: []string{"puzzle", "memory"}, Difficulty: 2, Adjacent: []string{"2048", "sudoku"}},
		domain.GameMetadata{ID: "tictactoe", Name: "Tic-Tac-Toe", Categories: []string{"strategy", "classic"}, Difficulty: 1, Adjacent: []string{"chess", "checkers"}},
		domain.GameMetadata{ID: "tetris", Name: "Tetris", Categories: []string{"puzzle", "classic"}, Difficulty: 3, Adjacent: []string{"snake", "pacman"}},
		domain.GameMetadata{ID: "minesweeper", Name: "Minesweeper", Categories: []string{"puzzle", "challenge"}, Difficulty: 4, Adjacent: []string{"sudoku", "2048"}},
		domain.GameMetadata{ID: "breakout", Name: "Breakout", Categories: []string{"casual", "action"}, Difficulty: 2, Adjacent: []string{"snake", "tetris"}},
		domain.GameMetadata{ID: "pacman", Name: "Pac-Man", Categories: []string{"action", "classic"}, Difficulty: 3, Adjacent: []string{"snake", "tetris"}},
		domain.GameMetadata{ID: "sudoku", Name: "Sudoku", Categories: []string{"puzzle", "numbers"}, Difficulty: 4, Adjacent: []string{"2048", "minesweeper"}},
		domain.GameMetadata{ID: "chess", Name: "Chess", Categories: []string{"strategy", "classic"}, Difficulty: 5, Adjacent: []string{"tictactoe", "checkers"}},
		domain.GameMetadata{ID: "checkers", Name: "Checkers", Categories: []string{"strategy", "classic"}, Difficulty: 3, Adjacent: []string{"chess", "tictactoe"}},
	)
	if err != nil {
		panic(err)
	}
	return c
}
