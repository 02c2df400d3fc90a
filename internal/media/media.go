// Package media хранит файлы изображений задач и решений на диске.
package media

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"

	// Регистрация декодеров для проверки изображений.
	_ "image/jpeg"
	_ "image/png"
)

// Store файловое хранилище изображений.
type Store struct {
	dir string
}

// NewStore создает хранилище в каталоге dir вместе с подкаталогами
// для условий и решений.
func NewStore(dir string) (*Store, error) {
	const op = "media.NewStore"
	for _, sub := range []string{"tasks", "solutions"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return &Store{dir: dir}, nil
}

// SaveTaskImage сохраняет фото условия задачи и возвращает путь к файлу.
func (s *Store) SaveTaskImage(taskID string, data []byte) (string, error) {
	const op = "media.SaveTaskImage"
	path := filepath.Join(s.dir, "tasks", taskID+".jpg")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return path, nil
}

// SaveSolutionImage сохраняет изображение решения и возвращает путь к файлу.
func (s *Store) SaveSolutionImage(taskID string, data []byte) (string, error) {
	const op = "media.SaveSolutionImage"
	path := filepath.Join(s.dir, "solutions", "solution_"+taskID+".png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return path, nil
}

// LoadImage читает изображение и проверяет, что его можно декодировать.
func (s *Store) LoadImage(path string) ([]byte, error) {
	const op = "media.LoadImage"
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%s: decode image: %w", op, err)
	}
	return data, nil
}
