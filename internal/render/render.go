// Package render рисует изображение с текстом решения. Картинка —
// вспомогательный артефакт для показа в мини-приложении: ошибка
// рендеринга не считается ошибкой конвейера.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/zerotask/solver-bot/internal/lib/markup"
)

const (
	imageWidth  = 800
	imageHeight = 600
	lineHeight  = 25
	margin      = 20
)

// SolutionImage рендерит решение в PNG: теги списка убираются,
// каждый шаг выводится отдельной строкой.
func SolutionImage(solution string) ([]byte, error) {
	const op = "render.SolutionImage"

	img := image.NewRGBA(image.Rect(0, 0, imageWidth, imageHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
	}

	y := margin
	for _, line := range strings.Split(markup.StripListTags(solution), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if y > imageHeight-margin {
			break
		}
		drawer.Dot = fixed.P(margin, y)
		drawer.DrawString(line)
		y += lineHeight
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return buf.Bytes(), nil
}
