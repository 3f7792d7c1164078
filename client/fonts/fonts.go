package fonts

import (
	"fmt"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

func init() {
	if err := loadFonts(); err != nil {
		panic(fmt.Sprintf("Failed to load fonts: %v", err))
	}
}

var NormalFont font.Face
var SmallFont font.Face
var MonoFont font.Face

func loadFonts() error {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return fmt.Errorf("failed to parse font: %v", err)
	}
	mono, err := opentype.Parse(gomono.TTF)
	if err != nil {
		return fmt.Errorf("failed to parse font: %v", err)
	}

	const dpi = 72
	if NormalFont, err = newFace(regular, 24, dpi); err != nil {
		return err
	}
	if SmallFont, err = newFace(regular, 14, dpi); err != nil {
		return err
	}
	if MonoFont, err = newFace(mono, 14, dpi); err != nil {
		return err
	}

	return nil
}

func newFace(f *opentype.Font, size, dpi float64) (font.Face, error) {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     dpi,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %v", err)
	}
	return face, nil
}
