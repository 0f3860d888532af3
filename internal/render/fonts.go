package render

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomediumitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/gofont/gosmallcaps"
	"golang.org/x/image/font/gofont/gosmallcapsitalic"

	"captioner/internal/captions"
)

type fontKey struct {
	family string
	weight int
	italic bool
	file   string
}

var fonts = struct {
	sync.Mutex
	parsed map[fontKey]*truetype.Font
}{parsed: make(map[fontKey]*truetype.Font)}

// Families lists the bundled font family names.
func Families() []string {
	return []string{"go", "go-mono", "go-smallcaps"}
}

// resolveFont returns the parsed font for a style. Parsed fonts are shared;
// faces are not, since truetype faces keep an unsynchronized glyph cache.
func resolveFont(style captions.Style) (*truetype.Font, error) {
	key := fontKey{family: style.FontFamily, weight: weightBucket(style.FontWeight), italic: style.Italic, file: style.FontFile}
	if key.file != "" {
		key.family, key.weight, key.italic = "", 0, false
	}

	fonts.Lock()
	defer fonts.Unlock()
	if f, ok := fonts.parsed[key]; ok {
		return f, nil
	}

	var data []byte
	if key.file != "" {
		raw, err := os.ReadFile(key.file)
		if err != nil {
			return nil, fmt.Errorf("read font file: %w", err)
		}
		data = raw
	} else {
		data = bundledFont(key.family, key.weight, key.italic)
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	fonts.parsed[key] = f
	return f, nil
}

func newFace(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{Size: size, Hinting: font.HintingNone})
}

func weightBucket(weight int) int {
	switch {
	case weight >= 600:
		return 700
	case weight >= 500:
		return 500
	default:
		return 400
	}
}

func bundledFont(family string, weight int, italic bool) []byte {
	switch strings.ToLower(family) {
	case "go-mono", "mono", "monospace":
		switch {
		case weight >= 700 && italic:
			return gomonobolditalic.TTF
		case weight >= 700:
			return gomonobold.TTF
		case italic:
			return gomonoitalic.TTF
		default:
			return gomono.TTF
		}
	case "go-smallcaps", "smallcaps":
		if italic {
			return gosmallcapsitalic.TTF
		}
		return gosmallcaps.TTF
	default:
		switch {
		case weight >= 700 && italic:
			return gobolditalic.TTF
		case weight >= 700:
			return gobold.TTF
		case weight >= 500 && italic:
			return gomediumitalic.TTF
		case weight >= 500:
			return gomedium.TTF
		case italic:
			return goitalic.TTF
		default:
			return goregular.TTF
		}
	}
}
