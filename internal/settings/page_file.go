package settings

import (
	"fmt"
	"os"
)

// FilePage is a Page backed by a plain file, standing in for the raw
// MTD/flash partition the real board exposes the settings page on. It
// reads and writes the whole page every time, matching the firmware's
// own read-modify-write discipline.
type FilePage struct {
	path string
}

func NewFilePage(path string) *FilePage {
	return &FilePage{path: path}
}

func (p *FilePage) ReadPage() ([PageWords]uint32, error) {
	var words [PageWords]uint32
	buf, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		for i := range words {
			words[i] = unprogrammedWord
		}
		return words, nil
	}
	if err != nil {
		return words, fmt.Errorf("settings: open page file: %w", err)
	}
	return DecodePageBytes(buf)
}

func (p *FilePage) WritePage(words [PageWords]uint32) error {
	buf := EncodePageBytes(words)
	if err := os.WriteFile(p.path, buf, 0o644); err != nil {
		return fmt.Errorf("settings: write page file: %w", err)
	}
	return nil
}
