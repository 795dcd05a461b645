package settings

import (
	"encoding/binary"
	"fmt"
)

// PageWords is the size of the reserved NVM page, in 32-bit words.
const PageWords = 128

// reservedWords is the number of header words this firmware never
// touches (words 0 and 1).
const reservedWords = 2

// nFields is the number of settings fields encoded in the page, one
// per word starting at word 2.
const nFields = 14

// unprogrammedWord is what an erased-but-never-written flash word reads
// back as.
const unprogrammedWord = 0xffffffff

// Page is the raw NVM page underneath the settings store: a flat array
// of big-endian 32-bit words that can be read and written wholesale.
// Exact flash/MTD/sector-erase behavior is a driver concern external to
// this package; Page only needs whole-page read-modify-write semantics.
type Page interface {
	ReadPage() ([PageWords]uint32, error)
	WritePage([PageWords]uint32) error
}

// Store loads and persists a Settings record through a Page.
type Store struct {
	page Page
}

func NewStore(page Page) *Store {
	return &Store{page: page}
}

// Load reads settings from the page. If the page is unprogrammed (word 2
// reads all-ones) it returns the factory defaults and saves them once,
// so the next boot finds a programmed page.
func (s *Store) Load() (Settings, error) {
	words, err := s.page.ReadPage()
	if err != nil {
		return Settings{}, fmt.Errorf("settings: read page: %w", err)
	}
	if words[reservedWords] == unprogrammedWord {
		def := Default()
		if err := s.save(&words, def); err != nil {
			return Settings{}, fmt.Errorf("settings: initialize: %w", err)
		}
		return def, nil
	}
	return decode(words), nil
}

// Save writes s back to the page, preserving the two reserved header
// words and anything beyond the 14 settings fields.
func (s *Store) Save(v Settings) error {
	words, err := s.page.ReadPage()
	if err != nil {
		return fmt.Errorf("settings: read page: %w", err)
	}
	return s.save(&words, v)
}

func (s *Store) save(words *[PageWords]uint32, v Settings) error {
	encode(words, v)
	if err := s.page.WritePage(*words); err != nil {
		return fmt.Errorf("settings: write page: %w", err)
	}
	return nil
}

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func encode(words *[PageWords]uint32, v Settings) {
	fields := [nFields]uint32{
		boolWord(v.TriggerSync),
		v.DelayMS,
		boolWord(v.DelaySync),
		uint32(v.IntervalNShots),
		v.IntervalDelayMS,
		boolWord(v.IntervalSync),
		uint32(v.InputMode),
		boolWord(v.InputSync),
		v.FocusDurationMS,
		v.TriggerDurationMS,
		boolWord(v.SettingsSync),
		uint32(v.SyncChannel),
		uint32(v.RadioMode),
		uint32(v.Brightness),
	}
	for i, f := range fields {
		words[reservedWords+i] = f
	}
}

func decode(words [PageWords]uint32) Settings {
	f := words[reservedWords:]
	v := Settings{
		TriggerSync:       f[0] != 0,
		DelayMS:           f[1],
		DelaySync:         f[2] != 0,
		IntervalNShots:    int(f[3]),
		IntervalDelayMS:   f[4],
		IntervalSync:      f[5] != 0,
		InputMode:         InputMode(f[6]),
		InputSync:         f[7] != 0,
		FocusDurationMS:   f[8],
		TriggerDurationMS: f[9],
		SettingsSync:      f[10] != 0,
		SyncChannel:       int(f[11]),
		RadioMode:         RadioMode(f[12]),
		Brightness:        int(f[13]),
	}
	v.Clamp()
	return v
}

// EncodePageBytes serializes a page to its big-endian wire form, used by
// the file-backed Page implementation.
func EncodePageBytes(words [PageWords]uint32) []byte {
	buf := make([]byte, PageWords*4)
	for i, w := range words {
		binary.BigEndian.PutUint32(buf[i*4:], w)
	}
	return buf
}

// DecodePageBytes parses a page from its big-endian wire form.
func DecodePageBytes(buf []byte) ([PageWords]uint32, error) {
	var words [PageWords]uint32
	if len(buf) < PageWords*4 {
		return words, fmt.Errorf("settings: short page: got %d bytes, want %d", len(buf), PageWords*4)
	}
	for i := range words {
		words[i] = binary.BigEndian.Uint32(buf[i*4:])
	}
	return words, nil
}
