package app

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/sinshu/go-meltysynth/meltysynth"
	"github.com/zurustar/trackplay/pkg/decoder"
	"github.com/zurustar/trackplay/pkg/fileutil"
)

// SoundFontLocation represents the location of a SoundFont file.
type SoundFontLocation struct {
	// Path is the path to the SoundFont file
	Path string
	// FileSystem is the FileSystem to use for loading (nil for external files)
	FileSystem fileutil.FileSystem
	// IsEmbedded indicates whether the SoundFont is embedded
	IsEmbedded bool
}

// DefaultSoundFontName is the default SoundFont filename to search for.
const DefaultSoundFontName = "GeneralUser-GS.sf2"

// embeddedSoundFontDir is where a bundled SoundFont lives inside the assets tree.
const embeddedSoundFontDir = assetsRoot + "/soundfonts"

// findSoundFont searches for a SoundFont file in the following order:
// 1. Explicit path (--soundfont or TRACKPLAY_SOUNDFONT)
// 2. Embedded soundfonts directory
// 3. Current directory (external)
// 4. Directory of the module being played (external)
//
// An explicit path is returned even if it does not exist, so the error
// surfaces when MIDI playback needs it. Returns nil if nothing is found.
func findSoundFont(assets fs.FS, explicit, moduleDir string) *SoundFontLocation {
	if explicit != "" {
		return &SoundFontLocation{Path: explicit}
	}

	if assets != nil {
		embeddedPath := embeddedSoundFontDir + "/" + DefaultSoundFontName
		if data, err := fs.ReadFile(assets, embeddedPath); err == nil && len(data) > 0 {
			return &SoundFontLocation{
				Path:       DefaultSoundFontName,
				FileSystem: fileutil.NewEmbedFS(assets, embeddedSoundFontDir),
				IsEmbedded: true,
			}
		}
	}

	if _, err := os.Stat(DefaultSoundFontName); err == nil {
		return &SoundFontLocation{Path: DefaultSoundFontName}
	}

	if moduleDir != "" {
		p := filepath.Join(moduleDir, DefaultSoundFontName)
		if _, err := os.Stat(p); err == nil {
			return &SoundFontLocation{Path: p}
		}
	}

	return nil
}

// lazyMIDIOpener parses the SoundFont on the first MIDI open, so playing a
// WAV never pays for it. A nil location yields an opener that fails with
// decoder.ErrNoSoundFont.
func lazyMIDIOpener(loc *SoundFontLocation) decoder.Opener {
	if loc == nil {
		return decoder.NewMIDIOpener(nil)
	}

	var (
		once   sync.Once
		opener decoder.Opener
		err    error
	)
	return decoder.OpenerFunc(func(name string, data []byte) (decoder.Module, error) {
		once.Do(func() {
			var sf *meltysynth.SoundFont
			sf, err = decoder.LoadSoundFontFS(loc.FileSystem, loc.Path)
			if err == nil {
				opener = decoder.NewMIDIOpener(sf)
			}
		})
		if err != nil {
			return nil, err
		}
		return opener.Open(name, data)
	})
}
