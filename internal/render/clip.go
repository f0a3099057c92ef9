package render

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// Clip is the outcome of rendering one scene.
type Clip struct {
	Index int
	Scene string
	Path  string
	OK    bool
	Err   error
}

var sceneIndexPattern = regexp.MustCompile(`Slide(\d+)Scene`)

// ParseSceneIndex extracts the slide index embedded in a clip filename.
func ParseSceneIndex(path string) (int, bool) {
	match := sceneIndexPattern.FindStringSubmatch(filepath.Base(path))
	if match == nil {
		return 0, false
	}
	index, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return index, true
}

// Survivors returns the successful clips sorted by index. Every index must be
// unique and inside [0, slideCount).
func Survivors(clips []Clip, slideCount int) ([]Clip, error) {
	seen := make(map[int]struct{}, len(clips))
	out := make([]Clip, 0, len(clips))
	for _, clip := range clips {
		if !clip.OK {
			continue
		}
		if clip.Index < 0 || clip.Index >= slideCount {
			return nil, fmt.Errorf("clip %s has index %d outside [0, %d)", clip.Path, clip.Index, slideCount)
		}
		if _, dup := seen[clip.Index]; dup {
			return nil, fmt.Errorf("duplicate clip for slide %d", clip.Index)
		}
		seen[clip.Index] = struct{}{}
		out = append(out, clip)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// SurvivorsFromPaths rebuilds clips from an unordered set of output paths
// using the Slide<i>Scene naming convention.
func SurvivorsFromPaths(paths []string, slideCount int) ([]Clip, error) {
	clips := make([]Clip, 0, len(paths))
	for _, path := range paths {
		index, ok := ParseSceneIndex(path)
		if !ok {
			return nil, fmt.Errorf("clip %s does not name its scene", path)
		}
		clips = append(clips, Clip{Index: index, Scene: fmt.Sprintf("Slide%dScene", index), Path: path, OK: true})
	}
	return Survivors(clips, slideCount)
}

// Failed returns the indices of clips that did not render, ascending.
func Failed(clips []Clip) []int {
	var indices []int
	for _, clip := range clips {
		if !clip.OK {
			indices = append(indices, clip.Index)
		}
	}
	sort.Ints(indices)
	return indices
}
