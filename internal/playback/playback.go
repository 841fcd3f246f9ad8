// Package playback picks streams and subtitles for the player and tracks watch progress.
package playback

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pokerjest/animestream/internal/model"
	"golang.org/x/text/language"
)

// CompletedThreshold is the watched fraction at which an episode counts as finished.
const CompletedThreshold = 0.9

const (
	QualityAuto = "auto"
	SubtitleOff = "off"
)

var namedQualities = map[string]int{
	"4k":  2160,
	"uhd": 2160,
	"2k":  1440,
	"qhd": 1440,
	"fhd": 1080,
	"hd":  720,
	"sd":  480,
}

// ParseQuality turns a label such as "1080p", "720" or "4K" into a vertical resolution, 0 when unknown.
func ParseQuality(label string) int {
	l := strings.ToLower(strings.TrimSpace(label))
	if l == "" {
		return 0
	}
	if v, ok := namedQualities[l]; ok {
		return v
	}
	l = strings.TrimSuffix(l, "p")
	n, err := strconv.Atoi(l)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// NormalizeQuality renders a label as "<height>p" when it can be parsed.
func NormalizeQuality(label string) string {
	if q := ParseQuality(label); q > 0 {
		return strconv.Itoa(q) + "p"
	}
	return strings.TrimSpace(label)
}

// SelectSource picks the stream closest to the preferred quality without going over it.
// With nothing at or below the preference the lowest stream above it is used. Streams with
// unparsable labels are only chosen when no labelled stream exists.
func SelectSource(sources []model.VideoSource, preferred string) *model.VideoSource {
	if len(sources) == 0 {
		return nil
	}
	sorted := sortedByQuality(sources)

	pref := strings.ToLower(strings.TrimSpace(preferred))
	if pref == "" || pref == QualityAuto {
		return &sorted[0]
	}
	for i := range sorted {
		if strings.EqualFold(sorted[i].Quality, preferred) {
			return &sorted[i]
		}
	}

	want := ParseQuality(pref)
	if want == 0 {
		return &sorted[0]
	}
	var lowestAbove *model.VideoSource
	for i := range sorted {
		q := ParseQuality(sorted[i].Quality)
		switch {
		case q == 0:
		case q <= want:
			return &sorted[i]
		default:
			lowestAbove = &sorted[i]
		}
	}
	if lowestAbove != nil {
		return lowestAbove
	}
	return &sorted[0]
}

// Qualities lists the distinct quality labels, best first.
func Qualities(sources []model.VideoSource) []string {
	out := make([]string, 0, len(sources))
	seen := make(map[string]bool, len(sources))
	for _, s := range sortedByQuality(sources) {
		key := strings.ToLower(s.Quality)
		if s.Quality == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s.Quality)
	}
	return out
}

func sortedByQuality(sources []model.VideoSource) []model.VideoSource {
	sorted := make([]model.VideoSource, len(sources))
	copy(sorted, sources)
	sort.SliceStable(sorted, func(i, j int) bool {
		return ParseQuality(sorted[i].Quality) > ParseQuality(sorted[j].Quality)
	})
	return sorted
}

// SelectSubtitle resolves the requested language against the available tracks.
func SelectSubtitle(subs []model.Subtitle, lang string) *model.Subtitle {
	lang = strings.TrimSpace(lang)
	if strings.EqualFold(lang, SubtitleOff) || len(subs) == 0 {
		return nil
	}

	if lang != "" {
		for i := range subs {
			if strings.EqualFold(subs[i].Language, lang) {
				return &subs[i]
			}
		}
		if want, err := language.Parse(lang); err == nil {
			wantBase, _ := want.Base()
			for i := range subs {
				tag, err := language.Parse(subs[i].Language)
				if err != nil {
					continue
				}
				if base, _ := tag.Base(); base == wantBase {
					return &subs[i]
				}
			}
		}
	}

	for i := range subs {
		if subs[i].IsDefault {
			return &subs[i]
		}
	}
	return nil
}

// ProgressInfo is a normalised playback position.
type ProgressInfo struct {
	Position  int     `json:"position"`
	Duration  int     `json:"duration"`
	Percent   float64 `json:"percent"`
	Completed bool    `json:"completed"`
}

// Progress clamps position into [0, duration] and derives the completion state.
// An unknown duration (0) never completes.
func Progress(position, duration int) ProgressInfo {
	if duration < 0 {
		duration = 0
	}
	if position < 0 {
		position = 0
	}
	if duration > 0 && position > duration {
		position = duration
	}

	p := ProgressInfo{Position: position, Duration: duration}
	if duration > 0 {
		p.Percent = float64(position) / float64(duration) * 100
		p.Completed = float64(position) >= float64(duration)*CompletedThreshold
	}
	return p
}

// ResumePosition is where playback should restart from.
func ResumePosition(h *model.WatchHistory) int {
	if h == nil || h.Completed {
		return 0
	}
	return h.Position
}

// SourceFormat guesses the stream format from the URL.
func SourceFormat(url string) string {
	u := strings.ToLower(url)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	switch {
	case strings.HasSuffix(u, ".m3u8"):
		return "hls"
	case strings.HasSuffix(u, ".mpd"):
		return "dash"
	case strings.HasSuffix(u, ".webm"):
		return "webm"
	default:
		return "mp4"
	}
}
