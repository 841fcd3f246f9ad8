package playback

import (
	"testing"

	"github.com/pokerjest/animestream/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuality(t *testing.T) {
	tests := []struct {
		label string
		want  int
	}{
		{"1080p", 1080},
		{"720", 720},
		{"4K", 2160},
		{"uhd", 2160},
		{"2k", 1440},
		{"HD", 720},
		{"sd", 480},
		{" 480P ", 480},
		{"", 0},
		{"best", 0},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseQuality(tt.label))
		})
	}
	assert.Equal(t, "2160p", NormalizeQuality("4k"))
	assert.Equal(t, "weird", NormalizeQuality(" weird "))
}

var sources = []model.VideoSource{
	{ID: 1, Quality: "480p"},
	{ID: 2, Quality: "1080p"},
	{ID: 3, Quality: "720p"},
}

func TestSelectSource(t *testing.T) {
	tests := []struct {
		name      string
		preferred string
		wantID    uint
	}{
		{"auto picks highest", "auto", 2},
		{"empty picks highest", "", 2},
		{"exact", "720p", 3},
		{"exact ignores case", "720P", 3},
		{"falls down to best below", "900p", 3},
		{"above everything", "4k", 2},
		{"below everything picks lowest above", "360p", 1},
		{"unparseable picks highest", "potato", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectSource(sources, tt.preferred)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}

	assert.Nil(t, SelectSource(nil, "720p"))
}

func TestSelectSourceUnlabelledStreams(t *testing.T) {
	mixed := []model.VideoSource{{ID: 1, Quality: "1080p"}, {ID: 2, Quality: "source"}}
	assert.Equal(t, uint(1), SelectSource(mixed, "720p").ID, "labelled stream above beats an unknown one")
	assert.Equal(t, uint(2), SelectSource(mixed, "Source").ID, "exact label still wins")

	unlabelled := []model.VideoSource{{ID: 5, Quality: "source"}, {ID: 6, Quality: "raw"}}
	assert.Equal(t, uint(5), SelectSource(unlabelled, "720p").ID)
}

func TestSelectSourceDoesNotReorderInput(t *testing.T) {
	in := []model.VideoSource{{ID: 1, Quality: "480p"}, {ID: 2, Quality: "1080p"}}
	SelectSource(in, "auto")
	assert.Equal(t, uint(1), in[0].ID)
}

func TestQualities(t *testing.T) {
	in := append([]model.VideoSource{{Quality: "1080P"}, {Quality: ""}}, sources...)
	assert.Equal(t, []string{"1080P", "720p", "480p"}, Qualities(in))
	assert.Empty(t, Qualities(nil))
}

func TestSelectSubtitle(t *testing.T) {
	subs := []model.Subtitle{
		{ID: 1, Language: "ja"},
		{ID: 2, Language: "en", IsDefault: true},
		{ID: 3, Language: "pt-BR"},
	}

	tests := []struct {
		name   string
		lang   string
		wantID uint // 0 means none
	}{
		{"off", "off", 0},
		{"exact", "ja", 1},
		{"exact ignores case", "PT-br", 3},
		{"base language", "en-US", 2},
		{"base language of region track", "pt", 3},
		{"unknown falls back to default", "de", 2},
		{"empty falls back to default", "", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectSubtitle(subs, tt.lang)
			if tt.wantID == 0 {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}

	noDefault := []model.Subtitle{{ID: 1, Language: "ja"}}
	assert.Nil(t, SelectSubtitle(noDefault, ""))
	assert.Nil(t, SelectSubtitle(nil, "en"))
}

func TestProgress(t *testing.T) {
	p := Progress(50, 100)
	assert.Equal(t, 50.0, p.Percent)
	assert.False(t, p.Completed)

	p = Progress(90, 100)
	assert.True(t, p.Completed)

	p = Progress(150, 100)
	assert.Equal(t, 100, p.Position)
	assert.True(t, p.Completed)

	p = Progress(-5, 100)
	assert.Equal(t, 0, p.Position)

	p = Progress(30, 0)
	assert.Equal(t, 30, p.Position)
	assert.False(t, p.Completed)
	assert.Zero(t, p.Percent)
}

func TestResumePosition(t *testing.T) {
	assert.Equal(t, 0, ResumePosition(nil))
	assert.Equal(t, 0, ResumePosition(&model.WatchHistory{Position: 1300, Completed: true}))
	assert.Equal(t, 420, ResumePosition(&model.WatchHistory{Position: 420}))
}

func TestSourceFormat(t *testing.T) {
	assert.Equal(t, "hls", SourceFormat("https://cdn/x/master.M3U8?token=1"))
	assert.Equal(t, "dash", SourceFormat("https://cdn/x/manifest.mpd"))
	assert.Equal(t, "mp4", SourceFormat("https://cdn/x/ep1.mp4"))
}
