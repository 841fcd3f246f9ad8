package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanTitle(t *testing.T) {
	cases := map[string]string{
		"[SubsPlease] Frieren (2023)": "Frieren",
		"Attack on Titan Season 3":    "Attack on Titan",
		"Mob Psycho 100 - Part 2":     "Mob Psycho 100",
		"鬼滅の刃 第2季":                    "鬼滅の刃",
		"[only tags]":                 "[only tags]",
		"  Spy x Family  ":            "Spy x Family",
		"Jujutsu Kaisen S02":          "Jujutsu Kaisen",
		"Season of the Witch":         "Season of the Witch",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanTitle(in), in)
	}
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "pokemon-the-movie", Slugify("Pokémon: The Movie!"))
	assert.Equal(t, "re-zero-starting-life-in-another-world", Slugify("Re:Zero − Starting Life in Another World"))
	assert.Equal(t, "", Slugify("進撃の巨人"))
	assert.Equal(t, "86", Slugify("86"))
	assert.LessOrEqual(t, len(Slugify(strings.Repeat("long title ", 20))), 80)
}

func TestSameTitle(t *testing.T) {
	assert.True(t, SameTitle("Frieren - Beyond Journey's End", "frieren: beyond journey's end"))
	assert.True(t, SameTitle("[Group] Bocchi the Rock!", "Bocchi the Rock"))
	assert.False(t, SameTitle("Naruto", "Naruto Shippuden"))
	assert.False(t, SameTitle("進撃の巨人", "進撃の巨人"))
}

func TestStripHTML(t *testing.T) {
	in := "Humans fight <i>titans</i>.<br><br>\n<br>Source: <b>Kodansha</b> &amp; friends"
	assert.Equal(t, "Humans fight titans.\n\nSource: Kodansha & friends", StripHTML(in))
	assert.Equal(t, "plain text", StripHTML("  plain text "))
	assert.Equal(t, "", StripHTML(""))
}
