package raidparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-raid/gbf-raidfinder/internal/model"
)

func statusWithMedia(text string) model.RaidInvitationStatus {
	return model.RaidInvitationStatus{
		ID:          1,
		Text:        text,
		TimestampMs: "1609459200000",
		User:        model.User{ScreenName: "someone", ProfileImageURL: "https://example.com/p.jpg"},
		Entities:    model.Entities{Media: []model.Media{{MediaURL: "https://example.com/boss.jpg"}}},
	}
}

func TestParseJapaneseTemplate(t *testing.T) {
	text := "プロトバハムートと戦ってください\nAB12CD34 :参戦ID\n参加者募集！\nLv120 プロトバハムート\nhttps://example.com/raid"
	raw, inv, ok := Parse(statusWithMedia(text))
	require.True(t, ok)
	assert.Equal(t, model.Japanese, raw.Language)
	assert.Equal(t, int32(120), raw.Level)
	assert.Equal(t, "Lv120 プロトバハムート", raw.BossName)
	assert.Equal(t, "AB12CD34", inv.RaidID)
	assert.Equal(t, uint64(1609459200000), inv.Created)
	assert.Equal(t, "https://example.com/boss.jpg", raw.Image)
}

func TestParseEnglishTemplate(t *testing.T) {
	text := "Fight Proto Bahamut with me\nAB12CD34 :Battle ID\nI need backup!\nLvl 120 Proto Bahamut\nhttps://example.com/raid"
	raw, inv, ok := Parse(statusWithMedia(text))
	require.True(t, ok)
	assert.Equal(t, model.English, raw.Language)
	assert.Equal(t, int32(120), raw.Level)
	assert.Equal(t, "AB12CD34", inv.RaidID)
	assert.Equal(t, "someone", inv.ScreenName)
}

func TestParseRejectsNoMediaAttachment(t *testing.T) {
	status := statusWithMedia("AB12CD34 :Battle ID\nI need backup!\nLvl 120 Proto Bahamut\nhttps://example.com/raid")
	status.Entities.Media = nil
	_, _, ok := Parse(status)
	assert.False(t, ok)
}

func TestParseRejectsUnrecognizedText(t *testing.T) {
	_, _, ok := Parse(statusWithMedia("just a regular tweet, nothing raid-shaped here"))
	assert.False(t, ok)
}
