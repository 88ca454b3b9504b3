// Package raidparse recognizes the two locale-specific raid-invitation
// templates and extracts a boss descriptor plus a normalized
// invitation.
package raidparse

import (
	"regexp"
	"strconv"

	"github.com/kestrel-raid/gbf-raidfinder/internal/model"
)

var (
	japaneseTemplate = regexp.MustCompile(`(?s)(?P<extra>.*)(?P<battle_id>[0-9A-F]{8}) :参戦ID\n参加者募集！\n(?P<boss>.+)\n(?P<url>.*)`)
	englishTemplate  = regexp.MustCompile(`(?s)(?P<extra>.*)(?P<battle_id>[0-9A-F]{8}) :Battle ID\nI need backup!\n(?P<boss>.+)\n(?P<url>.*)`)
	levelPattern     = regexp.MustCompile(`Lv(?:l )?(?P<level>[0-9]+) .*`)
)

// Parse matches status.Text against the two templates. It returns
// ok=false when neither template matches or the status carries no
// media attachment.
func Parse(status model.RaidInvitationStatus) (model.RaidBossRaw, model.RaidInvitation, bool) {
	if len(status.Entities.Media) == 0 {
		return model.RaidBossRaw{}, model.RaidInvitation{}, false
	}

	var (
		m    []string
		lang model.Language
	)
	if jm := japaneseTemplate.FindStringSubmatch(status.Text); jm != nil {
		m, lang = jm, model.Japanese
	} else if em := englishTemplate.FindStringSubmatch(status.Text); em != nil {
		m, lang = em, model.English
	} else {
		return model.RaidBossRaw{}, model.RaidInvitation{}, false
	}

	names := japaneseTemplate.SubexpNames()
	if lang == model.English {
		names = englishTemplate.SubexpNames()
	}
	group := func(name string) string {
		for i, n := range names {
			if n == name && i < len(m) {
				return m[i]
			}
		}
		return ""
	}

	bossName := group("boss")
	battleID := group("battle_id")
	extra := group("extra")

	level := int32(0)
	if lm := levelPattern.FindStringSubmatch(bossName); lm != nil {
		if v, err := strconv.Atoi(lm[1]); err == nil {
			level = int32(v)
		}
	}

	image := status.Entities.Media[0].MediaURL

	raw := model.RaidBossRaw{
		BossName: bossName,
		Level:    level,
		Image:    image,
		Language: lang,
	}

	created, _ := strconv.ParseUint(status.TimestampMs, 10, 64)

	inv := model.RaidInvitation{
		TweetID:      status.ID,
		ScreenName:   status.User.ScreenName,
		BossName:     bossName,
		RaidID:       battleID,
		Text:         extra,
		Created:      created,
		Language:     lang,
		ProfileImage: status.User.ProfileImageURL,
	}

	return raw, inv, true
}
