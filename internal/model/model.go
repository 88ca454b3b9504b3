package model

// RaidInvitationStatus is the wire record yielded by the stream source.
// Consumed by the Status Parser then discarded.
type RaidInvitationStatus struct {
	ID          uint64  `json:"id"`
	Text        string  `json:"text"`
	Source      string  `json:"source"`
	TimestampMs string  `json:"timestamp_ms"`
	User        User    `json:"user"`
	Entities    Entities `json:"entities"`
}

type User struct {
	ScreenName      string `json:"screen_name"`
	ProfileImageURL string `json:"profile_image_url"`
}

type Entities struct {
	Media []Media `json:"media"`
}

type Media struct {
	MediaURL string `json:"media_url"`
}

// RaidBossRaw is an uninterpreted boss descriptor as observed in one
// language, pre-pairing. Identity is (Language, Level, BossName).
type RaidBossRaw struct {
	BossName string
	Level    int32
	Image    string
	Language Language
}

// RaidBoss is the canonical bilingual boss record produced once both
// language variants have been observed and image-matched.
type RaidBoss struct {
	ENName string
	JPName string
	Level  int32
	Image  string
}

// RaidInvitation is a normalized raid-recruitment post, ready to persist
// and broadcast.
type RaidInvitation struct {
	TweetID       uint64
	ScreenName    string
	BossName      string
	RaidID        string
	Text          string
	Created       uint64
	Language      Language
	ProfileImage  string
}
