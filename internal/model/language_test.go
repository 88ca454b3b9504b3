package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLanguageString(t *testing.T) {
	assert.Equal(t, "en", English.String())
	assert.Equal(t, "jp", Japanese.String())
}

func TestLanguageOpposite(t *testing.T) {
	assert.Equal(t, Japanese, English.Opposite())
	assert.Equal(t, English, Japanese.Opposite())
}

func TestParseLanguage(t *testing.T) {
	for _, s := range []string{"English", "en"} {
		lang, err := ParseLanguage(s)
		assert.NoError(t, err)
		assert.Equal(t, English, lang)
	}
	for _, s := range []string{"Japanese", "jp"} {
		lang, err := ParseLanguage(s)
		assert.NoError(t, err)
		assert.Equal(t, Japanese, lang)
	}
	_, err := ParseLanguage("french")
	assert.Error(t, err)
}
