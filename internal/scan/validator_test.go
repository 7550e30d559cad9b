package scan

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatorScreen(t *testing.T) {
	// Small limits so tests don't need megabytes of content.
	validator := &Validator{
		ValidationThreshold: 32,
		MaxFileSize:         4096,
		HeaderSize:          256,
	}

	t.Run("SmallFilePassesUnexamined", func(t *testing.T) {
		content := []byte{0x89, 0x50, 0x4E, 0x47, 0x00, 0x01}
		assert.NoError(t, validator.Screen("sprites/spr_player.gml", content))
	})

	t.Run("OversizedFileRejected", func(t *testing.T) {
		content := bytes.Repeat([]byte("x"), 5000)
		err := validator.Screen("scripts/scr_big/scr_big.gml", content)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "byte limit")
	})

	t.Run("BinaryContentRejected", func(t *testing.T) {
		content := bytes.Repeat([]byte{0x00, 0x01, 'a'}, 40)
		err := validator.Screen("scripts/scr_tex/scr_tex.gml", content)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "binary")
	})

	t.Run("SourceWithConstructsPasses", func(t *testing.T) {
		content := []byte("function scr_loop() {\n" + strings.Repeat("\tdo_thing()\n", 20) + "}\n")
		assert.NoError(t, validator.Screen("scripts/scr_loop/scr_loop.gml", content))
	})

	t.Run("SourceWithoutConstructsRejected", func(t *testing.T) {
		content := []byte(strings.Repeat("lorem ipsum dolor sit amet ", 10))
		err := validator.Screen("scripts/scr_junk/scr_junk.gml", content)
		assert.Error(t, err)
	})

	t.Run("ManifestOpeningObjectPasses", func(t *testing.T) {
		content := []byte("\xef\xbb\xbf  {\"resourceType\":\"GMSprite\"," + strings.Repeat("\"k\":1,", 20) + "}")
		assert.NoError(t, validator.Screen("sprites/spr_player/spr_player.yy", content))
	})

	t.Run("ManifestNotOpeningObjectRejected", func(t *testing.T) {
		content := []byte(strings.Repeat("resourceType GMSprite frames ", 10))
		err := validator.Screen("sprites/spr_player/spr_player.yy", content)
		assert.Error(t, err)
	})

	t.Run("UnknownExtensionPasses", func(t *testing.T) {
		content := []byte(strings.Repeat("plain prose with no constructs ", 10))
		assert.NoError(t, validator.Screen("notes/README.txt", content))
	})

	t.Run("DefaultsAcceptRealSource", func(t *testing.T) {
		v := NewValidator()
		assert.NoError(t, v.Screen("scripts/scr_hit/scr_hit.gml", []byte("x = 1;\n")))
	})
}
