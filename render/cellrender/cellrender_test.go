package cellrender

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"

	"github.com/duofs/duofs/render"
)

func TestTranslateKeyNamedKeys(t *testing.T) {
	cases := []struct {
		key  tcell.Key
		want render.KeyCode
	}{
		{tcell.KeyEnter, render.KeyEnter},
		{tcell.KeyEscape, render.KeyEscape},
		{tcell.KeyTab, render.KeyTab},
		{tcell.KeyBackspace2, render.KeyBackspace},
		{tcell.KeyDelete, render.KeyDelete},
		{tcell.KeyPgUp, render.KeyPgUp},
		{tcell.KeyF5, render.KeyF5},
	}
	for _, c := range cases {
		ev := tcell.NewEventKey(c.key, 0, tcell.ModNone)
		code, ch := translateKey(ev)
		assert.Equal(t, c.want, code)
		assert.Empty(t, ch)
	}
}

func TestTranslateKeyCharacter(t *testing.T) {
	ev := tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)
	code, ch := translateKey(ev)
	assert.Equal(t, render.KeyCharacter, code)
	assert.Equal(t, "q", ch)
}

func TestTranslateModifiers(t *testing.T) {
	m := translateModifiers(tcell.ModShift | tcell.ModCtrl)
	assert.True(t, m&render.ModShift != 0)
	assert.True(t, m&render.ModControl != 0)
	assert.False(t, m&render.ModAlt != 0)
}

func TestStyleForFallsBackToDefaultPair(t *testing.T) {
	b := New()
	b.InitColorPair(3, render.RGB{255, 0, 0}, render.RGB{0, 0, 0})

	st := b.styleFor(3, render.AttrBold)
	fg, bg, attrs := st.Decompose()
	_ = bg
	assert.True(t, attrs&tcell.AttrBold != 0)
	assert.NotEqual(t, tcell.ColorDefault, fg)

	// An unregistered pair falls back to pair 0 rather than panicking.
	unknown := b.styleFor(200, 0)
	ufg, _, _ := unknown.Decompose()
	assert.Equal(t, tcell.ColorDefault, ufg)
}
