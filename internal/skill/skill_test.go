// ABOUTME: Tests for Skill and AgentSkill construction, validation and lookup.
// ABOUTME: Covers case-insensitive values, order-independent equality and error cases.

package skill

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func languageSkill() *Skill {
	return New("Language", []string{"English", "Spanish"}, Prompts{Main: "Say a language"})
}

func TestSkill_IsValidValue(t *testing.T) {
	lang := languageSkill()

	tests := []struct {
		value string
		want  bool
	}{
		{"English", true},
		{"english", true},
		{"SPANISH", true},
		{"French", false},
		{"", false},
		{"English ", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, lang.IsValidValue(tt.value))
		})
	}
}

func TestSkill_ValuesAreCopied(t *testing.T) {
	values := []string{"English", "Spanish"}
	lang := New("Language", values, Prompts{})

	values[0] = "Klingon"
	assert.True(t, lang.IsValidValue("English"))

	got := lang.Values()
	got[1] = "Klingon"
	assert.Equal(t, []string{"English", "Spanish"}, lang.Values())
}

func TestSkill_Equal(t *testing.T) {
	a := New("Language", []string{"English", "Spanish"}, Prompts{})
	b := New("Language", []string{"Spanish", "English"}, Prompts{Main: "different prompt"})
	c := New("Language", []string{"English"}, Prompts{})
	d := New("Product", []string{"English", "Spanish"}, Prompts{})

	assert.True(t, a.Equal(b), "value order must not matter")
	assert.False(t, a.Equal(c), "value sets differ")
	assert.False(t, c.Equal(a), "value sets differ in the other direction")
	assert.False(t, a.Equal(d), "names differ")
	assert.False(t, a.Equal(nil))
}

func TestFindSkill(t *testing.T) {
	lang := languageSkill()
	product := New("Product", []string{"Routers", "Switches"}, Prompts{})
	skills := []*Skill{lang, product}

	assert.Same(t, product, FindSkill("Product", skills))
	assert.Nil(t, FindSkill("product", skills), "name match is exact")
	assert.Nil(t, FindSkill("Billing", skills))
	assert.Nil(t, FindSkill("Language", nil))
}

func TestFindSkill_Concurrent(t *testing.T) {
	skills := []*Skill{languageSkill(), New("Product", []string{"Routers"}, Prompts{})}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.Equal(t, "Language", FindSkill("Language", skills).Name())
		}()
		go func() {
			defer wg.Done()
			assert.Equal(t, "Product", FindSkill("Product", skills).Name())
		}()
	}
	wg.Wait()
}

func TestNewAgentSkill(t *testing.T) {
	lang := languageSkill()

	t.Run("valid value", func(t *testing.T) {
		as, err := NewAgentSkill(lang, "english")
		require.NoError(t, err)
		assert.Same(t, lang, as.Skill())
		assert.Equal(t, "english", as.Value())
		assert.Equal(t, "Language=English", as.String())
	})

	t.Run("nil skill", func(t *testing.T) {
		_, err := NewAgentSkill(nil, "English")
		assert.ErrorIs(t, err, ErrNullSkill)
	})

	t.Run("empty value", func(t *testing.T) {
		_, err := NewAgentSkill(lang, "")
		assert.ErrorIs(t, err, ErrNullValue)
	})

	t.Run("value outside set", func(t *testing.T) {
		as, err := NewAgentSkill(lang, "French")
		assert.ErrorIs(t, err, ErrInvalidValue)
		assert.True(t, as.IsZero())
	})

	t.Run("skill with no values", func(t *testing.T) {
		_, err := NewAgentSkill(New("Empty", nil, Prompts{}), "anything")
		assert.ErrorIs(t, err, ErrInvalidValue)
	})
}

func TestAgentSkill_Equal(t *testing.T) {
	lang := languageSkill()
	sameLang := New("Language", []string{"Spanish", "English"}, Prompts{})

	english := MustAgentSkill(lang, "English")

	assert.True(t, english.Equal(MustAgentSkill(lang, "ENGLISH")))
	assert.True(t, english.Equal(MustAgentSkill(sameLang, "english")))
	assert.False(t, english.Equal(MustAgentSkill(lang, "Spanish")))
}

func TestParseAgentSkill(t *testing.T) {
	skills := []*Skill{languageSkill()}

	as, err := ParseAgentSkill("Language = spanish", skills)
	require.NoError(t, err)
	assert.Equal(t, "Language=Spanish", as.String())

	_, err = ParseAgentSkill("Product=Routers", skills)
	assert.ErrorIs(t, err, ErrUnknownSkill)

	_, err = ParseAgentSkill("Language", skills)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = ParseAgentSkill("Language=German", skills)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestMustAgentSkill_Panics(t *testing.T) {
	assert.Panics(t, func() { MustAgentSkill(languageSkill(), "German") })
}
