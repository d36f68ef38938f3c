package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWordSource struct {
	words []string
	err   error
	calls int
}

func (s *stubWordSource) BlockedWords(ctx context.Context) ([]string, error) {
	s.calls++
	return s.words, s.err
}

func TestCheckLinkDetection(t *testing.T) {
	f := New(&stubWordSource{})
	ctx := context.Background()

	tests := []struct {
		name string
		text string
		want Verdict
	}{
		{"plain text", "hello how are you", Clean},
		{"empty", "", Clean},
		{"http url", "visit http://example.xyz now", Forbidden},
		{"https url", "https://evil.example", Forbidden},
		{"www prefix", "go to www.site", Forbidden},
		{"www uppercase", "WWW.SITE", Forbidden},
		{"dotted com", "join chat.com please", Forbidden},
		{"dotted ru", "site.ru", Forbidden},
		{"dotted io", "cool.io", Forbidden},
		{"bot handle", "message @spamspam_bot for deals", Forbidden},
		{"bot handle uppercase", "try @SpamSpamBOT", Forbidden},
		{"short bot handle ignored", "@ab_bot is too short", Clean},
		{"bot substring without boundary", "@longenoughbotanical", Clean},
		{"ellipsis is not a link", "well... maybe", Clean},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.Check(ctx, tt.text)
			assert.Equal(t, tt.want, got.Verdict)
			if tt.want != Clean {
				assert.NotEmpty(t, got.Match)
			}
		})
	}
}

func TestCheckBlockedWords(t *testing.T) {
	src := &stubWordSource{words: []string{"Badword", "spam"}}
	f := New(src)
	ctx := context.Background()

	// Case-folded substring match, and words win over links.
	got := f.Check(ctx, "this contains BADWORD inside")
	assert.Equal(t, BlockedWord, got.Verdict)
	assert.Equal(t, "badword", got.Match)

	got = f.Check(ctx, "spam at www.site")
	assert.Equal(t, BlockedWord, got.Verdict)
	assert.Equal(t, "spam", got.Match)

	got = f.Check(ctx, "nothing wrong here")
	assert.Equal(t, Clean, got.Verdict)
}

func TestCheckCachesWordSet(t *testing.T) {
	src := &stubWordSource{words: []string{"spam"}}
	f := New(src)
	ctx := context.Background()

	f.Check(ctx, "first")
	f.Check(ctx, "second")
	f.Check(ctx, "third")
	assert.Equal(t, 1, src.calls, "word set should be fetched once within the refresh window")
}

func TestCheckKeepsStaleWordsOnError(t *testing.T) {
	src := &stubWordSource{words: []string{"spam"}}
	f := New(src)
	ctx := context.Background()

	require.NoError(t, f.Reload(ctx))
	src.err = errors.New("store down")
	f.loadedAt = f.loadedAt.Add(-2 * f.refresh)

	got := f.Check(ctx, "some spam text")
	assert.Equal(t, BlockedWord, got.Verdict, "stale set should keep serving while the store is down")
}

func TestReloadAppliesImmediately(t *testing.T) {
	src := &stubWordSource{}
	f := New(src)
	ctx := context.Background()

	assert.Equal(t, Clean, f.Check(ctx, "newword here").Verdict)

	src.words = []string{"newword"}
	require.NoError(t, f.Reload(ctx))
	assert.Equal(t, BlockedWord, f.Check(ctx, "newword here").Verdict)
}

func TestStrikes(t *testing.T) {
	s := NewStrikes()

	assert.Equal(t, 0, s.Count(7))
	assert.Equal(t, 1, s.Strike(7))
	assert.Equal(t, 2, s.Strike(7))
	assert.Equal(t, 3, s.Strike(7))
	assert.Equal(t, 3, s.Count(7))

	// Independent per user.
	assert.Equal(t, 1, s.Strike(8))

	s.Reset(7)
	assert.Equal(t, 0, s.Count(7))
	assert.Equal(t, 1, s.Strike(7))
}
