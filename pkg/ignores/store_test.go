package ignores

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	lines   map[string][]string
	posts   int
	readErr error
}

func (f *fakeLister) IgnoreList(ctx context.Context, folder string) ([]string, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return append([]string(nil), f.lines[folder]...), nil
}

func (f *fakeLister) SetIgnoreList(ctx context.Context, folder string, lines []string) error {
	f.posts++
	f.lines[folder] = lines
	return nil
}

func TestStore_WriteThenRead(t *testing.T) {
	api := &fakeLister{lines: map[string][]string{"default": sampleList()}}
	s := NewStore(api, DefaultCodec(), nil)
	ctx := context.Background()

	want := []string{"!/a", "/b/**", "!/b"}
	require.NoError(t, s.WriteSelective(ctx, "default", want))
	got, err := s.ReadSelective(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, Normalize(want), got)

	// Lines outside the block are untouched.
	assert.Equal(t, DefaultCodec().Outside(sampleList()), DefaultCodec().Outside(api.lines["default"]))
}

func TestStore_WriteWithoutBlock(t *testing.T) {
	api := &fakeLister{lines: map[string][]string{"default": {"*.tmp"}}}
	s := NewStore(api, DefaultCodec(), nil)

	err := s.WriteSelective(context.Background(), "default", []string{"!/a"})
	assert.ErrorIs(t, err, ErrNoBlock)
	assert.Equal(t, 0, api.posts)

	got, err := s.ReadSelective(context.Background(), "default")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_Enable(t *testing.T) {
	api := &fakeLister{lines: map[string][]string{"default": {"*.tmp"}}}
	s := NewStore(api, DefaultCodec(), nil)
	ctx := context.Background()

	changed, err := s.Enable(ctx, "default")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.Enable(ctx, "default")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, api.posts)

	require.NoError(t, s.WriteSelective(ctx, "default", []string{"!/docs"}))
	assert.Equal(t, []string{"*.tmp", "", DefaultStart, "!/docs", "", DefaultFinish, IgnoreRest}, api.lines["default"])
}

func TestStore_ReadErrorWrapped(t *testing.T) {
	cause := errors.New("boom")
	s := NewStore(&fakeLister{readErr: cause}, DefaultCodec(), nil)
	_, err := s.ReadSelective(context.Background(), "default")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "default")
}
