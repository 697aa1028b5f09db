package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPost() *Post {
	return &Post{
		ID:        7,
		PostTitle: "My Post",
		Content: []Block{
			{ClientID: "a", Attributes: Attributes{Content: "Hello<br/>World"}},
			{ClientID: "b"},
			{ClientID: "c", Attributes: Attributes{Content: "Closing line"}},
			{ClientID: "d"},
		},
	}
}

func TestContentBefore(t *testing.T) {
	post := testPost()

	tests := []struct {
		name     string
		clientID string
		want     string
	}{
		{name: "first block", clientID: "a", want: ""},
		{name: "after line break block", clientID: "b", want: "Hello\nWorld"},
		{name: "skips empty blocks", clientID: "d", want: "Hello\nWorld\nClosing line"},
		{name: "unknown block", clientID: "zzz", want: ""},
		{name: "no client id", clientID: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContentBefore(post, tt.clientID))
		})
	}
}

func TestWholeContent(t *testing.T) {
	assert.Equal(t, "Hello\nWorld\nClosing line", WholeContent(testPost()))
	assert.Equal(t, "", WholeContent(&Post{}))
	assert.Equal(t, "", WholeContent(nil))
	assert.Equal(t, "", ContentBefore(nil, "a"))
}

func TestTermNames(t *testing.T) {
	post := &Post{
		Terms: map[string][]Term{
			TaxonomyCategory: {{ID: 2, Name: "News"}, {ID: 3, Name: "Travel"}},
		},
	}

	names, loaded := TermNames(post, TaxonomyCategory, []int64{3, 2})
	assert.True(t, loaded)
	assert.Equal(t, []string{"Travel", "News"}, names)

	names, loaded = TermNames(post, TaxonomyCategory, []int64{2, 9})
	assert.False(t, loaded)
	assert.Equal(t, []string{"News"}, names)

	names, loaded = TermNames(post, TaxonomyTag, nil)
	assert.True(t, loaded)
	assert.Empty(t, names)
}

func TestPostBlocks(t *testing.T) {
	post := testPost()

	id := post.AppendBlock("core/paragraph", "new text")
	assert.NotEmpty(t, id)
	assert.Equal(t, 4, post.BlockIndex(id))
	assert.Equal(t, -1, post.BlockIndex("missing"))

	require.NoError(t, post.SetBlockContent("b", "middle"))
	assert.Equal(t, "Hello\nWorld\nmiddle", ContentBefore(post, "c"))
	assert.Error(t, post.SetBlockContent("missing", "x"))

	blocks := post.Blocks()
	blocks[0].Attributes.Content = "mutated"
	assert.Equal(t, "Hello<br/>World", post.Blocks()[0].Attributes.Content)
}

func TestLoadAndSavePost(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "post.json")

	raw := `{
  "id": 12,
  "title": "Draft",
  "blocks": [
    {"attributes": {"content": "First"}},
    {"clientId": "fixed", "attributes": {}}
  ],
  "categories": [4],
  "terms": {"category": [{"id": 4, "name": "Go"}]}
}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	post, err := LoadPost(path)
	require.NoError(t, err)
	assert.Equal(t, int64(12), post.PostID())
	assert.Equal(t, "Draft", post.Title())
	require.Len(t, post.Blocks(), 2)
	assert.NotEmpty(t, post.Blocks()[0].ClientID)
	assert.Equal(t, "First", ContentBefore(post, "fixed"))
	assert.Equal(t, []int64{4}, post.Categories())

	term, ok := post.Term(TaxonomyCategory, 4)
	assert.True(t, ok)
	assert.Equal(t, "Go", term.Name)

	require.NoError(t, post.SetBlockContent("fixed", "Second"))
	require.NoError(t, post.Save(path))

	reloaded, err := LoadPost(path)
	require.NoError(t, err)
	assert.Equal(t, "First\nSecond", WholeContent(reloaded))
	assert.Equal(t, post.Blocks()[0].ClientID, reloaded.Blocks()[0].ClientID)
}

func TestLoadPostErrors(t *testing.T) {
	_, err := LoadPost(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
	_, err = LoadPost(path)
	assert.Error(t, err)
}
