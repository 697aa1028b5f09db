package document

import (
	"strings"
)

const lineBreakMarkup = "<br/>"

// Attributes holds the block attributes the assistant reads
type Attributes struct {
	Content string `json:"content,omitempty"`
}

// Block represents a single block of the edited post
type Block struct {
	ClientID   string     `json:"clientId"`
	Name       string     `json:"name,omitempty"`
	Attributes Attributes `json:"attributes"`
}

// Term represents a resolved taxonomy term (category or tag)
type Term struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Taxonomy names accepted by Editor.Term
const (
	TaxonomyCategory = "category"
	TaxonomyTag      = "post_tag"
)

// Editor is the host editor as seen by the assistant.
// BlockIndex returns -1 when the client id is unknown.
type Editor interface {
	PostID() int64
	Title() string
	BlockIndex(clientID string) int
	Blocks() []Block
	Categories() []int64
	Tags() []int64
	Term(taxonomy string, id int64) (Term, bool)
}

// ContentBefore returns the text of every block preceding clientID
func ContentBefore(editor Editor, clientID string) string {
	if clientID == "" || editor == nil {
		return ""
	}

	index := editor.BlockIndex(clientID)
	if index <= 0 {
		return ""
	}

	blocks := editor.Blocks()
	if index > len(blocks) {
		index = len(blocks)
	}
	return joinContent(blocks[:index])
}

// WholeContent returns the text of every block in the post
func WholeContent(editor Editor) string {
	if editor == nil {
		return ""
	}
	return joinContent(editor.Blocks())
}

// joinContent normalizes line-break markup and joins blocks that carry text
func joinContent(blocks []Block) string {
	if len(blocks) == 0 {
		return ""
	}

	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		if block.Attributes.Content == "" {
			continue
		}
		parts = append(parts, strings.ReplaceAll(block.Attributes.Content, lineBreakMarkup, "\n"))
	}
	return strings.Join(parts, "\n")
}

// TermNames resolves ids against the editor. loaded is false when any id
// could not be resolved yet.
func TermNames(editor Editor, taxonomy string, ids []int64) (names []string, loaded bool) {
	loaded = true
	for _, id := range ids {
		term, ok := editor.Term(taxonomy, id)
		if !ok {
			loaded = false
			continue
		}
		names = append(names, term.Name)
	}
	return names, loaded
}
