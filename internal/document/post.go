package document

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
)

// Post is an in-memory Editor backed by a JSON file
type Post struct {
	mu sync.RWMutex

	ID          int64             `json:"id"`
	PostTitle   string            `json:"title"`
	Content     []Block           `json:"blocks"`
	CategoryIDs []int64           `json:"categories,omitempty"`
	TagIDs      []int64           `json:"tags,omitempty"`
	Terms       map[string][]Term `json:"terms,omitempty"`
}

// LoadPost reads a post from a JSON file
func LoadPost(path string) (*Post, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read post: %w", err)
	}

	var post Post
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, fmt.Errorf("failed to unmarshal post: %w", err)
	}

	for i := range post.Content {
		if post.Content[i].ClientID == "" {
			post.Content[i].ClientID = uuid.NewString()
		}
	}
	return &post, nil
}

// Save writes the post back to a JSON file
func (p *Post) Save(path string) error {
	p.mu.RLock()
	data, err := json.MarshalIndent(p, "", "  ")
	p.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal post: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write post: %w", err)
	}
	return nil
}

func (p *Post) PostID() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ID
}

func (p *Post) Title() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.PostTitle
}

func (p *Post) BlockIndex(clientID string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for i, block := range p.Content {
		if block.ClientID == clientID {
			return i
		}
	}
	return -1
}

// Blocks returns a copy of the post blocks
func (p *Post) Blocks() []Block {
	p.mu.RLock()
	defer p.mu.RUnlock()
	blocks := make([]Block, len(p.Content))
	copy(blocks, p.Content)
	return blocks
}

func (p *Post) Categories() []int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]int64(nil), p.CategoryIDs...)
}

func (p *Post) Tags() []int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]int64(nil), p.TagIDs...)
}

func (p *Post) Term(taxonomy string, id int64) (Term, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, term := range p.Terms[taxonomy] {
		if term.ID == id {
			return term, true
		}
	}
	return Term{}, false
}

// AppendBlock adds a block at the end of the post and returns its client id
func (p *Post) AppendBlock(name, content string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	block := Block{
		ClientID:   uuid.NewString(),
		Name:       name,
		Attributes: Attributes{Content: content},
	}
	p.Content = append(p.Content, block)
	return block.ClientID
}

// SetBlockContent replaces the content of an existing block
func (p *Post) SetBlockContent(clientID, content string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.Content {
		if p.Content[i].ClientID == clientID {
			p.Content[i].Attributes.Content = content
			return nil
		}
	}
	return fmt.Errorf("block %s not found", clientID)
}
