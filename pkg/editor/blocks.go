package editor

import (
	"slices"
	"strconv"
	"time"

	"github.com/polymicro/manager/pkg/models"
)

// BlockStore owns the blocks placed on the canvas together with the selection
// and configuration-prompt state of the editor.
//
// A BlockStore is not safe for concurrent use.
type BlockStore struct {
	blocks   []*models.BlockInstance
	byID     map[string]*models.BlockInstance
	issued   map[string]struct{} // every ID handed out or loaded, including removed blocks
	gridSize float64
	now      func() time.Time

	selected   string
	promptOpen bool
}

// NewBlockStore creates an empty store snapping to gridSize.
func NewBlockStore(gridSize float64, now func() time.Time) *BlockStore {
	if now == nil {
		now = time.Now
	}

	return &BlockStore{
		byID:     make(map[string]*models.BlockInstance),
		issued:   make(map[string]struct{}),
		gridSize: gridSize,
		now:      now,
	}
}

// Load replaces the store contents with previously persisted blocks.
// Positions are kept as stored; selection is cleared.
func (s *BlockStore) Load(blocks []*models.BlockInstance) {
	s.blocks = make([]*models.BlockInstance, 0, len(blocks))
	s.byID = make(map[string]*models.BlockInstance, len(blocks))
	s.selected = ""
	s.promptOpen = false

	for _, b := range blocks {
		if b == nil || b.ID == "" {
			continue
		}

		if _, dup := s.byID[b.ID]; dup {
			continue
		}

		c := b.Clone()
		s.blocks = append(s.blocks, c)
		s.byID[c.ID] = c
		s.issued[c.ID] = struct{}{}
	}
}

// GridSize returns the snapping pitch.
func (s *BlockStore) GridSize() float64 {
	return s.gridSize
}

// AddBlock places a new instance of def at the snapped position, selects it
// and opens its configuration prompt.
func (s *BlockStore) AddBlock(def models.BlockDefinition, pos models.Position) *models.BlockInstance {
	instance := &models.BlockInstance{
		ID:       s.nextID(def.ID),
		Type:     def.ID,
		Name:     def.Name,
		Icon:     def.Icon,
		Category: def.Category,
		Position: SnapPosition(pos, s.gridSize),
		Config:   def.DefaultConfig(),
	}

	s.blocks = append(s.blocks, instance)
	s.byID[instance.ID] = instance
	s.issued[instance.ID] = struct{}{}
	s.selected = instance.ID
	s.promptOpen = true

	return instance
}

// nextID derives an instance ID from the definition ID and the creation time
// in milliseconds, adding a sequence suffix when that ID was already issued.
// IDs of removed blocks are never reused.
func (s *BlockStore) nextID(defID string) string {
	base := defID + "-" + strconv.FormatInt(s.now().UnixMilli(), 10)
	if _, taken := s.issued[base]; !taken {
		return base
	}

	for seq := 1; ; seq++ {
		candidate := base + "-" + strconv.Itoa(seq)
		if _, taken := s.issued[candidate]; !taken {
			return candidate
		}
	}
}

// MoveBlock re-snaps and updates the position of the instance. Unknown IDs are ignored.
func (s *BlockStore) MoveBlock(id string, pos models.Position) {
	b, ok := s.byID[id]
	if !ok {
		return
	}

	b.Position = SnapPosition(pos, s.gridSize)
}

// UpdateConfig replaces the configuration of the instance, clears the selection
// and closes the prompt. Unknown IDs are ignored.
func (s *BlockStore) UpdateConfig(id string, cfg models.Config) {
	b, ok := s.byID[id]
	if !ok {
		return
	}

	b.Config = cfg.Clone()
	if b.Config == nil {
		b.Config = models.Config{}
	}

	s.selected = ""
	s.promptOpen = false
}

// DeleteBlock removes the instance and reports whether it existed. Deleting the
// selected instance clears the selection and closes the prompt.
func (s *BlockStore) DeleteBlock(id string) bool {
	if _, ok := s.byID[id]; !ok {
		return false
	}

	delete(s.byID, id)
	s.blocks = slices.DeleteFunc(s.blocks, func(b *models.BlockInstance) bool {
		return b.ID == id
	})

	if s.selected == id {
		s.selected = ""
		s.promptOpen = false
	}

	return true
}

// SelectBlock selects the instance and opens its configuration prompt. Unknown IDs are ignored.
func (s *BlockStore) SelectBlock(id string) {
	if _, ok := s.byID[id]; !ok {
		return
	}

	s.selected = id
	s.promptOpen = true
}

// ClearSelection deselects any instance and closes the prompt.
func (s *BlockStore) ClearSelection() {
	s.selected = ""
	s.promptOpen = false
}

// Selected returns the selected instance, or nil.
func (s *BlockStore) Selected() *models.BlockInstance {
	if s.selected == "" {
		return nil
	}

	return s.byID[s.selected]
}

// PromptOpen reports whether the configuration prompt should be shown.
func (s *BlockStore) PromptOpen() bool {
	return s.promptOpen
}

// Get returns the instance with the given ID.
func (s *BlockStore) Get(id string) (*models.BlockInstance, bool) {
	b, ok := s.byID[id]

	return b, ok
}

// Blocks returns the instances in placement order. The slice is a copy; the
// instances are owned by the store.
func (s *BlockStore) Blocks() []*models.BlockInstance {
	return slices.Clone(s.blocks)
}

// Len returns the number of placed instances.
func (s *BlockStore) Len() int {
	return len(s.blocks)
}
