package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ccrm/agentgraph/pkg/models"
)

// ErrAgentNotFound wrapping is done with the agent ID so callers can surface
// which reference was dangling.
var ErrAgentNotFound = fmt.Errorf("agent not found")

// StaticAgentStore serves agent definitions from memory. It backs tests and
// deployments where the full agent set is known at startup.
type StaticAgentStore struct {
	mu     sync.RWMutex
	agents map[string]*models.AgentDefinition
}

// NewStaticAgentStore creates a store holding the given definitions.
func NewStaticAgentStore(agents ...*models.AgentDefinition) *StaticAgentStore {
	store := &StaticAgentStore{agents: make(map[string]*models.AgentDefinition, len(agents))}
	for _, agent := range agents {
		store.agents[agent.ID] = agent
	}

	return store
}

// Add registers or replaces a definition.
func (s *StaticAgentStore) Add(agent *models.AgentDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.agents[agent.ID] = agent
}

// AgentByID implements protocol.AgentStore.
func (s *StaticAgentStore) AgentByID(_ context.Context, id string) (*models.AgentDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agent, found := s.agents[id]
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}

	return agent, nil
}

// agentManifest is the on-disk descriptor kept next to the prompt file.
type agentManifest struct {
	AgentID     string   `json:"agentId"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tools       []string `json:"tools"`
}

// FileAgentStore reads agent definitions from a directory tree with one
// subdirectory per agent holding systemPrompt.md and jsonSchema.json.
// Definitions are loaded once and cached; the store is safe for concurrent
// readers.
type FileAgentStore struct {
	root string

	mu     sync.Mutex
	loaded bool
	byID   map[string]*models.AgentDefinition
}

// NewFileAgentStore creates a store rooted at the given directory.
func NewFileAgentStore(root string) *FileAgentStore {
	return &FileAgentStore{root: root}
}

// AgentByID implements protocol.AgentStore.
func (s *FileAgentStore) AgentByID(_ context.Context, id string) (*models.AgentDefinition, error) {
	if err := s.load(); err != nil {
		return nil, err
	}

	agent, found := s.byID[id]
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}

	return agent, nil
}

// Agents returns all definitions found under the root directory.
func (s *FileAgentStore) Agents() ([]*models.AgentDefinition, error) {
	if err := s.load(); err != nil {
		return nil, err
	}

	agents := make([]*models.AgentDefinition, 0, len(s.byID))
	for _, agent := range s.byID {
		agents = append(agents, agent)
	}

	return agents, nil
}

func (s *FileAgentStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return nil
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("failed to read agent definitions directory: %w", err)
	}

	byID := make(map[string]*models.AgentDefinition)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		agent, err := s.readAgent(filepath.Join(s.root, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to load agent %q: %w", entry.Name(), err)
		}

		byID[agent.ID] = agent
	}

	s.byID = byID
	s.loaded = true

	return nil
}

func (s *FileAgentStore) readAgent(dir string) (*models.AgentDefinition, error) {
	manifestData, err := os.ReadFile(filepath.Join(dir, "jsonSchema.json"))
	if err != nil {
		return nil, err
	}

	var manifest agentManifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return nil, fmt.Errorf("invalid jsonSchema.json: %w", err)
	}

	if manifest.AgentID == "" {
		return nil, fmt.Errorf("jsonSchema.json is missing agentId")
	}

	promptData, err := os.ReadFile(filepath.Join(dir, "systemPrompt.md"))
	if err != nil {
		return nil, err
	}

	name := manifest.Name
	if name == "" {
		name = filepath.Base(dir)
	}

	return &models.AgentDefinition{
		ID:           manifest.AgentID,
		Name:         name,
		Description:  manifest.Description,
		SystemPrompt: strings.TrimSpace(string(promptData)),
		Tools:        manifest.Tools,
	}, nil
}
