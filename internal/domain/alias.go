package domain

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Alias maps a short name to a full command string.
type Alias struct {
	Name    string
	Command string
}

// ParseAliasDefinition parses a "name=command" pair. Definitions without a
// '=' or with an empty name are rejected and mutate nothing.
func ParseAliasDefinition(def string) (Alias, error) {
	name, command, ok := strings.Cut(def, "=")
	if !ok {
		return Alias{}, fmt.Errorf("alias definition %q: missing '='", def)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Alias{}, fmt.Errorf("alias definition %q: empty name", def)
	}
	return Alias{Name: name, Command: command}, nil
}

// AliasTable maps alias names to command text. Reads may run concurrently
// with each other; writes are serialized internally.
type AliasTable struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewAliasTable builds an empty table.
func NewAliasTable() *AliasTable {
	return &AliasTable{entries: make(map[string]string)}
}

// Set inserts or overwrites an alias. Overwriting is not an error.
func (t *AliasTable) Set(name, command string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[name] = command
}

// Remove deletes an alias. Removing an absent name is a no-op.
func (t *AliasTable) Remove(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, name)
}

// Resolve returns the mapped command when text matches an alias name
// exactly, otherwise text unchanged. There is no token-level substitution.
func (t *AliasTable) Resolve(text string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if command, ok := t.entries[text]; ok {
		return command
	}
	return text
}

// All returns a name-sorted snapshot of the table.
func (t *AliasTable) All() []Alias {
	t.mu.RLock()
	defer t.mu.RUnlock()
	aliases := make([]Alias, 0, len(t.entries))
	for name, command := range t.entries {
		aliases = append(aliases, Alias{Name: name, Command: command})
	}
	sort.Slice(aliases, func(i, j int) bool { return aliases[i].Name < aliases[j].Name })
	return aliases
}

// Len returns the number of aliases.
func (t *AliasTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
