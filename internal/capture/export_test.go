package capture

// GenerationCount returns how many tabs hold an attachment generation.
func (m *Manager) GenerationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.generations)
}
