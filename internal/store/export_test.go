package store

// SetBeforeCommit installs a hook run between staging and committing.
func (s *GitStore) SetBeforeCommit(hook func(msg string) error) {
	s.beforeCommit = hook
}
