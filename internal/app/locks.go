package app

// lockUser serializes transitions of one user while different users proceed
// independently. It returns the release func.
func (s *QuizService) lockUser(userID string) func() {
	s.locks.Lock(userID)
	return func() {
		if err := s.locks.Unlock(userID); err != nil {
			s.log.Error("user unlock", "user", userID, "error", err)
		}
	}
}
