package services

import (
	"fmt"
	"math/rand"
	"time"
)

// CaptchaService hands out small arithmetic problems for the signup form.
// The answer is kept in the session, never in the page.
type CaptchaService struct {
	rnd *rand.Rand
}

func NewCaptchaService() *CaptchaService {
	return &CaptchaService{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Problem returns a display string (e.g. "7 + 4") and its integer answer.
func (s *CaptchaService) Problem() (string, int) {
	a := s.rnd.Intn(10)
	b := s.rnd.Intn(10)

	switch s.rnd.Intn(3) {
	case 0:
		return fmt.Sprintf("%d + %d", a, b), a + b
	case 1:
		if a < b {
			a, b = b, a // keep results non-negative
		}
		return fmt.Sprintf("%d - %d", a, b), a - b
	default:
		b = s.rnd.Intn(5) + 1
		return fmt.Sprintf("%d × %d", a, b), a * b
	}
}
