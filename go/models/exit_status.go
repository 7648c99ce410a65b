package models

import "fmt"

// ExitStatus is how an emulated kernel that returns to the loader reports
// back: EAX at the time it hit the return sentinel.
type ExitStatus int

func (e ExitStatus) Error() string {
	return fmt.Sprintf("kernel returned %#x", int(e))
}
