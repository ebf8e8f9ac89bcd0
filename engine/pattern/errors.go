package pattern

import "fmt"

func errUnknownToken(name string) error {
	return fmt.Errorf("unknown pattern token %q", name)
}

func errForbiddenSegment(reason string) error {
	return fmt.Errorf("forbidden pattern: %s", reason)
}
