package payment

import (
	"time"

	"github.com/kat-co/vala"
)

func positive(d time.Duration, name string) vala.Checker {
	return func() (bool, string) {
		return d > 0, "parameter must be positive: " + name
	}
}

func shorterThan(d, max time.Duration, name, maxName string) vala.Checker {
	return func() (bool, string) {
		return d < max, "parameter " + name + " must be shorter than " + maxName
	}
}
