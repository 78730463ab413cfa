package fulfill

import "time"

// Clock abstracts timer creation so a fake can drive retry scheduling in
// tests. AfterFunc returns a cancel func.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) (cancel func())
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

func SystemClock() Clock { return systemClock{} }
