package session

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Page abstracts the browser-automation surface the state machine drives.
// Implementations wrap a real headless-browser page; tests use a scripted
// fake.
type Page interface {
	// Navigate loads the given URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error

	// Click clicks the element matched by the selector.
	Click(ctx context.Context, selector string) error

	// Fill types the value into the element matched by the selector.
	Fill(ctx context.Context, selector, value string) error

	// SliderChallenge returns the current slider challenge, or nil when no
	// slider is being shown.
	SliderChallenge(ctx context.Context) (*SliderChallenge, error)

	// DragSlider replays the horizontal movement deltas on the slider
	// handle: press, move by each delta in order, release.
	DragSlider(ctx context.Context, selector string, deltas []int) error

	// RefreshChallenge requests a fresh slider puzzle.
	RefreshChallenge(ctx context.Context) error

	// Cookies returns the page's current cookie jar.
	Cookies(ctx context.Context) (map[string]string, error)

	// SetCookies injects cookies into the page's browser context, used by
	// the cookie login method.
	SetCookies(ctx context.Context, cookies map[string]string) error
}

// SliderChallenge describes one slider puzzle as extracted from the page.
type SliderChallenge struct {
	// Background and Gap are the puzzle image URLs (full background and
	// the cut-out piece).
	Background string
	Gap        string

	// Selector locates the drag handle.
	Selector string
}

// CaptchaSolver turns a slider challenge into the horizontal distance, in
// pixels, the handle must travel to align the piece with the notch.
type CaptchaSolver interface {
	Distance(ctx context.Context, challenge *SliderChallenge) (int, error)
}

// Tracks generates the movement deltas for a slider drag of exactly
// distance pixels. The trajectory is front-loaded: large early steps that
// taper off, like a human flicking the handle and then easing in. The
// deltas always sum to exactly distance; rounding drift is folded into a
// corrected final step.
func Tracks(distance int) []int {
	if distance <= 0 {
		return nil
	}

	// Ease-out curve: step size proportional to the remaining fraction of
	// the distance, so the handle decelerates toward the notch.
	var deltas []int
	moved := 0
	remaining := float64(distance)
	for remaining > 1 {
		step := int(math.Ceil(remaining * 0.28))
		if step < 1 {
			step = 1
		}
		deltas = append(deltas, step)
		moved += step
		remaining = float64(distance - moved)
	}

	// Fold the residue into the last step so the sum is exact. The
	// residue can be negative when the ceil steps overshot.
	if residue := distance - moved; residue != 0 {
		if len(deltas) == 0 {
			deltas = append(deltas, residue)
		} else {
			deltas[len(deltas)-1] += residue
			if deltas[len(deltas)-1] == 0 {
				deltas = deltas[:len(deltas)-1]
			}
		}
	}

	return deltas
}

// jitteredPause sleeps a small randomized interval between drag attempts so
// consecutive retries are not machine-regular.
func jitteredPause(ctx context.Context, rng *rand.Rand) {
	d := 300*time.Millisecond + time.Duration(rng.Intn(400))*time.Millisecond
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
