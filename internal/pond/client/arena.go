package client

import (
	"math"
	"math/rand"
	"sort"

	"github.com/lcroft/pond/internal/pond/storage"
)

// Sprite is the local animated state layered over a pond object. Motion
// is client-side flavor only; the server knows nothing about positions.
type Sprite struct {
	Object storage.ObjectView

	X, Y    float64
	VX, VY  float64
	Heading float64
}

// Speed returns the sprite's scalar speed.
func (s *Sprite) Speed() float64 {
	return math.Hypot(s.VX, s.VY)
}

// Arena is the keyed sprite set a pond view renders. Merging a fresh
// snapshot carries motion state over for surviving ids so a refetch
// never teleports fish that were already swimming.
type Arena struct {
	width, height float64
	rng           *rand.Rand
	sprites       map[string]*Sprite
}

// NewArena creates an arena of the given dimensions. The rand source
// seeds spawn positions; pass a fixed-seed source for determinism.
func NewArena(width, height float64, rng *rand.Rand) *Arena {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Arena{
		width:   width,
		height:  height,
		rng:     rng,
		sprites: make(map[string]*Sprite),
	}
}

// Merge reconciles the arena against a snapshot: surviving ids keep
// their position and velocity, new ids spawn fresh, ids absent from the
// snapshot disappear.
func (a *Arena) Merge(views []storage.ObjectView) {
	seen := make(map[string]bool, len(views))
	for _, view := range views {
		seen[view.ID] = true
		if sprite, ok := a.sprites[view.ID]; ok {
			sprite.Object = view
			continue
		}
		a.sprites[view.ID] = a.spawn(view)
	}
	for id := range a.sprites {
		if !seen[id] {
			delete(a.sprites, id)
		}
	}
}

func (a *Arena) spawn(view storage.ObjectView) *Sprite {
	heading := a.rng.Float64() * 2 * math.Pi
	speed := 10 + a.rng.Float64()*30
	return &Sprite{
		Object:  view,
		X:       a.rng.Float64() * a.width,
		Y:       a.rng.Float64() * a.height,
		VX:      math.Cos(heading) * speed,
		VY:      math.Sin(heading) * speed,
		Heading: heading,
	}
}

// Step advances every swimming sprite by dt seconds, bouncing off the
// arena edges. Caught fish hold still.
func (a *Arena) Step(dt float64) {
	for _, sprite := range a.sprites {
		if !sprite.Object.InPond {
			continue
		}
		sprite.X += sprite.VX * dt
		sprite.Y += sprite.VY * dt
		if sprite.X < 0 {
			sprite.X, sprite.VX = -sprite.X, -sprite.VX
		}
		if sprite.X > a.width {
			sprite.X, sprite.VX = 2*a.width-sprite.X, -sprite.VX
		}
		if sprite.Y < 0 {
			sprite.Y, sprite.VY = -sprite.Y, -sprite.VY
		}
		if sprite.Y > a.height {
			sprite.Y, sprite.VY = 2*a.height-sprite.Y, -sprite.VY
		}
		sprite.Heading = math.Atan2(sprite.VY, sprite.VX)
	}
}

// Sprite returns one sprite by object id.
func (a *Arena) Sprite(id string) (*Sprite, bool) {
	sprite, ok := a.sprites[id]
	return sprite, ok
}

// Sprites returns all sprites in stable id order.
func (a *Arena) Sprites() []*Sprite {
	out := make([]*Sprite, 0, len(a.sprites))
	for _, sprite := range a.sprites {
		out = append(out, sprite)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Object.ID < out[j].Object.ID })
	return out
}
